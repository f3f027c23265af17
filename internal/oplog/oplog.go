// Package oplog keeps the operations log: one CSV row per ledger change
// made from the command line, under <project>/logs/operations.csv.
package oplog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Entry is one logged operation. Ref names the record the operation
// produced, such as a transfer or goal ID.
type Entry struct {
	At      time.Time
	Command string
	User    string
	Summary string
	Ref     string
}

var columns = []string{"at", "command", "user", "summary", "ref"}

// Log is the operations log of one project directory.
type Log struct {
	path string
}

// Open returns the log for projectDir. Nothing is touched on disk until
// the first Append.
func Open(projectDir string) *Log {
	return &Log{path: filepath.Join(projectDir, "logs", "operations.csv")}
}

// Path is the location of the CSV file.
func (l *Log) Path() string { return l.path }

// Append adds e to the end of the log, writing the header first when the
// file is new or empty.
func (l *Log) Append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening operations log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat operations log: %w", err)
	}
	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(columns); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := cw.Write(encode(e)); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// Filter selects entries from the log. An empty User matches everyone and
// a Limit of zero or less keeps every match.
type Filter struct {
	User  string
	Limit int
}

// Tail returns the latest entries matching f, oldest first. A missing log
// has no entries.
func (l *Log) Tail(f Filter) ([]Entry, error) {
	file, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening operations log: %w", err)
	}
	defer file.Close()
	return tail(file, f)
}

func tail(r io.Reader, f Filter) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(columns)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading operations log: %w", err)
	}
	if !slices.Equal(header, columns) {
		return nil, fmt.Errorf("operations log has unexpected header %q", header)
	}

	var entries []Entry
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading operations log: %w", err)
		}
		e, err := decode(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if f.User != "" && e.User != f.User {
			continue
		}
		entries = append(entries, e)
		if f.Limit > 0 && len(entries) > f.Limit {
			entries = entries[1:]
		}
	}
}

func encode(e Entry) []string {
	return []string{e.At.UTC().Format(time.RFC3339), e.Command, e.User, e.Summary, e.Ref}
}

func decode(row []string) (Entry, error) {
	at, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing time %q: %w", row[0], err)
	}
	return Entry{At: at, Command: row[1], User: row[2], Summary: row[3], Ref: row[4]}, nil
}
