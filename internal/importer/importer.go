// Package importer turns bank CSV exports into ledger income and expense
// records.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/model"
)

// Entry is one bank statement line. Amount is signed: money in is
// positive, money out negative.
type Entry struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string
}

// Parser converts a bank CSV file into entries.
type Parser interface {
	Parse(r io.Reader) ([]Entry, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file waiting in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	return r
}

// Records converts entries into record requests for userID. Zero-amount
// lines are skipped.
func Records(userID, category string, entries []Entry) []ledger.RecordRequest {
	var reqs []ledger.RecordRequest
	for _, e := range entries {
		if e.Amount.IsZero() {
			continue
		}
		req := ledger.RecordRequest{
			UserID:      userID,
			Type:        model.TypeIncome,
			Amount:      e.Amount.Abs(),
			Category:    category,
			Description: e.Description,
			Date:        e.Date,
		}
		if e.Amount.IsNegative() {
			req.Type = model.TypeExpense
		}
		reqs = append(reqs, req)
	}
	return reqs
}

const (
	importDir    = "import"
	processedDir = "import/processed"
)

// Scan returns CSV files in <projectDir>/import/.
func Scan(projectDir string) ([]FileInfo, error) {
	dir := filepath.Join(projectDir, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(projectDir, fileName string) error {
	src := filepath.Join(projectDir, importDir, fileName)
	dstDir := filepath.Join(projectDir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}
	if err := os.Rename(src, filepath.Join(dstDir, fileName)); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
