package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChaseParser reads Chase checking account activity exports. Columns are
// located by header name, so exports with reordered or extra columns parse.
type ChaseParser struct{}

const chaseDateLayout = "01/02/2006"

// Header names of the columns the parser needs.
const (
	chaseDetails = "Details"
	chaseDate    = "Posting Date"
	chaseDesc    = "Description"
	chaseAmount  = "Amount"
)

// chaseColumns holds the index of each needed column.
type chaseColumns struct {
	details, date, desc, amount int
}

func (p *ChaseParser) Format() string { return "chase" }

// Parse returns one entry per activity row, in file order. A file holding
// only the header yields no entries.
func (p *ChaseParser) Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chase header: %w", err)
	}
	cols, err := chaseColumnsOf(header)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading chase CSV: %w", err)
		}
		if len(row) < len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", line, len(header), len(row))
		}
		e, err := cols.entry(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		entries = append(entries, e)
	}
}

func chaseColumnsOf(header []string) (chaseColumns, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	var cols chaseColumns
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{chaseDetails, &cols.details},
		{chaseDate, &cols.date},
		{chaseDesc, &cols.desc},
		{chaseAmount, &cols.amount},
	} {
		i, ok := idx[c.name]
		if !ok {
			return chaseColumns{}, fmt.Errorf("chase CSV has no %q column", c.name)
		}
		*c.dst = i
	}
	return cols, nil
}

func (c chaseColumns) entry(row []string) (Entry, error) {
	date, err := time.ParseInLocation(chaseDateLayout, strings.TrimSpace(row[c.date]), time.UTC)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing date %q: %w", row[c.date], err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(row[c.amount]))
	if err != nil {
		return Entry{}, fmt.Errorf("parsing amount %q: %w", row[c.amount], err)
	}

	// DEBIT rows carry money out and CREDIT rows money in. Checks and
	// deposit slips use other labels and are trusted as signed.
	switch details := strings.ToUpper(strings.TrimSpace(row[c.details])); {
	case details == "DEBIT" && amount.IsPositive(), details == "CREDIT" && amount.IsNegative():
		return Entry{}, fmt.Errorf("%s row has amount %s", details, amount)
	}

	desc := strings.Join(strings.Fields(row[c.desc]), " ")
	return Entry{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Reference:   chaseReference(date, desc, amount),
	}, nil
}

// chaseReference identifies a row as chase-<date>-<description
// letters>-<cents>, for example chase-20260103-GITHUBPROS-400.
func chaseReference(date time.Time, desc string, amount decimal.Decimal) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(desc) {
		if b.Len() == 10 {
			break
		}
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cents := amount.Abs().Shift(2).Round(0).String()
	return fmt.Sprintf("chase-%s-%s-%s", date.Format("20060102"), b.String(), cents)
}
