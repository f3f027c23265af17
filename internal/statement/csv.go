// Package statement writes and reads a user's ledger as CSV.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/model"
)

// Header is the first row of every statement.
const Header = "id,date,type,amount,category,description,counterparty,correlation_id"

const (
	numFields   = 8
	colID       = 0
	colDate     = 1
	colType     = 2
	colAmount   = 3
	colCategory = 4
	colDesc     = 5
	colCparty   = 6
	colCorrel   = 7
)

// Write writes txns, header first. Dates are RFC 3339 in UTC.
func Write(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(Marshal(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a statement produced by Write. UserID is left empty.
func Read(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading statement CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if strings.Join(records[0], ",") != Header {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(records[0], ","))
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		t, err := Unmarshal(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// Marshal converts a transaction to a CSV row.
func Marshal(t model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = t.ID
	row[colDate] = t.Date.UTC().Format(time.RFC3339)
	row[colType] = string(t.Type)
	row[colAmount] = t.Amount.StringFixed(2)
	row[colCategory] = t.Category
	row[colDesc] = t.Description
	row[colCparty] = t.Counterparty
	row[colCorrel] = t.CorrelationID
	return row
}

// Unmarshal converts a CSV row to a transaction.
func Unmarshal(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(time.RFC3339, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	typ := model.TransactionType(record[colType])
	if !typ.Valid() {
		return model.Transaction{}, fmt.Errorf("unknown type %q", record[colType])
	}
	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	return model.Transaction{
		ID:            record[colID],
		Type:          typ,
		Amount:        amount,
		Category:      record[colCategory],
		Description:   record[colDesc],
		Date:          date,
		Counterparty:  record[colCparty],
		CorrelationID: record[colCorrel],
	}, nil
}
