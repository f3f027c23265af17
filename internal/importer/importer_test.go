package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow-dev/fundflow/internal/model"
)

const chaseHeader = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"

const chaseSample = chaseHeader +
	"DEBIT,01/03/2026,GITHUB *PRO SUBSCRIPTION,-4.00,ACH_DEBIT,2496.00,\n" +
	"DEBIT,01/05/2026,WHOLEFOODS MKT 10234,-127.50,DEBIT_CARD,2368.50,\n" +
	"CREDIT,01/15/2026,ACME PAYROLL JAN,3500.00,ACH_CREDIT,5868.50,\n" +
	"DEBIT,01/16/2026,CARD VERIFICATION,0.00,DEBIT_CARD,5868.50,\n" +
	"DEBIT,01/22/2026,\"RENT, UNIT 4B\",-1400.00,ACH_DEBIT,4468.50,\n"

func TestChaseParser_Parse(t *testing.T) {
	p := &ChaseParser{}
	entries, err := p.Parse(strings.NewReader(chaseSample))
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", entries[0].Description)
	assert.Equal(t, "-4.00", entries[0].Amount.StringFixed(2))
	assert.Equal(t, 2026, entries[0].Date.Year())
	assert.Equal(t, 3, entries[0].Date.Day())

	assert.Equal(t, "3500.00", entries[2].Amount.StringFixed(2))
	assert.Equal(t, "RENT, UNIT 4B", entries[4].Description)
	assert.Equal(t, 22, entries[4].Date.Day())
}

func TestChaseParser_Reference(t *testing.T) {
	p := &ChaseParser{}
	entries, err := p.Parse(strings.NewReader(chaseSample))
	require.NoError(t, err)
	assert.Equal(t, "chase-20260103-GITHUBPROS-400", entries[0].Reference)
	assert.Equal(t, "chase-20260122-RENTUNIT4B-140000", entries[4].Reference)
}

func TestChaseParser_EmptyFile(t *testing.T) {
	for _, input := range []string{"", chaseHeader} {
		p := &ChaseParser{}
		entries, err := p.Parse(strings.NewReader(input))
		require.NoError(t, err)
		assert.Nil(t, entries)
	}
}

func TestChaseParser_ColumnsByName(t *testing.T) {
	input := "Posting Date,Amount,Description,Details\n" +
		"02/01/2026,-12.99,  NETFLIX   COM ,DEBIT\n"
	p := &ChaseParser{}
	entries, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "NETFLIX COM", entries[0].Description)
	assert.Equal(t, "-12.99", entries[0].Amount.StringFixed(2))
	assert.Equal(t, 2, int(entries[0].Date.Month()))
}

func TestChaseParser_BadRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"bad date", "DEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n", "parsing date"},
		{"bad amount", "DEBIT,01/03/2026,desc,NOTANUMBER,ACH_DEBIT,100.00,\n", "parsing amount"},
		{"debit paying in", "DEBIT,01/03/2026,desc,4.00,ACH_DEBIT,100.00,\n", "DEBIT row has amount 4"},
		{"credit paying out", "CREDIT,01/03/2026,desc,-4.00,ACH_CREDIT,100.00,\n", "CREDIT row has amount -4"},
		{"short row", "DEBIT,01/03/2026,desc\n", "row 2: expected 7 fields, got 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ChaseParser{}
			_, err := p.Parse(strings.NewReader(chaseHeader + tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChaseParser_MissingColumn(t *testing.T) {
	p := &ChaseParser{}
	_, err := p.Parse(strings.NewReader("Details,Posting Date,Description\nDEBIT,01/03/2026,desc\n"))
	assert.ErrorContains(t, err, `no "Amount" column`)
}

func TestRecords(t *testing.T) {
	p := &ChaseParser{}
	entries, err := p.Parse(strings.NewReader(chaseSample))
	require.NoError(t, err)

	reqs := Records("user-1", "Imported", entries)
	require.Len(t, reqs, 4, "zero-amount line is skipped")

	assert.Equal(t, model.TypeExpense, reqs[0].Type)
	assert.Equal(t, "4.00", reqs[0].Amount.StringFixed(2))
	assert.Equal(t, "user-1", reqs[0].UserID)
	assert.Equal(t, "Imported", reqs[0].Category)

	assert.Equal(t, model.TypeIncome, reqs[2].Type)
	assert.Equal(t, "3500.00", reqs[2].Amount.StringFixed(2))
	assert.Equal(t, "ACME PAYROLL JAN", reqs[2].Description)
	assert.True(t, reqs[2].Date.Equal(entries[2].Date))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("chase"))

	r.Register(&ChaseParser{})
	assert.NotNil(t, r.Get("Chase"))
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })

	assert.NotNil(t, DefaultRegistry().Get("CHASE"))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Nil(t, files, "missing import dir is not an error")

	processed := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "notes.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "old.csv"), []byte("data"), 0o644))

	files, err = Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.EqualValues(t, 4, files[0].Size)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "import"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(dir, "import", "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}
