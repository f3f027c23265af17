package statement

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow-dev/fundflow/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 15, 4, 5, 0, time.UTC)
	txns := []model.Transaction{
		{
			ID:            "tx-1",
			Type:          model.TypeExpense,
			Amount:        dec("101"),
			Category:      model.CategoryP2P,
			Description:   "Transfer to @bob: rent",
			Date:          at,
			Counterparty:  "bob",
			CorrelationID: "transfer-1",
		},
		{
			ID:          "tx-2",
			Type:        model.TypeIncome,
			Amount:      dec("1200.5"),
			Category:    "Salary",
			Description: `ACME, "March" payroll`,
			Date:        at.Add(time.Hour),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, txns))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))
	assert.Contains(t, buf.String(), "tx-1,2026-03-04T15:04:05Z,expense,101.00,P2P Transfer")

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range txns {
		assert.Equal(t, txns[i].ID, got[i].ID)
		assert.Equal(t, txns[i].Type, got[i].Type)
		assert.True(t, txns[i].Amount.Equal(got[i].Amount), "amount row %d", i)
		assert.True(t, txns[i].Date.Equal(got[i].Date))
		assert.Equal(t, txns[i].Category, got[i].Category)
		assert.Equal(t, txns[i].Description, got[i].Description)
		assert.Equal(t, txns[i].Counterparty, got[i].Counterparty)
		assert.Equal(t, txns[i].CorrelationID, got[i].CorrelationID)
	}
}

func TestEmptyStatement(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, Header+"\n", buf.String())

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"bad date", "tx,yesterday,income,1.00,Salary,,,", "parsing date"},
		{"bad type", "tx,2026-03-04T15:04:05Z,refund,1.00,Salary,,,", "unknown type"},
		{"bad amount", "tx,2026-03-04T15:04:05Z,income,lots,Salary,,,", "parsing amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(Header + "\n" + tt.row + "\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "row 2")
		})
	}
}

func TestReadRejectsForeignHeader(t *testing.T) {
	_, err := Read(strings.NewReader("a,b,c,d,e,f,g,h\n"))
	assert.ErrorContains(t, err, "unexpected header")
}

func TestUnmarshalFieldCount(t *testing.T) {
	_, err := Unmarshal([]string{"only", "three", "fields"})
	assert.ErrorContains(t, err, "expected 8 fields")
}
