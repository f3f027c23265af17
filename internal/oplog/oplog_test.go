package oplog

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func entry(command, user, summary string) Entry {
	return Entry{
		At:      testTime,
		Command: command,
		User:    user,
		Summary: summary,
		Ref:     "2f1c0d3e-6f5e-4d7a-9a43-0c1b2d3e4f50",
	}
}

func TestAppend_WritesHeaderOnce(t *testing.T) {
	l := Open(t.TempDir())
	first := entry("transfer", "alice", "Sent 100.00 USD to Bob (fee 1.00)")
	require.NoError(t, l.Append(first))
	require.NoError(t, l.Append(entry("goal withdraw", "alice", `Withdrew 500.00 from "Laptop", net 496.50`)))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "at,command,user,summary,ref\n"))
	assert.Equal(t, 1, strings.Count(string(data), "at,command"))

	entries, err := l.Tail(Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, `Withdrew 500.00 from "Laptop", net 496.50`, entries[1].Summary)
}

func TestAppend_StoresUTC(t *testing.T) {
	l := Open(t.TempDir())
	e := entry("record", "alice", "Recorded income")
	e.At = time.Date(2026, 1, 15, 12, 30, 0, 0, time.FixedZone("EET", 2*60*60))
	require.NoError(t, l.Append(e))

	entries, err := l.Tail(Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].At.Equal(testTime))
}

func TestTail_Filter(t *testing.T) {
	l := Open(t.TempDir())
	for i, user := range []string{"alice", "bob", "alice", "alice"} {
		require.NoError(t, l.Append(entry("record", user, string(rune('a'+i)))))
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"everything", Filter{}, []string{"a", "b", "c", "d"}},
		{"one user", Filter{User: "alice"}, []string{"a", "c", "d"}},
		{"latest two", Filter{Limit: 2}, []string{"c", "d"}},
		{"latest of one user", Filter{User: "bob", Limit: 5}, []string{"b"}},
		{"nobody", Filter{User: "carol"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := l.Tail(tt.filter)
			require.NoError(t, err)
			var got []string
			for _, e := range entries {
				got = append(got, e.Summary)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTail_MissingFile(t *testing.T) {
	entries, err := Open(t.TempDir()).Tail(Filter{})
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestTail_BadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad time", "at,command,user,summary,ref\nyesterday,transfer,alice,,\n", "row 2: parsing time"},
		{"short row", "at,command,user,summary,ref\n2026-01-15T10:30:00Z,transfer\n", "wrong number of fields"},
		{"foreign header", "timestamp,agent,action,details,entry_id\n", "unexpected header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tail(strings.NewReader(tt.input), Filter{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
