package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v := New()
		require.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("  0B7C5E8E-1D2F-4A34-9C7E-2F1B8E5D0A11 ")
	require.NoError(t, err)
	assert.Equal(t, "0b7c5e8e-1d2f-4a34-9c7e-2f1b8e5d0a11", got)

	_, err = Parse("not-an-id")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestShort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0b7c5e8e-1d2f-4a34-9c7e-2f1b8e5d0a11", "0b7c5e8e"},
		{"abcdefghijkl", "abcdefgh"},
		{"u1", "u1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Short(tt.in), "Short(%q)", tt.in)
	}
}
