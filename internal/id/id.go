package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random identifier for a ledger record.
func New() string {
	return uuid.NewString()
}

// Parse validates an identifier that came from outside the process and
// returns it in canonical lower-case form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return u.String(), nil
}

// Short returns the first block of an identifier for display.
// "0b7c5e8e-1d2f-4a34-9c7e-2f1b8e5d0a11" -> "0b7c5e8e"
func Short(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
