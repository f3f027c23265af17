// Package logging writes one JSON object per event through any Printf
// style logger.
package logging

import (
	"encoding/json"
	"time"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Nop discards everything.
var Nop Logger = nopLogger{}

// Event logs a structured event line: {"event": ..., "ts": ..., fields...}.
func Event(l Logger, event string, fields map[string]any) {
	if l == nil {
		return
	}
	payload := map[string]any{
		"event": event,
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		l.Printf("log_marshal_error: %v", err)
		return
	}
	l.Printf("%s", data)
}
