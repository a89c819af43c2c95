package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestZerologAdapter_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*ZerologAdapter)
	}{
		{"debug", func(l *ZerologAdapter) { l.Debug("event dispatched", "address", "/scene", "durationMs", 2) }},
		{"info", func(l *ZerologAdapter) { l.Info("event dispatched", "address", "/scene", "durationMs", 2) }},
		{"warn", func(l *ZerologAdapter) { l.Warn("event dispatched", "address", "/scene", "durationMs", 2) }},
		{"error", func(l *ZerologAdapter) { l.Error("event dispatched", "address", "/scene", "durationMs", 2) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(l)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "event dispatched", entry["message"])
			assert.Equal(t, "/scene", entry["address"])
			assert.Equal(t, float64(2), entry["durationMs"])
		})
	}
}

func TestZerologAdapter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("hidden", "k", 1)
	assert.Empty(t, buf.String())
}

func TestZerologAdapter_ValueKinds(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapter(zerolog.New(&buf))

	l.Info("values",
		"error", errors.New("boom"),
		"elapsed", 1500*time.Millisecond,
		7, "next",
		"last")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "1.5s", entry["elapsed"])
	assert.Equal(t, float64(7), entry["!BADKEY"])
	assert.Equal(t, "last", entry["next"])

	buf.Reset()
	l.Info("dangling", "alone")
	assert.Equal(t, "alone", decodeLine(t, &buf)["!BADKEY"])
}
