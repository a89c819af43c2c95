package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ZerologAdapter exposes a zerolog.Logger through the key/value logging
// interface the dispatcher expects.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (l *ZerologAdapter) Debug(msg string, keysAndValues ...any) {
	withPairs(l.logger.Debug(), keysAndValues).Msg(msg)
}

func (l *ZerologAdapter) Info(msg string, keysAndValues ...any) {
	withPairs(l.logger.Info(), keysAndValues).Msg(msg)
}

func (l *ZerologAdapter) Warn(msg string, keysAndValues ...any) {
	withPairs(l.logger.Warn(), keysAndValues).Msg(msg)
}

func (l *ZerologAdapter) Error(msg string, keysAndValues ...any) {
	withPairs(l.logger.Error(), keysAndValues).Msg(msg)
}

// withPairs adds key/value pairs in order. Like slog, a non-string key or a
// dangling value is kept under "!BADKEY".
func withPairs(e *zerolog.Event, kv []any) *zerolog.Event {
	if e == nil {
		return nil
	}
	for i := 0; i < len(kv); i++ {
		key, ok := kv[i].(string)
		if !ok || i+1 == len(kv) {
			e = e.Interface("!BADKEY", kv[i])
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
		i++
	}
	return e
}
