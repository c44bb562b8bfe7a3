package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// CommandLogger writes host command traffic from the dispatcher to zerolog.
// Every line carries component=commands.
type CommandLogger struct {
	logger zerolog.Logger
}

// NewCommandLogger tags logger for command traffic.
func NewCommandLogger(logger zerolog.Logger) *CommandLogger {
	return &CommandLogger{logger: logger.With().Str("component", "commands").Logger()}
}

func (l *CommandLogger) Debug(msg string, kv ...any) { write(l.logger.Debug(), msg, kv) }
func (l *CommandLogger) Info(msg string, kv ...any)  { write(l.logger.Info(), msg, kv) }
func (l *CommandLogger) Error(msg string, kv ...any) { write(l.logger.Error(), msg, kv) }

// write appends kv pairs in order. Keys that are not strings are formatted;
// a trailing key without a value is logged as null.
func write(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		if err, ok := val.(error); ok {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, val)
	}
	e.Msg(msg)
}
