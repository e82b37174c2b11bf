package observability

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TemporalLogger adapts zerolog to the Temporal SDK's log.Logger
// interface, which passes context as alternating key-value pairs.
type TemporalLogger struct {
	logger zerolog.Logger
}

// NewTemporalLogger wraps the given logger, tagging every entry with
// component=temporal-sdk.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.event(l.logger.Debug(), msg, keyvals)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.event(l.logger.Info(), msg, keyvals)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.event(l.logger.Warn(), msg, keyvals)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.event(l.logger.Error(), msg, keyvals)
}

// event attaches the key-value pairs to the entry. A trailing key with
// no value is dropped; non-string keys are stringified.
func (l *TemporalLogger) event(e *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}
