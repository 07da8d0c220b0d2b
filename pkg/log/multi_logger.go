package log

import (
	"io"

	"go.uber.org/multierr"
)

// MultiLogger sends events to multiple loggers, for example console output
// via SlogAdapter together with a FileLogger capture.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger that sends events to all non-nil loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to all configured loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Close closes every logger that implements io.Closer and combines the errors.
func (m *MultiLogger) Close() error {
	var err error
	for _, l := range m.loggers {
		if c, ok := l.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
