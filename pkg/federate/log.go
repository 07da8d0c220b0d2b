package federate

import (
	"context"
	"log/slog"

	"github.com/fedsim/fedsim-go/pkg/option"
)

// Log levels of the federate log API. Messages above the federate's
// log_level property are dropped.
const (
	LogLevelNoPrint     = -4
	LogLevelError       = 0
	LogLevelProfiling   = 2
	LogLevelWarning     = 3
	LogLevelSummary     = 6
	LogLevelConnections = 9
	LogLevelInterfaces  = 12
	LogLevelTiming      = 15
	LogLevelData        = 18
	LogLevelDebug       = 21
	LogLevelTrace       = 24
)

func slogLevel(level int) slog.Level {
	switch {
	case level <= LogLevelError:
		return slog.LevelError
	case level <= LogLevelWarning:
		return slog.LevelWarn
	case level <= LogLevelInterfaces:
		return slog.LevelInfo
	case level <= LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelDebug - 4
	}
}

// LogMessage logs msg at level if the federate's log level allows it.
func (f *Federate) LogMessage(level int, msg string, args ...any) {
	f.mu.Lock()
	limit := f.intProps[option.PropertyLogLevel]
	f.mu.Unlock()
	if limit <= LogLevelNoPrint || level > limit {
		return
	}
	f.logger.Load().Log(context.Background(), slogLevel(level), msg, append(args, "level", level)...)
}

// LogErrorMessage logs at LogLevelError.
func (f *Federate) LogErrorMessage(msg string, args ...any) {
	f.LogMessage(LogLevelError, msg, args...)
}

// LogWarningMessage logs at LogLevelWarning.
func (f *Federate) LogWarningMessage(msg string, args ...any) {
	f.LogMessage(LogLevelWarning, msg, args...)
}

// LogInfoMessage logs at LogLevelSummary.
func (f *Federate) LogInfoMessage(msg string, args ...any) {
	f.LogMessage(LogLevelSummary, msg, args...)
}

// LogDebugMessage logs at LogLevelDebug.
func (f *Federate) LogDebugMessage(msg string, args ...any) {
	f.LogMessage(LogLevelDebug, msg, args...)
}
