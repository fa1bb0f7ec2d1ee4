package logger

import corelogger "github.com/kilianp07/emsdispatch/core/logger"

type Logger = corelogger.Logger

// NopLogger discards everything. Tests and optional components use it.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}
func (n NopLogger) With(map[string]any) Logger  { return n }

// New returns the zerolog logger of a component, configured from APP_ENV
// and LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component)
}
