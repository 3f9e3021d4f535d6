package core

import (
	"slices"

	"github.com/hupe1980/filemesh/logging"
)

// scopedLogger prefixes every record with the fields of its scope (run_id,
// node, call_id) so node and tool code never has to repeat them.
type scopedLogger struct {
	logger logging.Logger
	fields []any
}

func newScopedLogger(l logging.Logger, fields ...any) *scopedLogger {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &scopedLogger{logger: l, fields: fields}
}

// with returns a child scope. The parent is left untouched.
func (l *scopedLogger) with(fields ...any) *scopedLogger {
	return &scopedLogger{logger: l.logger, fields: append(slices.Clip(l.fields), fields...)}
}

func (l *scopedLogger) args(args []any) []any {
	if len(l.fields) == 0 {
		return args
	}
	return append(slices.Clip(l.fields), args...)
}

// Logger returns the underlying logger, without scope fields.
func (l *scopedLogger) Logger() logging.Logger { return l.logger }

// LogDebug logs a debug message.
func (l *scopedLogger) LogDebug(msg string, args ...any) { l.logger.Debug(msg, l.args(args)...) }

// LogInfo logs an info message.
func (l *scopedLogger) LogInfo(msg string, args ...any) { l.logger.Info(msg, l.args(args)...) }

// LogWarn logs a warning message.
func (l *scopedLogger) LogWarn(msg string, args ...any) { l.logger.Warn(msg, l.args(args)...) }

// LogError logs an error message.
func (l *scopedLogger) LogError(msg string, args ...any) { l.logger.Error(msg, l.args(args)...) }
