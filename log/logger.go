// Package log provides structured logging with action/run context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the core runtime (driver, builder,
//     runner, monitor) where allocation in hot paths matters.
//   - SugaredLogger: printf-style logging for the CLI and debug surfaces.
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Scope is the set of context fields attached once at construction and
// carried on every subsequent entry. RunID identifies one buildAndRun
// invocation; Action, when set, scopes a Logger to a single in-flight
// action. With derives such a Logger from an existing one; the core
// packages do not call it and pass the action name as an entry field.
type Scope struct {
	RunID            string
	NumRunnerThreads int
	Action           string
}

// Logger wraps a zap.Logger with Scope fields pre-bound.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger wraps a zap.SugaredLogger with Scope fields pre-bound.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger carrying scope, writing JSON lines to os.Stderr.
func NewLogger(scope Scope) *Logger {
	return newLoggerWithWriter(scope, os.Stderr)
}

// WithOutput returns a new logger writing to w instead. The fields bound
// on l (its Scope, and any action added via With) are not carried over.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(w), zapcore.DebugLevel)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

// With returns a new Logger scoped to a specific action name, inheriting
// the run-level fields already bound on l.
func (l *Logger) With(action string) *Logger {
	return &Logger{zap: l.zap.With(zap.String("action", action))}
}

func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
}

func newLoggerWithWriter(scope Scope, w io.Writer) *Logger {
	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(w), zapcore.DebugLevel)

	fields := []zap.Field{
		zap.String("run_id", scope.RunID),
		zap.Int("num_runner_threads", scope.NumRunnerThreads),
	}
	if scope.Action != "" {
		fields = append(fields, zap.String("action", scope.Action))
	}

	return &Logger{zap: zap.New(core).With(fields...)}
}

// Debug logs a debug message with structured fields.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message with structured fields.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message with structured fields.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message with structured fields.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional key/value context.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
