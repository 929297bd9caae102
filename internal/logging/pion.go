package logging

import (
	"context"
	"fmt"
	"log/slog"

	pionlog "github.com/pion/logging"
)

// MaxLineLength is the longest pion message forwarded before truncation.
const MaxLineLength = 4096

// LevelTrace sits below slog's debug level for pion's trace output.
const LevelTrace = slog.LevelDebug - 4

// PionFactory routes pion's internal logging into slog. Every scope (ice,
// dtls, sctp, pc...) becomes a "scope" attribute.
type PionFactory struct {
	Logger *slog.Logger
	// Level is the minimum level forwarded. pion is chatty below warn.
	Level slog.Level
}

// NewPionFactory creates a factory forwarding at level and above.
func NewPionFactory(logger *slog.Logger, level string) *PionFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &PionFactory{Logger: logger, Level: parseLevel(level)}
}

// NewLogger implements pionlog.LoggerFactory.
func (f *PionFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return &pionLogger{
		logger: f.Logger.With("scope", scope),
		min:    f.Level,
	}
}

var _ pionlog.LoggerFactory = (*PionFactory)(nil)

type pionLogger struct {
	logger *slog.Logger
	min    slog.Level
}

func (l *pionLogger) log(level slog.Level, msg string) {
	if level < l.min {
		return
	}
	if len(msg) > MaxLineLength {
		msg = msg[:MaxLineLength] + "...(truncated)"
	}
	l.logger.Log(context.Background(), level, "pion_log", "line", msg)
}

func (l *pionLogger) Trace(msg string) { l.log(LevelTrace, msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) {
	l.log(LevelTrace, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Debug(msg string) { l.log(slog.LevelDebug, msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Info(msg string) { l.log(slog.LevelInfo, msg) }
func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Warn(msg string) { l.log(slog.LevelWarn, msg) }
func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Error(msg string) { l.log(slog.LevelError, msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}
