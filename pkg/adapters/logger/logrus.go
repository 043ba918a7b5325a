package logger

import (
	"github.com/sirupsen/logrus"
	"github.com/user/filterbox/pkg/ports"
)

// LogrusLogger adapts a logrus logger to ports.Logger. It is the
// structured alternative to the console logger for daemon use, where
// log lines are consumed by tooling rather than a terminal.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus creates a logger backed by the given logrus instance.
func NewLogrus(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// NewLogrusDefault creates a logrus-backed logger at the given level.
func NewLogrusDefault(level ports.LogLevel) *LogrusLogger {
	l := logrus.New()
	switch level {
	case ports.LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case ports.LevelInfo:
		l.SetLevel(logrus.InfoLevel)
	case ports.LevelWarn:
		l.SetLevel(logrus.WarnLevel)
	default:
		l.SetLevel(logrus.ErrorLevel)
	}
	return NewLogrus(l)
}

func (l *LogrusLogger) Debug(msg string, args ...interface{}) {
	l.entry.Debugf(msg, args...)
}

func (l *LogrusLogger) Info(msg string, args ...interface{}) {
	l.entry.Infof(msg, args...)
}

func (l *LogrusLogger) Warn(msg string, args ...interface{}) {
	l.entry.Warnf(msg, args...)
}

func (l *LogrusLogger) Error(msg string, args ...interface{}) {
	l.entry.Errorf(msg, args...)
}

// WithComponent returns a logger tagged with a component field.
func (l *LogrusLogger) WithComponent(component string) ports.Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields{"component": component})}
}

var _ ports.Logger = (*LogrusLogger)(nil)
