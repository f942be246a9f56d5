// Package logging provides the logger interface used throughout the
// translator and a standard implementation backed by logrus.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Level log level for Logger.
type Level uint8

const (
	// Error error log level.
	Error Level = iota
	// Warn warn log level.
	Warn
	// Info info log level.
	Info
	// Debug debug log level.
	Debug
)

// Logger provides the interface for logger implementations.
type Logger interface {
	Debug(fmt string, a ...interface{})
	Info(fmt string, a ...interface{})
	Error(fmt string, a ...interface{})
	Warn(fmt string, a ...interface{})

	WithFields(fields map[string]interface{}) Logger

	GetLevel() Level
	SetLevel(level Level)
}

// StandardLogger is the default logger implementation, backed by logrus.
type StandardLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
}

// New returns a new standard logger.
func New() *StandardLogger {
	return &StandardLogger{logger: logrus.New()}
}

// SetOutput sets the underlying logrus output.
func (l *StandardLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// SetFormatter sets the underlying logrus formatter.
func (l *StandardLogger) SetFormatter(formatter logrus.Formatter) {
	l.logger.SetFormatter(formatter)
}

// WithFields provides additional fields to include in log output.
func (l *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	cpy := *l
	cpy.fields = make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		cpy.fields[k] = v
	}
	for k, v := range fields {
		cpy.fields[k] = v
	}
	return &cpy
}

// SetLevel sets the standard logger level.
func (l *StandardLogger) SetLevel(level Level) {
	var logrusLevel logrus.Level
	switch level {
	case Error:
		logrusLevel = logrus.ErrorLevel
	case Warn:
		logrusLevel = logrus.WarnLevel
	case Info:
		logrusLevel = logrus.InfoLevel
	case Debug:
		logrusLevel = logrus.DebugLevel
	}
	l.logger.SetLevel(logrusLevel)
}

// GetLevel returns the standard logger level.
func (l *StandardLogger) GetLevel() Level {
	switch l.logger.GetLevel() {
	case logrus.ErrorLevel:
		return Error
	case logrus.WarnLevel:
		return Warn
	case logrus.InfoLevel:
		return Info
	default:
		return Debug
	}
}

// Debug logs at debug level.
func (l *StandardLogger) Debug(fmt string, a ...interface{}) {
	l.logger.WithFields(l.fields).Debugf(fmt, a...)
}

// Info logs at info level.
func (l *StandardLogger) Info(fmt string, a ...interface{}) {
	l.logger.WithFields(l.fields).Infof(fmt, a...)
}

// Error logs at error level.
func (l *StandardLogger) Error(fmt string, a ...interface{}) {
	l.logger.WithFields(l.fields).Errorf(fmt, a...)
}

// Warn logs at warn level.
func (l *StandardLogger) Warn(fmt string, a ...interface{}) {
	l.logger.WithFields(l.fields).Warnf(fmt, a...)
}

// NoOpLogger is a logging implementation that discards everything.
type NoOpLogger struct {
	level Level
}

// NewNoOpLogger instantiates a new NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{level: Info}
}

// WithFields returns the logger unchanged.
func (l *NoOpLogger) WithFields(map[string]interface{}) Logger { return l }

// Debug discards the message.
func (*NoOpLogger) Debug(string, ...interface{}) {}

// Info discards the message.
func (*NoOpLogger) Info(string, ...interface{}) {}

// Error discards the message.
func (*NoOpLogger) Error(string, ...interface{}) {}

// Warn discards the message.
func (*NoOpLogger) Warn(string, ...interface{}) {}

// SetLevel records the level.
func (l *NoOpLogger) SetLevel(level Level) { l.level = level }

// GetLevel returns the recorded level.
func (l *NoOpLogger) GetLevel() Level { return l.level }
