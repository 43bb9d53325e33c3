package logflags

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used by every layer of the evaluator.
// Loggers are obtained from the per-layer constructors (EvalLogger,
// AgentLogger, ...) and enriched with fields scoped to one evaluation
// or one request.
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Error(args ...interface{})
}

// Fields are the structured fields attached to a Logger.
type Fields map[string]interface{}

// LoggerFactory builds the Logger of a layer. flag reports whether the
// layer was selected with --log-output; fields and out may be nil.
type LoggerFactory func(flag bool, fields Fields, out io.Writer) Logger

var loggerFactory LoggerFactory

// SetLoggerFactory replaces the logrus backed default used by every
// layer constructor. Passing nil restores the default.
func SetLoggerFactory(lf LoggerFactory) {
	loggerFactory = lf
}

// logrusLogger adapts a logrus entry to Logger, keeping the fields
// chained by WithField and WithFields.
type logrusLogger struct {
	*logrus.Entry
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{l.Entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{l.Entry.WithFields(logrus.Fields(fields))}
}
