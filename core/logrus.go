package core

import (
	"fmt"
	"io"

	"github.com/signatory-io/sigengine/logger"
	"github.com/sirupsen/logrus"
)

// Log output formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// logrusBackend is implemented by both *logrus.Logger and *logrus.Entry
type logrusBackend interface {
	Logf(level logrus.Level, format string, args ...any)
	Log(level logrus.Level, args ...any)
	WithField(key string, value any) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	Errorf(format string, args ...any)
	Error(args ...any)
	Warnf(format string, args ...any)
	Warn(args ...any)
	Infof(format string, args ...any)
	Info(args ...any)
	Debugf(format string, args ...any)
	Debug(args ...any)
	Tracef(format string, args ...any)
	Trace(args ...any)
}

type logrusLogger struct {
	logrusBackend
}

func logrusLevel(l logger.Level) logrus.Level {
	switch l {
	case logger.LevelDebug:
		return logrus.DebugLevel
	case logger.LevelError:
		return logrus.ErrorLevel
	case logger.LevelTrace:
		return logrus.TraceLevel
	case logger.LevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

func (l logrusLogger) Logf(level logger.Level, format string, args ...any) {
	l.logrusBackend.Logf(logrusLevel(level), format, args...)
}

func (l logrusLogger) Log(level logger.Level, args ...any) {
	l.logrusBackend.Log(logrusLevel(level), args...)
}

func (l logrusLogger) With(field string, value any) logger.Logger {
	return logrusLogger{l.logrusBackend.WithField(field, value)}
}

func (l logrusLogger) WithFields(fields map[string]any) logger.Logger {
	return logrusLogger{l.logrusBackend.WithFields(fields)}
}

// NewLogger returns a logrus backed logger writing to w in the given format.
// An empty format means text.
func NewLogger(w io.Writer, level logger.Level, format string) (logger.Logger, error) {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrusLevel(level))
	switch format {
	case "", LogFormatText:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case LogFormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	return logrusLogger{l}, nil
}

var _ logger.Logger = logrusLogger{}
