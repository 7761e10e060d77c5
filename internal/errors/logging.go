package errors

import (
	"github.com/sirupsen/logrus"
)

// Logger logs errors with their code, retryability and context as fields.
type Logger struct {
	*logrus.Logger
}

// NewLogger returns a Logger with JSON output.
func NewLogger() *Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return WrapLogger(logger)
}

func WrapLogger(logger *logrus.Logger) *Logger {
	return &Logger{Logger: logger}
}

// Fields flattens an AppError into log fields. Non-AppErrors yield none.
func Fields(err error) logrus.Fields {
	appErr, ok := As(err)
	if !ok {
		return logrus.Fields{}
	}
	fields := make(logrus.Fields, len(appErr.Context)+2)
	for k, v := range appErr.Context {
		fields[k] = v
	}
	fields["error_code"] = appErr.Code
	fields["retryable"] = appErr.Retryable
	return fields
}

func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err).WithFields(Fields(err))
}

func (l *Logger) LogError(err error, message string, extra ...logrus.Fields) {
	l.log(logrus.ErrorLevel, err, message, extra)
}

func (l *Logger) LogWarn(err error, message string, extra ...logrus.Fields) {
	l.log(logrus.WarnLevel, err, message, extra)
}

// LogRetryableError downgrades retryable failures to warn.
func (l *Logger) LogRetryableError(err error, message string, extra ...logrus.Fields) {
	level := logrus.ErrorLevel
	if IsRetryable(err) {
		level = logrus.WarnLevel
	}
	l.log(level, err, message, extra)
}

func (l *Logger) log(level logrus.Level, err error, message string, extra []logrus.Fields) {
	entry := l.WithError(err)
	for _, f := range extra {
		entry = entry.WithFields(f)
	}
	entry.Log(level, message)
}
