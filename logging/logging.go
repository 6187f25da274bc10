// Package logging provides the structured logger shared by the
// staging, checkout and reference subsystems. Call SetLogger to
// redirect output; the default logs to stderr at info level.
package logging

import (
	"github.com/sirupsen/logrus"
)

var log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLogger replaces the package logger, e.g. so a host application
// can route repository log lines into its own sink.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		return
	}
	log = l
}

// Log returns the current logger.
func Log() *logrus.Logger {
	return log
}

// WithField is a convenience wrapper around Log().WithField.
func WithField(key string, value any) *logrus.Entry {
	return log.WithField(key, value)
}
