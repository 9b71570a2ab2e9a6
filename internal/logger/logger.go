// Package logger wraps logrus with the JSON field layout the rest of the
// service expects. Every component gets its own entry via New so log lines
// can be filtered by component name.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus instance. level accepts the usual
// logrus level names ("debug", "info", ...); anything unparseable falls
// back to info.
func Init(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logrus.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// New returns an entry tagged with the given component name.
func New(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
