// Package applogger builds the process-wide logrus logger.
package applogger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to stdout at the named level. An unknown
// level falls back to info.
func New(level string) *logrus.Logger {
	return NewWithOutput(level, os.Stdout)
}

func NewWithOutput(level string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
