// Package logging builds the logrus logger every run shares.
package logging

import (
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// New returns a text logger writing to out at the named level.
func New(out io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.Out = out
	l.Level = lvl
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	}
	return l, nil
}

// ForRun tags every entry with a fresh run id so the lines of concurrent
// invocations sharing a log can be told apart.
func ForRun(l logrus.FieldLogger) *logrus.Entry {
	return l.WithField("run", uuid.NewString())
}
