// Package logging builds the logrus logger shared by the driver and the CLI.
package logging

import (
	"io"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
)

// New returns an entry logging at level. debug forces DebugLevel so the
// driver's per-operation tracing is visible.
func New(level string, debug bool) (*logrus.Entry, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if debug {
		lvl = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(lvl)
	f := new(prefixed.TextFormatter)
	f.TimestampFormat = "2006-01-02 15:04:05.000"
	f.FullTimestamp = true
	f.PrefixPadding = 12
	logger.SetFormatter(f)
	return logrus.NewEntry(logger), nil
}

// Component tags entries with a prefix shown ahead of the message.
func Component(log *logrus.Entry, name string) *logrus.Entry {
	return log.WithField("prefix", name)
}

// Discard returns an entry that drops everything; for tests and tools that
// do not want output.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
