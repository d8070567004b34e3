// Package logging builds the logrus logger used by both binaries.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New returns a text logger writing to out at the named level
// ("debug", "info", "warn", ...). Empty selects info.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// Discard returns a logger that drops everything. Used where a caller has
// no logger to hand, such as tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
