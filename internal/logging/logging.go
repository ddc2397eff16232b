// Package logging provides the process-wide structured logger. It defaults
// to JSON on stdout at info level; main calls Configure once configuration
// is loaded.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Configure applies the loaded configuration: log level and an optional
// log file mirrored alongside stdout. An unparseable level keeps the info
// default; an unopenable file keeps stdout-only output. Neither failure
// stops the server over its own logging.
func Configure(level, filePath string) {
	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			Log.SetLevel(lvl)
		} else {
			Log.WithField("level", level).Warn("unknown log level, keeping info")
		}
	}
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Log.WithError(err).Warn("log file unavailable, logging to stdout only")
			return
		}
		Log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
}
