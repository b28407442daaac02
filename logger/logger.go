// file: logger/logger.go

package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared application logger. It is usable before Init, which only
// applies level and format.
var Log = logrus.New()

// Init configures the shared logger. An empty level defaults to info, and any
// format other than "text" produces JSON lines.
func Init(opts ...Option) {
	o := options{level: "info", format: "json"}
	for _, opt := range opts {
		opt(&o)
	}

	Log.SetOutput(os.Stdout)

	if o.format == "text" {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		Log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(o.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
}

type options struct {
	level  string
	format string
}

// Option customises Init.
type Option func(*options)

// WithLevel sets the minimum level ("debug", "info", "warn", ...).
func WithLevel(level string) Option {
	return func(o *options) {
		if level != "" {
			o.level = level
		}
	}
}

// WithFormat selects "json" or "text" output.
func WithFormat(format string) Option {
	return func(o *options) {
		if format != "" {
			o.format = format
		}
	}
}
