// Package logger configures the process-wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Format selects the log encoding.
type Format string

const (
	// FormatText is for humans on a terminal.
	FormatText Format = "text"
	// FormatJSON is for the server, whose logs are collected.
	FormatJSON Format = "json"
)

// Options configure Setup.
type Options struct {
	// Level is a logrus level name. Empty means info.
	Level string
	// Debug forces the debug level regardless of Level.
	Debug  bool
	Format Format
	// Service is attached to every JSON entry when set.
	Service string
	Output  io.Writer
}

// Setup configures the standard logrus logger.
func Setup(opts Options) error {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("logrus.ParseLevel(%s) > %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Debug {
		level = logrus.DebugLevel
	}

	logger := logrus.StandardLogger()
	logger.SetLevel(level)
	logger.SetReportCaller(opts.Debug)

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	logger.SetOutput(output)

	switch opts.Format {
	case FormatJSON:
		formatter := &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
		if opts.Service != "" {
			logger.SetFormatter(serviceFormatter{service: opts.Service, next: formatter})
		} else {
			logger.SetFormatter(formatter)
		}
	case FormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			DisableTimestamp: !opts.Debug,
		})
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}
	return nil
}

type serviceFormatter struct {
	service string
	next    logrus.Formatter
}

func (f serviceFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if _, ok := entry.Data["service"]; !ok {
		data := make(logrus.Fields, len(entry.Data)+1)
		for k, v := range entry.Data {
			data[k] = v
		}
		data["service"] = f.service
		clone := *entry
		clone.Data = data
		entry = &clone
	}
	return f.next.Format(entry)
}
