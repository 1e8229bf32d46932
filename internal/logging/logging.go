// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package logging sets up the daemon's loggers.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"
)

// LogFileName is the name of the log file written under the logs path.
const LogFileName = "eventfanoutd.log"

// Config defines where log output goes.
type Config struct {
	// LoggingConfig is a loggo specification such as
	// "<root>=INFO;eventfanout.distribution=DEBUG".
	LoggingConfig string

	// LogsPath is the directory of the rotating log file. When empty,
	// output only goes to Stderr.
	LogsPath   string
	MaxSizeMB  int
	MaxBackups int

	Stderr io.Writer
}

// Validate returns an error if config cannot be used for logging.
func (config Config) Validate() error {
	if config.Stderr == nil {
		return errors.NotValidf("nil Stderr")
	}
	if config.LogsPath != "" && config.MaxSizeMB <= 0 {
		return errors.NotValidf("max size %d MB", config.MaxSizeMB)
	}
	if _, err := loggo.ParseConfigString(config.LoggingConfig); err != nil {
		return errors.NewNotValid(err, "logging config")
	}
	return nil
}

// Logging holds the configured logging context.
type Logging struct {
	context *loggo.Context
	file    *lumberjack.Logger
}

// Setup returns a logging context writing to Stderr and, if a logs path is
// configured, to a rotating file in that directory.
func Setup(config Config) (*Logging, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	context := loggo.NewContext(loggo.INFO)
	if err := context.AddWriter("stderr", loggo.NewSimpleWriter(config.Stderr, loggo.DefaultFormatter)); err != nil {
		return nil, errors.Trace(err)
	}

	l := &Logging{context: context}
	if config.LogsPath != "" {
		if err := os.MkdirAll(config.LogsPath, 0755); err != nil {
			return nil, errors.Annotatef(err, "creating logs path %q", config.LogsPath)
		}
		l.file = &lumberjack.Logger{
			Filename:   filepath.Join(config.LogsPath, LogFileName),
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			Compress:   true,
		}
		if err := context.AddWriter("file", loggo.NewSimpleWriter(l.file, loggo.DefaultFormatter)); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if err := context.ConfigureLoggers(config.LoggingConfig); err != nil {
		return nil, errors.Trace(err)
	}
	if l.file != nil {
		context.GetLogger("eventfanout").Debugf(
			"created rotating log file %q with max size %d MB and max backups %d",
			l.file.Filename, l.file.MaxSize, l.file.MaxBackups)
	}
	return l, nil
}

// Logger returns the named logger.
func (l *Logging) Logger(name string) loggo.Logger {
	return l.context.GetLogger(name)
}

// LogFile returns the path of the log file, or "" when logging only to
// stderr.
func (l *Logging) LogFile() string {
	if l.file == nil {
		return ""
	}
	return l.file.Filename
}

// Close flushes and closes the log file, if there is one.
func (l *Logging) Close() error {
	if l.file == nil {
		return nil
	}
	return errors.Trace(l.file.Close())
}
