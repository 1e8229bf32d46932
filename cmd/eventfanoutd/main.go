// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command eventfanoutd tails a SQLite transaction log and fans its events
// out to in-process subscribers through a distribution point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/eventfanout/internal/config"
	"github.com/juju/eventfanout/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(Main(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// flags holds the parsed command line.
type flags struct {
	configPath string
	logsPath   string
	tail       string
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := gnuflag.NewFlagSet("eventfanoutd", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "path of the YAML configuration file")
	fs.StringVar(&f.logsPath, "logspath", "", "directory to write the log file to, overriding logs-path")
	fs.StringVar(&f.tail, "tail", "", "write every event after this prepare position to stdout")
	if err := fs.Parse(true, args); err != nil {
		return flags{}, err
	}
	if fs.NArg() > 0 {
		return flags{}, errors.Errorf("unrecognised arguments: %v", fs.Args())
	}
	return f, nil
}

// Main runs the daemon until ctx is done or a worker fails, returning the
// process exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err == gnuflag.ErrHelp {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}
	if err := run(ctx, f, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, f flags, stdout, stderr io.Writer) error {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Read(f.configPath); err != nil {
			return errors.Trace(err)
		}
	}
	if f.logsPath != "" {
		cfg.LogsPath = f.logsPath
	}

	var tail *int64
	if f.tail != "" {
		prepare, err := strconv.ParseInt(f.tail, 10, 64)
		if err != nil {
			return errors.NotValidf("tail position %q", f.tail)
		}
		tail = &prepare
	}

	logs, err := logging.Setup(logging.Config{
		LoggingConfig: cfg.LoggingConfig,
		LogsPath:      cfg.LogsPath,
		MaxSizeMB:     cfg.LogMaxSizeMB,
		MaxBackups:    cfg.LogMaxBackups,
		Stderr:        stderr,
	})
	if err != nil {
		return errors.Annotate(err, "setting up logging")
	}
	defer func() { _ = logs.Close() }()

	d, err := newDaemon(ctx, daemonConfig{
		Config:  cfg,
		Logging: logs,
		Tail:    tail,
		Stdout:  stdout,
		Clock:   clock.WallClock,
	})
	if err != nil {
		return errors.Trace(err)
	}

	select {
	case <-ctx.Done():
		logs.Logger("eventfanout").Infof("shutting down")
		d.Kill()
	case <-d.catacomb.Dying():
	}
	return errors.Trace(d.Wait())
}
