// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/eventfanout/core/eventlog"
	"github.com/juju/eventfanout/internal/catchup"
	"github.com/juju/eventfanout/internal/config"
	"github.com/juju/eventfanout/internal/distribution"
	"github.com/juju/eventfanout/internal/introspection"
	"github.com/juju/eventfanout/internal/logging"
	"github.com/juju/eventfanout/internal/txlog"
	"github.com/juju/eventfanout/internal/wire"
)

type daemonConfig struct {
	Config  config.Config
	Logging *logging.Logging

	// Tail, when set, is the prepare position a stdout subscriber resumes
	// after.
	Tail   *int64
	Stdout io.Writer
	Clock  clock.Clock
}

// daemon owns every worker of the process. If any of them fails the rest
// are stopped.
type daemon struct {
	catacomb catacomb.Catacomb

	store     *txlog.Store
	closeOnce sync.Once
	point     *distribution.Point
	registry  *prometheus.Registry
	addr      net.Addr
}

func newDaemon(ctx context.Context, dc daemonConfig) (*daemon, error) {
	cfg := dc.Config
	logger := dc.Logging.Logger("eventfanout")

	store, err := txlog.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d := &daemon{
		store:    store,
		registry: prometheus.NewRegistry(),
	}
	workers, err := d.start(ctx, dc)
	if err != nil {
		_ = store.Close()
		return nil, errors.Trace(err)
	}

	if err := catacomb.Invoke(catacomb.Plan{
		Site: &d.catacomb,
		Work: d.loop,
		Init: workers,
	}); err != nil {
		stopAll(workers)
		_ = store.Close()
		return nil, errors.Trace(err)
	}
	logger.Infof("distribution point running with capacity %d on %q", cfg.Capacity, cfg.DatabasePath)
	return d, nil
}

func (d *daemon) start(ctx context.Context, dc daemonConfig) (workers []worker.Worker, err error) {
	cfg := dc.Config
	logs := dc.Logging
	defer func() {
		if err != nil {
			stopAll(workers)
		}
	}()

	metrics := distribution.NewMetricsCollector()
	if err := d.registry.Register(metrics); err != nil {
		return nil, errors.Trace(err)
	}
	d.point, err = distribution.NewPoint(distribution.Config{
		Capacity: cfg.Capacity,
		Logger:   logs.Logger("eventfanout.distribution"),
		Metrics:  metrics,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	// Every event already in the log committed at or before the head, so
	// the point starts with its tip there and sends anyone further back to
	// the log.
	head, err := d.store.Head(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if head != eventlog.BeforeTime {
		if err := d.point.Ingest(eventlog.PositionOnly(head.Commit)); err != nil {
			return nil, errors.Trace(err)
		}
	}

	reader, err := txlog.NewReader(txlog.ReaderConfig{
		Log:          d.store,
		From:         head,
		BatchSize:    cfg.ReadBatchSize,
		PollInterval: cfg.PollInterval,
		Clock:        dc.Clock,
		Logger:       logs.Logger("eventfanout.txlog"),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	feeder, err := d.point.Start(uuid.NewString(), reader)
	if err != nil {
		reader.Kill()
		return nil, errors.Trace(err)
	}
	workers = append(workers, feeder)

	if dc.Tail != nil {
		tailWorkers, err := d.startTail(dc, *dc.Tail)
		workers = append(workers, tailWorkers...)
		if err != nil {
			return workers, errors.Trace(err)
		}
	}

	if cfg.MetricsAddress != "" {
		listener, err := net.Listen("tcp", cfg.MetricsAddress)
		if err != nil {
			return workers, errors.Annotatef(err, "listening on %q", cfg.MetricsAddress)
		}
		server, err := introspection.NewServer(introspection.Config{
			Listener: listener,
			Reporter: d.point,
			Gatherer: d.registry,
			Logger:   logs.Logger("eventfanout.introspection"),
		})
		if err != nil {
			_ = listener.Close()
			return workers, errors.Trace(err)
		}
		d.addr = server.Addr()
		workers = append(workers, server)
	}
	return workers, nil
}

func (d *daemon) startTail(dc daemonConfig, prepare int64) ([]worker.Worker, error) {
	cfg := dc.Config
	logs := dc.Logging
	writer, err := wire.NewStreamWriter(wire.StreamConfig{
		Writer:    dc.Stdout,
		Version:   cfg.ProtocolVersion,
		QueueSize: cfg.QueueSize,
		Logger:    logs.Logger("eventfanout.wire"),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	subscriber, err := catchup.NewSubscriber(catchup.Config{
		ID:            "tail-" + uuid.NewString(),
		Point:         d.point,
		Log:           d.store,
		Target:        writer,
		From:          eventlog.FromPosition(eventlog.LogPosition{Commit: prepare, Prepare: prepare}),
		BatchSize:     cfg.ReadBatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		Clock:         dc.Clock,
		Logger:        logs.Logger("eventfanout.catchup"),
	})
	if err != nil {
		return []worker.Worker{writer}, errors.Trace(err)
	}
	return []worker.Worker{writer, subscriber}, nil
}

// Kill is part of the worker.Worker interface.
func (d *daemon) Kill() {
	d.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface. The transaction log is
// closed once every worker has stopped.
func (d *daemon) Wait() error {
	err := d.catacomb.Wait()
	d.closeOnce.Do(func() {
		if cerr := d.store.Close(); cerr != nil && err == nil {
			err = errors.Annotate(cerr, "closing transaction log")
		}
	})
	return err
}

func (d *daemon) loop() error {
	<-d.catacomb.Dying()
	return d.catacomb.ErrDying()
}

func stopAll(workers []worker.Worker) {
	for _, w := range workers {
		_ = worker.Stop(w)
	}
}
