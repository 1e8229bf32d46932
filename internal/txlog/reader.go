// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txlog

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/eventfanout/core/eventlog"
)

// Logger represents the methods used by this package to log.
type Logger interface {
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// LogReader reads the log forward from a position.
type LogReader interface {
	ReadForward(ctx context.Context, after eventlog.LogPosition, limit int) ([]eventlog.CommittedEvent, error)
}

// ReaderConfig defines the operation of a Reader.
type ReaderConfig struct {
	Log LogReader

	// From is the position the reader starts after.
	From eventlog.LogPosition

	BatchSize    int
	PollInterval time.Duration
	Clock        clock.Clock
	Logger       Logger
}

// Validate returns an error if config cannot drive a Reader.
func (config ReaderConfig) Validate() error {
	if config.Log == nil {
		return errors.NotValidf("nil Log")
	}
	if config.BatchSize <= 0 {
		return errors.NotValidf("batch size %d", config.BatchSize)
	}
	if config.PollInterval <= 0 {
		return errors.NotValidf("poll interval %v", config.PollInterval)
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Reader tails the log and sends every event after its start position, in
// log order. It is the ingestion source of a distribution point.
type Reader struct {
	catacomb catacomb.Catacomb

	config ReaderConfig
	events chan eventlog.CommittedEvent
}

// NewReader starts a Reader.
func NewReader(config ReaderConfig) (*Reader, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	r := &Reader{
		config: config,
		events: make(chan eventlog.CommittedEvent),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &r.catacomb,
		Work: r.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

// Events returns the channel events are sent on. It is closed when the
// reader stops.
func (r *Reader) Events() <-chan eventlog.CommittedEvent {
	return r.events
}

// Kill is part of the worker.Worker interface.
func (r *Reader) Kill() {
	r.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (r *Reader) Wait() error {
	return r.catacomb.Wait()
}

func (r *Reader) loop() error {
	defer close(r.events)

	ctx := r.catacomb.Context(context.Background())

	after := r.config.From
	timer := r.config.Clock.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-r.catacomb.Dying():
			return r.catacomb.ErrDying()
		case <-timer.Chan():
		}

		batch, err := r.config.Log.ReadForward(ctx, after, r.config.BatchSize)
		if IsErrRetryable(err) {
			r.config.Logger.Debugf("reading after %v: %v, retrying", after, err)
			timer.Reset(r.config.PollInterval)
			continue
		} else if err != nil {
			select {
			case <-r.catacomb.Dying():
				return r.catacomb.ErrDying()
			default:
			}
			return errors.Trace(err)
		}

		for _, ev := range batch {
			select {
			case <-r.catacomb.Dying():
				return r.catacomb.ErrDying()
			case r.events <- ev:
			}
			after = ev.Position
		}
		r.config.Logger.Tracef("read %d events, now after %v", len(batch), after)

		// A full batch means there is probably more to read straight away.
		if len(batch) == r.config.BatchSize {
			timer.Reset(0)
		} else {
			timer.Reset(r.config.PollInterval)
		}
	}
}
