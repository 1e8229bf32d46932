// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package distribution

import (
	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/eventfanout/core/eventlog"
)

const (
	// ErrSourceClosed is returned by the feeder when its source stops
	// supplying events without reporting an error of its own.
	ErrSourceClosed = errors.ConstError("event source closed")
)

// Source supplies committed events, strictly ordered by position. It is
// normally a reader tailing the transaction log.
type Source interface {
	worker.Worker

	// Events returns the channel the source sends events on. The channel is
	// closed when the source stops.
	Events() <-chan eventlog.CommittedEvent
}

// Start binds the point to source: from now on only events read by this
// source, tagged with correlationID, are ingested. Binding a new source
// makes any previously bound one stale.
//
// The returned worker owns source and pumps its events into the point. It
// stops with an error satisfying errors.Is(err, ErrOrderingViolation) if the
// source ever goes backwards.
func (p *Point) Start(correlationID string, source Source) (worker.Worker, error) {
	if correlationID == "" {
		return nil, errors.NotValidf("empty correlation id")
	}
	if source == nil {
		return nil, errors.NotValidf("nil source")
	}

	p.mu.Lock()
	previous := p.correlationID
	p.correlationID = correlationID
	p.mu.Unlock()

	if previous != "" {
		p.logger.Infof("rebinding distribution point from source %q to %q", previous, correlationID)
	}

	f := &feeder{
		point:         p,
		correlationID: correlationID,
		source:        source,
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &f.catacomb,
		Work: f.loop,
		Init: []worker.Worker{source},
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return f, nil
}

// feeder pumps events from a source into the point.
type feeder struct {
	catacomb catacomb.Catacomb

	point         *Point
	correlationID string
	source        Source
}

// Kill is part of the worker.Worker interface.
func (f *feeder) Kill() {
	f.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (f *feeder) Wait() error {
	return f.catacomb.Wait()
}

func (f *feeder) loop() error {
	events := f.source.Events()
	for {
		select {
		case <-f.catacomb.Dying():
			return f.catacomb.ErrDying()
		case ev, ok := <-events:
			if !ok {
				return ErrSourceClosed
			}
			if err := f.point.Handle(f.correlationID, ev); err != nil {
				return errors.Trace(err)
			}
		}
	}
}
