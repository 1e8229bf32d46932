// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package distribution

import (
	"github.com/juju/errors"

	"github.com/juju/eventfanout/core/eventlog"
)

const (
	// ErrOrderingViolation is returned when an ingested event does not
	// strictly follow the last ingested position. The log reader is required
	// to supply a strictly increasing stream, so this is never retried.
	ErrOrderingViolation = errors.ConstError("ordering violation")
)

// orderingGuard tracks the last accepted position and refuses anything that
// does not move strictly forward.
type orderingGuard struct {
	// last is the most recently accepted position of either kind.
	last eventlog.LogPosition
	// lastEvent is the most recently accepted deliverable event position.
	// The commit position of a position-only advance carries no ordering
	// information, so events are always checked against this instead.
	lastEvent eventlog.LogPosition
}

func newOrderingGuard() orderingGuard {
	return orderingGuard{
		last:      eventlog.BeforeTime,
		lastEvent: eventlog.BeforeTime,
	}
}

// advance accepts pos as the new last position, or returns an error
// satisfying errors.Is(err, ErrOrderingViolation).
//
// A position-only advance is exempt from the commit comparison but its
// prepare position must still move forward.
func (g *orderingGuard) advance(pos eventlog.LogPosition) error {
	if pos.IsPositionOnly() {
		if pos.Prepare <= g.last.Prepare {
			return errors.Annotatef(ErrOrderingViolation,
				"position-only advance to prepare %d does not follow %v", pos.Prepare, g.last)
		}
		g.last = pos
		return nil
	}

	if !pos.After(g.lastEvent) {
		return errors.Annotatef(ErrOrderingViolation,
			"event at %v does not follow %v", pos, g.lastEvent)
	}
	g.last = pos
	g.lastEvent = pos
	return nil
}
