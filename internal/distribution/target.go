// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package distribution

import (
	"io"
	"sync"

	"github.com/juju/errors"

	"github.com/juju/eventfanout/core/eventlog"
)

const (
	// ErrQueueOverflow is returned by a Queue that has no room for another
	// event. The point disconnects the subscription when it sees it.
	ErrQueueOverflow = errors.ConstError("subscription queue overflow")

	// ErrTargetClosed is returned when delivering to a target that has
	// already been closed.
	ErrTargetClosed = errors.ConstError("subscription target closed")
)

// Target receives the events of a single subscription.
//
// Deliver is called with the point's lock held, so it must not block and
// must not call back into the point. A target that cannot accept an event
// returns an error and is removed from the point; the error never reaches
// the ingestion path.
//
// Targets that also implement io.Closer are closed when their subscription
// is removed, whether by Unsubscribe or after a failed delivery.
type Target interface {
	Deliver(eventlog.CommittedEvent) error
}

// TargetFunc adapts an in-process callback to Target.
type TargetFunc func(eventlog.CommittedEvent) error

// Deliver is part of the Target interface.
func (f TargetFunc) Deliver(ev eventlog.CommittedEvent) error {
	return f(ev)
}

// Queue is a bounded Target that hands events to a consumer goroutine.
// Enqueueing never blocks: a full queue fails the delivery.
type Queue struct {
	events chan eventlog.CommittedEvent
	done   chan struct{}
	once   sync.Once
}

// NewQueue returns a queue holding at most size undelivered events.
func NewQueue(size int) *Queue {
	return &Queue{
		events: make(chan eventlog.CommittedEvent, size),
		done:   make(chan struct{}),
	}
}

// Deliver is part of the Target interface.
func (q *Queue) Deliver(ev eventlog.CommittedEvent) error {
	select {
	case <-q.done:
		return ErrTargetClosed
	default:
	}

	select {
	case q.events <- ev:
		return nil
	default:
		return errors.Annotatef(ErrQueueOverflow, "%d events pending", cap(q.events))
	}
}

// Events returns the channel the consumer reads delivered events from. It is
// never closed; consumers should also select on Done.
func (q *Queue) Events() <-chan eventlog.CommittedEvent {
	return q.events
}

// Done is closed once the subscription has been removed.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close marks the queue as closed. It is safe to call more than once.
func (q *Queue) Close() error {
	q.once.Do(func() {
		close(q.done)
	})
	return nil
}

// ChannelTarget delivers to a channel owned by the caller. Sends never
// block; a full channel fails the delivery.
type ChannelTarget chan<- eventlog.CommittedEvent

// Deliver is part of the Target interface.
func (ch ChannelTarget) Deliver(ev eventlog.CommittedEvent) error {
	select {
	case ch <- ev:
		return nil
	default:
		return errors.Annotatef(ErrQueueOverflow, "channel of %d full", cap(ch))
	}
}

func closeTarget(target Target) error {
	closer, ok := target.(io.Closer)
	if !ok {
		return nil
	}
	return errors.Trace(closer.Close())
}
