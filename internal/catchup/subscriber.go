// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package catchup provides a subscriber that starts anywhere in the log.
//
// The distribution point only admits subscribers whose checkpoint its
// retention window still covers. A catch-up subscriber reads whatever
// history the point has dropped from the durable log, then hands itself
// over to the point once the window has caught up with it.
package catchup

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/eventfanout/core/eventlog"
	"github.com/juju/eventfanout/internal/distribution"
	"github.com/juju/eventfanout/internal/txlog"
)

const (
	// ErrSubscriptionRemoved is returned by a subscriber whose live
	// subscription was dropped by the distribution point, usually because
	// its target could not keep up.
	ErrSubscriptionRemoved = errors.ConstError("subscription removed")
)

// Logger represents the methods used by the subscriber to log.
type Logger interface {
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Point is the part of the distribution point a subscriber uses.
type Point interface {
	TrySubscribe(id string, target distribution.Target, checkpoint eventlog.CheckpointTag) (bool, error)
	TrySubscribeAfter(id string, target distribution.Target, after eventlog.LogPosition) (bool, error)
	Unsubscribe(id string)
}

// Config defines the operation of a Subscriber.
type Config struct {
	// ID identifies the subscription at the point.
	ID string

	Point  Point
	Log    txlog.LogReader
	Target distribution.Target

	// From is the checkpoint the subscriber resumes after.
	From eventlog.CheckpointTag

	BatchSize    int
	PollInterval time.Duration

	// RetryAttempts and RetryDelay bound retries of transient log read
	// failures. The delay doubles after every attempt.
	RetryAttempts int
	RetryDelay    time.Duration

	Clock  clock.Clock
	Logger Logger
}

// Validate returns an error if config cannot drive a Subscriber.
func (config Config) Validate() error {
	if config.ID == "" {
		return errors.NotValidf("empty ID")
	}
	if config.Point == nil {
		return errors.NotValidf("nil Point")
	}
	if config.Log == nil {
		return errors.NotValidf("nil Log")
	}
	if config.Target == nil {
		return errors.NotValidf("nil Target")
	}
	if config.BatchSize <= 0 {
		return errors.NotValidf("batch size %d", config.BatchSize)
	}
	if config.PollInterval <= 0 {
		return errors.NotValidf("poll interval %v", config.PollInterval)
	}
	if config.RetryAttempts <= 0 {
		return errors.NotValidf("retry attempts %d", config.RetryAttempts)
	}
	if config.RetryDelay <= 0 {
		return errors.NotValidf("retry delay %v", config.RetryDelay)
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Subscriber is a worker that delivers every event after its checkpoint to
// its target exactly once and in order, reading from the log until the
// distribution point admits it.
type Subscriber struct {
	catacomb catacomb.Catacomb

	config Config
	target *handoffTarget

	mu   sync.Mutex
	live bool
}

// NewSubscriber starts a Subscriber.
func NewSubscriber(config Config) (*Subscriber, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	s := &Subscriber{
		config: config,
		target: newHandoffTarget(config.Target, config.From.PreparePosition),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &s.catacomb,
		Work: s.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return s, nil
}

// Live reports whether the point has admitted the subscription.
func (s *Subscriber) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Kill is part of the worker.Worker interface.
func (s *Subscriber) Kill() {
	s.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (s *Subscriber) Wait() error {
	return s.catacomb.Wait()
}

func (s *Subscriber) loop() error {
	defer s.release()

	ctx := s.catacomb.Context(context.Background())

	// The checkpoint is only good for the first attempt. After reading from
	// the log the subscriber knows exactly which position it has reached,
	// and asks to be admitted after that instead.
	checkpoint := s.config.From
	after := eventlog.LogPosition{Commit: checkpoint.PreparePosition, Prepare: checkpoint.PreparePosition}
	ok, err := s.config.Point.TrySubscribe(s.config.ID, s.target, checkpoint)
	if err != nil {
		return errors.Annotatef(err, "subscribing from %v", checkpoint)
	}

	for !ok {
		batch, err := s.readBatch(ctx, after)
		if err != nil {
			return errors.Trace(err)
		}
		for _, ev := range batch {
			if err := s.target.Deliver(ev); err != nil {
				return errors.Annotatef(err, "delivering %v", ev.Position)
			}
			after = ev.Position
		}
		s.config.Logger.Tracef("subscription %q read %d events, now after %v", s.config.ID, len(batch), after)

		if len(batch) == s.config.BatchSize {
			continue
		}

		// Only try once the log is exhausted: the point may never have
		// ingested anything older than what it holds now.
		ok, err = s.config.Point.TrySubscribeAfter(s.config.ID, s.target, after)
		if err != nil {
			return errors.Annotatef(err, "subscribing after %v", after)
		}
		if ok || len(batch) > 0 {
			continue
		}
		// The log has nothing newer, so the point has not caught up yet.
		select {
		case <-s.catacomb.Dying():
			return s.catacomb.ErrDying()
		case <-s.config.Clock.After(s.config.PollInterval):
		}
	}

	s.setLive()
	s.config.Logger.Debugf("subscription %q is live after %v", s.config.ID, after)
	select {
	case <-s.catacomb.Dying():
		return s.catacomb.ErrDying()
	case <-s.target.removed:
		return ErrSubscriptionRemoved
	}
}

func (s *Subscriber) readBatch(ctx context.Context, after eventlog.LogPosition) ([]eventlog.CommittedEvent, error) {
	var batch []eventlog.CommittedEvent
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			batch, err = s.config.Log.ReadForward(ctx, after, s.config.BatchSize)
			return err
		},
		IsFatalError: func(err error) bool {
			return !txlog.IsErrRetryable(err)
		},
		NotifyFunc: func(err error, attempt int) {
			s.config.Logger.Debugf("reading log after %v, attempt %d: %v", after, attempt, err)
		},
		Attempts:    s.config.RetryAttempts,
		Delay:       s.config.RetryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       s.config.Clock,
		Stop:        s.catacomb.Dying(),
	})
	if retry.IsRetryStopped(err) {
		return nil, s.catacomb.ErrDying()
	}
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "reading log after %v", after)
	}
	return batch, nil
}

func (s *Subscriber) setLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = true
}

// release gives up the subscription. The point closes the target when it
// removes a live subscription; otherwise the target is closed here.
func (s *Subscriber) release() {
	if s.Live() {
		s.config.Point.Unsubscribe(s.config.ID)
	}
	if err := s.target.Close(); err != nil {
		s.config.Logger.Infof("closing subscription %q: %v", s.config.ID, err)
	}
}

// handoffTarget forwards events to the subscriber's target. It drops any
// the checkpoint has already seen, and any at or before the last one
// forwarded, so the log and the point can both deliver across the hand-off
// without the target seeing an event twice.
type handoffTarget struct {
	target distribution.Target
	seen   int64

	mu        sync.Mutex
	last      eventlog.LogPosition
	delivered bool

	once    sync.Once
	removed chan struct{}
	err     error
}

func newHandoffTarget(target distribution.Target, seen int64) *handoffTarget {
	return &handoffTarget{
		target:  target,
		seen:    seen,
		removed: make(chan struct{}),
	}
}

// Deliver is part of the distribution.Target interface.
func (t *handoffTarget) Deliver(ev eventlog.CommittedEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Position.Prepare <= t.seen {
		return nil
	}
	if t.delivered && !ev.Position.After(t.last) {
		return nil
	}
	if err := t.target.Deliver(ev); err != nil {
		return errors.Trace(err)
	}
	t.last = ev.Position
	t.delivered = true
	return nil
}

// Close closes the wrapped target, once.
func (t *handoffTarget) Close() error {
	t.once.Do(func() {
		close(t.removed)
		if closer, ok := t.target.(io.Closer); ok {
			t.err = errors.Trace(closer.Close())
		}
	})
	return t.err
}

func (t *handoffTarget) lastDelivered() (eventlog.LogPosition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.delivered
}
