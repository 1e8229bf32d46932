// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package distribution

import (
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/eventfanout/core/eventlog"
)

// Logger represents the methods used by the point to log information.
type Logger interface {
	Errorf(string, ...interface{})
	Warningf(string, ...interface{})
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Tracef(string, ...interface{})
}

// Phase is the delivery phase of a subscription.
type Phase int

const (
	// Replaying subscriptions are being sent buffered events from the
	// retention window.
	Replaying Phase = iota
	// Live subscriptions receive every event as it is ingested.
	Live
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case Replaying:
		return "replaying"
	case Live:
		return "live"
	}
	return "unknown"
}

// Config defines the operation of a Point.
type Config struct {
	// Capacity is the number of events kept in the retention window.
	Capacity int

	Logger Logger

	// Metrics is optional; when nil the point records into a private
	// collector that nobody registers.
	Metrics *Collector
}

// Validate returns an error if config cannot drive a Point.
func (config Config) Validate() error {
	if config.Capacity <= 0 {
		return errors.NotValidf("capacity %d", config.Capacity)
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

type subscription struct {
	id         string
	target     Target
	checkpoint eventlog.CheckpointTag
	phase      Phase
	delivered  uint64
}

// Point is the heading distribution point. It owns the retention window,
// the last ingested position and the set of subscriptions; all of them are
// guarded by a single mutex, so admission always sees a consistent window
// and no event can be pushed between a replay and the switch to live.
type Point struct {
	logger  Logger
	metrics *Collector

	mu            sync.Mutex
	window        *window
	guard         orderingGuard
	subscriptions map[string]*subscription
	// live holds the live subscriptions in admission order, which is the
	// order each event is delivered in.
	live          []*subscription
	correlationID string
}

// NewPoint returns a new Point configured as supplied.
func NewPoint(config Config) (*Point, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	return &Point{
		logger:        config.Logger,
		metrics:       metrics,
		window:        newWindow(config.Capacity),
		guard:         newOrderingGuard(),
		subscriptions: make(map[string]*subscription),
	}, nil
}

// Ingest records ev as the newest committed event and pushes it to every
// live subscription before returning. Only one goroutine may call Ingest (or
// Handle) at a time.
//
// An event that does not strictly follow the last ingested position is
// refused with an error satisfying errors.Is(err, ErrOrderingViolation); the
// point is left unchanged.
func (p *Point) Ingest(ev eventlog.CommittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ingest(ev)
}

// Handle ingests ev if it was read by the source currently bound with
// Start. Events carrying any other correlation id come from a source the
// point has since been rebound away from, and are dropped.
func (p *Point) Handle(correlationID string, ev eventlog.CommittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if correlationID != p.correlationID {
		p.logger.Debugf("ignoring event at %v from stale source %q", ev.Position, correlationID)
		return nil
	}
	return p.ingest(ev)
}

func (p *Point) ingest(ev eventlog.CommittedEvent) error {
	if err := p.guard.advance(ev.Position); err != nil {
		return errors.Trace(err)
	}

	// Position-only advances move the tip, but there is nothing in them to
	// replay or deliver.
	if ev.IsPositionOnly() {
		p.metrics.positionOnly.Inc()
		return nil
	}

	if p.window.push(ev) {
		p.metrics.evictions.Inc()
	}
	p.metrics.ingested.Inc()
	p.metrics.windowSize.Set(float64(p.window.len()))

	var failed []*subscription
	for _, sub := range p.live {
		if err := sub.target.Deliver(ev); err != nil {
			p.logger.Warningf("delivering %v to subscription %q: %v", ev.Position, sub.id, err)
			failed = append(failed, sub)
			continue
		}
		sub.delivered++
	}
	for _, sub := range failed {
		p.metrics.deliveryFailures.Inc()
		p.remove(sub.id)
	}
	return nil
}

// TrySubscribe attempts to admit a subscription resuming from checkpoint.
//
// A checkpoint beyond the tip is admitted straight into the live phase. A
// checkpoint the retention window still covers is replayed every buffered
// event it has not seen, synchronously and in order, and then made live.
// Anything older is refused: TrySubscribe returns false and the caller has
// to read the missing history from the log before trying again.
//
// A checkpoint at prepare position P has seen every event whose prepare
// position is at or below P. Such a checkpoint is covered only when the
// oldest retained event committed at or before P: every event that is no
// longer (or was never) in the window then committed, and so was prepared,
// no later than P.
func (p *Point) TrySubscribe(id string, target Target, checkpoint eventlog.CheckpointTag) (bool, error) {
	if id == "" {
		return false, errors.NotValidf("empty subscription id")
	}
	if target == nil {
		return false, errors.NotValidf("nil target")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.subscriptions[id]; ok {
		return false, errors.AlreadyExistsf("subscription %q", id)
	}

	sub := &subscription{
		id:         id,
		target:     target,
		checkpoint: checkpoint,
	}

	prepare := checkpoint.PreparePosition
	tip := p.guard.last
	if prepare > tip.Prepare {
		p.logger.Debugf("subscription %q at %v is ahead of %v, going live", id, checkpoint, tip)
		p.metrics.admissions.WithLabelValues(admissionLive).Inc()
		p.addLive(sub)
		return true, nil
	}

	oldest, ok := p.window.oldest()
	if !ok || oldest.Commit > prepare {
		p.logger.Debugf("refusing subscription %q at %v, window starts at %v", id, checkpoint, oldest)
		p.metrics.admissions.WithLabelValues(admissionRefused).Inc()
		return false, nil
	}

	from := eventlog.LogPosition{Commit: prepare, Prepare: prepare}
	seen := func(ev eventlog.CommittedEvent) bool {
		return ev.Position.Prepare <= prepare
	}
	if err := p.replay(sub, from, seen); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// TrySubscribeAfter attempts to admit a subscription that has already been
// given every event up to and including the log position after, such as a
// subscriber that has been reading the durable log.
//
// It is admitted when the window holds every ingested event after that
// position: either the oldest retained event is at or before it, or nothing
// has been ingested at all. The latter is only safe if the caller read the
// log to its end after the point's source was bound. Retained events after
// the position are replayed before the subscription goes live. Unlike
// TrySubscribe this does not rely on prepare positions, which need not
// increase with commit order.
func (p *Point) TrySubscribeAfter(id string, target Target, after eventlog.LogPosition) (bool, error) {
	if id == "" {
		return false, errors.NotValidf("empty subscription id")
	}
	if target == nil {
		return false, errors.NotValidf("nil target")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.subscriptions[id]; ok {
		return false, errors.AlreadyExistsf("subscription %q", id)
	}

	oldest, ok := p.window.oldest()
	if ok && oldest.After(after) {
		p.logger.Debugf("refusing subscription %q after %v, window starts at %v", id, after, oldest)
		p.metrics.admissions.WithLabelValues(admissionRefused).Inc()
		return false, nil
	}

	sub := &subscription{
		id:         id,
		target:     target,
		checkpoint: eventlog.FromPosition(after),
	}
	seen := func(ev eventlog.CommittedEvent) bool {
		return !ev.Position.After(after)
	}
	if err := p.replay(sub, after, seen); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// replay delivers every retained event at or after from that has not been
// seen, then makes sub live. A target that fails is closed and never
// registered.
func (p *Point) replay(sub *subscription, from eventlog.LogPosition, seen func(eventlog.CommittedEvent) bool) error {
	sub.phase = Replaying
	var replayed int
	for ev := range p.window.rangeFrom(from) {
		if seen(ev) {
			continue
		}
		if err := sub.target.Deliver(ev); err != nil {
			p.metrics.admissions.WithLabelValues(admissionFailed).Inc()
			if cerr := closeTarget(sub.target); cerr != nil {
				p.logger.Warningf("closing subscription %q: %v", sub.id, cerr)
			}
			return errors.Annotatef(err, "replaying %v to subscription %q", ev.Position, sub.id)
		}
		sub.delivered++
		replayed++
	}

	p.logger.Debugf("replayed %d events to subscription %q from %v", replayed, sub.id, sub.checkpoint)
	p.metrics.replayedEvents.Add(float64(replayed))
	p.metrics.admissions.WithLabelValues(admissionReplayed).Inc()
	p.addLive(sub)
	return nil
}

// Unsubscribe removes the subscription with the given id, closing its
// target if it can be closed. Unknown ids are ignored.
func (p *Point) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.remove(id)
}

// Tip returns the most recently ingested position, including position-only
// advances.
func (p *Point) Tip() eventlog.LogPosition {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.guard.last
}

// Oldest returns the position of the oldest event still retained.
func (p *Point) Oldest() (eventlog.LogPosition, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.window.oldest()
}

// Report returns a map describing the state of the point.
func (p *Point) Report() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := set.NewStrings()
	for id := range p.subscriptions {
		ids.Add(id)
	}

	report := map[string]any{
		"capacity":           p.window.cap(),
		"window-size":        p.window.len(),
		"tip":                p.guard.last.String(),
		"subscriptions":      len(p.subscriptions),
		"subscriptions-live": len(p.live),
		"subscription-ids":   ids.SortedValues(),
	}
	if oldest, ok := p.window.oldest(); ok {
		report["oldest"] = oldest.String()
	}
	if newest, ok := p.window.newest(); ok {
		report["newest"] = newest.String()
	}
	if p.correlationID != "" {
		report["correlation-id"] = p.correlationID
	}
	return report
}

func (p *Point) addLive(sub *subscription) {
	sub.phase = Live
	p.subscriptions[sub.id] = sub
	p.live = append(p.live, sub)
	p.metrics.liveSubscriptions.Set(float64(len(p.live)))
}

func (p *Point) remove(id string) {
	sub, ok := p.subscriptions[id]
	if !ok {
		return
	}
	delete(p.subscriptions, id)
	for i, live := range p.live {
		if live == sub {
			p.live = append(p.live[:i], p.live[i+1:]...)
			break
		}
	}
	p.metrics.liveSubscriptions.Set(float64(len(p.live)))

	if err := closeTarget(sub.target); err != nil {
		p.logger.Warningf("closing subscription %q: %v", id, err)
	}
	p.logger.Debugf("removed subscription %q after %d events", id, sub.delivered)
}
