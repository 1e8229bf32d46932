// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package distribution

import (
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/juju/eventfanout/core/eventlog"
	coretesting "github.com/juju/eventfanout/internal/testing"
)

type feederSuite struct {
	baseSuite
}

var _ = gc.Suite(&feederSuite{})

func (s *feederSuite) TestStartValidation(c *gc.C) {
	point := s.newPoint(c, 10)

	_, err := point.Start("", newFakeSource())
	c.Check(err, jc.ErrorIs, errors.NotValid)
	_, err = point.Start("corr", nil)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *feederSuite) TestFeedsPoint(c *gc.C) {
	point := s.newPoint(c, 10)
	ch := s.subscribe(c, point)

	source := newFakeSource()
	w, err := point.Start("corr", source)
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, w)

	for i := int64(1); i <= 3; i++ {
		s.send(c, source, newEvent(i*20, i*20-10, "stream", i))
	}
	for i := int64(1); i <= 3; i++ {
		c.Check(s.receive(c, ch).Position, gc.Equals, pos(i*20, i*20-10))
	}
	c.Check(point.Report()["correlation-id"], gc.Equals, "corr")
}

func (s *feederSuite) TestKillStopsSource(c *gc.C) {
	point := s.newPoint(c, 10)

	source := newFakeSource()
	w, err := point.Start("corr", source)
	c.Assert(err, jc.ErrorIsNil)

	workertest.CleanKill(c, w)

	select {
	case <-source.done:
	default:
		c.Fatalf("source not killed")
	}
}

func (s *feederSuite) TestOrderingViolationStopsFeeder(c *gc.C) {
	point := s.newPoint(c, 10)

	source := newFakeSource()
	w, err := point.Start("corr", source)
	c.Assert(err, jc.ErrorIsNil)

	s.send(c, source, newEvent(20, 10, "stream", 1))
	s.send(c, source, newEvent(5, 0, "stream", 0))

	err = workertest.CheckKilled(c, w)
	c.Check(err, jc.ErrorIs, ErrOrderingViolation)
	c.Check(point.Tip(), gc.Equals, pos(20, 10))
}

func (s *feederSuite) TestClosedSourceStopsFeeder(c *gc.C) {
	point := s.newPoint(c, 10)

	source := newFakeSource()
	w, err := point.Start("corr", source)
	c.Assert(err, jc.ErrorIsNil)

	close(source.events)

	err = workertest.CheckKilled(c, w)
	c.Check(err, jc.ErrorIs, ErrSourceClosed)
}

func (s *feederSuite) TestSourceErrorStopsFeeder(c *gc.C) {
	point := s.newPoint(c, 10)

	source := newFakeSource()
	w, err := point.Start("corr", source)
	c.Assert(err, jc.ErrorIsNil)

	source.err = errors.New("read failed")
	source.Kill()

	err = workertest.CheckKilled(c, w)
	c.Check(err, gc.ErrorMatches, "read failed")
}

func (s *feederSuite) TestRebindIgnoresStaleSource(c *gc.C) {
	point := s.newPoint(c, 10)
	ch := s.subscribe(c, point)

	stale := newFakeSource()
	w1, err := point.Start("first", stale)
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, w1)

	s.send(c, stale, newEvent(20, 10, "stream", 1))
	c.Check(s.receive(c, ch).Position, gc.Equals, pos(20, 10))

	current := newFakeSource()
	w2, err := point.Start("second", current)
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, w2)

	// The feeder handles events one at a time, so once the second send
	// has been accepted the first has been handled and ignored.
	s.send(c, stale, newEvent(40, 30, "stream", 2))
	s.send(c, stale, newEvent(60, 50, "stream", 3))

	s.send(c, current, newEvent(40, 35, "stream", 2))
	c.Check(s.receive(c, ch).Position, gc.Equals, pos(40, 35))

	select {
	case ev := <-ch:
		c.Fatalf("unexpected event %v", ev.Position)
	case <-time.After(coretesting.ShortWait):
	}
	c.Check(point.Report()["correlation-id"], gc.Equals, "second")
}

func (s *feederSuite) subscribe(c *gc.C, point *Point) chan eventlog.CommittedEvent {
	ch := make(chan eventlog.CommittedEvent, 10)
	ok, err := point.TrySubscribe("watcher", ChannelTarget(ch), eventlog.FromPosition(pos(0, 0)))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ok, jc.IsTrue)
	return ch
}

func (s *feederSuite) send(c *gc.C, source *fakeSource, ev eventlog.CommittedEvent) {
	select {
	case source.events <- ev:
	case <-time.After(coretesting.LongWait):
		c.Fatalf("timed out sending %v", ev.Position)
	}
}

func (s *feederSuite) receive(c *gc.C, ch <-chan eventlog.CommittedEvent) eventlog.CommittedEvent {
	select {
	case ev := <-ch:
		return ev
	case <-time.After(coretesting.LongWait):
		c.Fatalf("timed out waiting for event")
	}
	return eventlog.CommittedEvent{}
}
