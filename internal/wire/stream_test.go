// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package wire

import (
	"bytes"
	"encoding/json"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/juju/eventfanout/core/eventlog"
	"github.com/juju/eventfanout/internal/distribution"
)

type streamSuite struct{}

var _ = gc.Suite(&streamSuite{})

func (s *streamSuite) newWriter(c *gc.C, buf *bytes.Buffer, version Version) *StreamWriter {
	w, err := NewStreamWriter(StreamConfig{
		Writer:    buf,
		Version:   version,
		QueueSize: 10,
		Logger:    loggo.GetLogger("eventfanout.wire.test"),
	})
	c.Assert(err, jc.ErrorIsNil)
	return w
}

func (s *streamSuite) TestValidate(c *gc.C) {
	logger := loggo.GetLogger("eventfanout.wire.test")
	valid := StreamConfig{Writer: &bytes.Buffer{}, Version: V2, QueueSize: 1, Logger: logger}
	c.Check(valid.Validate(), jc.ErrorIsNil)

	for _, mutate := range []func(*StreamConfig){
		func(cfg *StreamConfig) { cfg.Writer = nil },
		func(cfg *StreamConfig) { cfg.Version = 5 },
		func(cfg *StreamConfig) { cfg.QueueSize = 0 },
		func(cfg *StreamConfig) { cfg.Logger = nil },
	} {
		cfg := valid
		mutate(&cfg)
		c.Check(cfg.Validate(), jc.ErrorIs, errors.NotValid)
	}
}

func (s *streamSuite) TestWritesQueuedEventsOnClose(c *gc.C) {
	var buf bytes.Buffer
	w := s.newWriter(c, &buf, V1)

	link := linkRecord()
	resolved := deletedRecord()
	resolved.Position = link.Position
	resolved.Link = &link

	c.Assert(w.Deliver(deletedRecord()), jc.ErrorIsNil)
	c.Assert(w.Deliver(resolved), jc.ErrorIsNil)
	c.Assert(w.Close(), jc.ErrorIsNil)

	// Closing the subscription lets the writer finish on its own.
	c.Assert(w.Wait(), jc.ErrorIsNil)

	decoder := json.NewDecoder(&buf)
	var first, second EventDTO
	c.Assert(decoder.Decode(&first), jc.ErrorIsNil)
	c.Assert(decoder.Decode(&second), jc.ErrorIsNil)
	c.Check(first.Event.EventNumber, gc.Equals, int64(2147483647))
	c.Check(second.Event.EventNumber, gc.Equals, int64(0))
	c.Check(second.Link.EventNumber, gc.Equals, int64(2147483647))
	c.Check(decoder.More(), jc.IsFalse)
}

func (s *streamSuite) TestSkipsUnencodableEvents(c *gc.C) {
	var buf bytes.Buffer
	w := s.newWriter(c, &buf, V1)

	large := deletedRecord()
	large.EventNumber = 1 << 40
	c.Assert(w.Deliver(large), jc.ErrorIsNil)
	c.Assert(w.Deliver(deletedRecord()), jc.ErrorIsNil)
	c.Assert(w.Close(), jc.ErrorIsNil)
	c.Assert(w.Wait(), jc.ErrorIsNil)

	var dto EventDTO
	decoder := json.NewDecoder(&buf)
	c.Assert(decoder.Decode(&dto), jc.ErrorIsNil)
	c.Check(dto.Event.EventNumber, gc.Equals, int64(2147483647))
	c.Check(decoder.More(), jc.IsFalse)
}

func (s *streamSuite) TestDeliverAfterClose(c *gc.C) {
	var buf bytes.Buffer
	w := s.newWriter(c, &buf, V2)
	c.Assert(w.Close(), jc.ErrorIsNil)

	err := w.Deliver(deletedRecord())
	c.Check(err, jc.ErrorIs, distribution.ErrTargetClosed)
	c.Assert(w.Wait(), jc.ErrorIsNil)
}

func (s *streamSuite) TestKill(c *gc.C) {
	var buf bytes.Buffer
	w := s.newWriter(c, &buf, V2)
	workertest.CleanKill(c, w)

	err := w.Deliver(eventlog.CommittedEvent{StreamID: "s"})
	c.Check(err, jc.ErrorIs, distribution.ErrTargetClosed)
}
