// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package wire

import (
	"math"

	"github.com/juju/errors"

	"github.com/juju/eventfanout/core/eventlog"
)

// Version is a client protocol version.
type Version int

const (
	// V1 clients use 32-bit event numbers.
	V1 Version = 1
	// V2 clients use 64-bit event numbers.
	V2 Version = 2
)

// ParseVersion returns the Version for n, or a NotValid error.
func ParseVersion(n int) (Version, error) {
	switch v := Version(n); v {
	case V1, V2:
		return v, nil
	}
	return 0, errors.NotValidf("protocol version %d", n)
}

// RecordDTO is a single log record on the wire.
type RecordDTO struct {
	StreamID    string `json:"stream-id"`
	EventNumber int64  `json:"event-number"`
	EventType   string `json:"event-type,omitempty"`
	Data        []byte `json:"data,omitempty"`
	Metadata    []byte `json:"metadata,omitempty"`
}

// EventDTO is a resolved event on the wire. For a resolved link, Event is
// the link record itself and Link is the record it points at; otherwise Link
// is nil.
type EventDTO struct {
	Event           RecordDTO  `json:"event"`
	Link            *RecordDTO `json:"link,omitempty"`
	CommitPosition  int64      `json:"commit-position"`
	PreparePosition int64      `json:"prepare-position"`
}

// Encode returns the document describing ev for a client speaking version.
//
// Position-only advances carry nothing a client can use and are refused, as
// are event numbers a V1 client cannot represent.
func Encode(version Version, ev eventlog.CommittedEvent) (EventDTO, error) {
	if _, err := ParseVersion(int(version)); err != nil {
		return EventDTO{}, errors.Trace(err)
	}
	if ev.IsPositionOnly() {
		return EventDTO{}, errors.NotValidf("encoding position-only advance at prepare %d", ev.Position.Prepare)
	}

	record, err := encodeRecord(version, ev)
	if err != nil {
		return EventDTO{}, errors.Trace(err)
	}
	dto := EventDTO{
		Event:           record,
		CommitPosition:  ev.Position.Commit,
		PreparePosition: ev.Position.Prepare,
	}
	if ev.Link == nil {
		return dto, nil
	}

	// The link record goes first on the wire; the target, which may have
	// been deleted, follows it.
	link, err := encodeRecord(version, *ev.Link)
	if err != nil {
		return EventDTO{}, errors.Annotatef(err, "link to %s", ev.StreamID)
	}
	dto.Event, dto.Link = link, &record
	return dto, nil
}

// EncodeBatch encodes events in order, as a read-all result does. The first
// event that cannot be encoded fails the whole batch.
func EncodeBatch(version Version, events []eventlog.CommittedEvent) ([]EventDTO, error) {
	result := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		dto, err := Encode(version, ev)
		if err != nil {
			return nil, errors.Annotatef(err, "encoding event at %v", ev.Position)
		}
		result = append(result, dto)
	}
	return result, nil
}

func encodeRecord(version Version, ev eventlog.CommittedEvent) (RecordDTO, error) {
	number, err := eventNumber(version, ev.EventNumber)
	if err != nil {
		return RecordDTO{}, errors.Annotatef(err, "stream %q", ev.StreamID)
	}
	return RecordDTO{
		StreamID:    ev.StreamID,
		EventNumber: number,
		EventType:   ev.EventType,
		Data:        ev.Data,
		Metadata:    ev.Metadata,
	}, nil
}

func eventNumber(version Version, number int64) (int64, error) {
	if version != V1 {
		return number, nil
	}
	if number == eventlog.DeletedEventNumber {
		return math.MaxInt32, nil
	}
	if number > math.MaxInt32 || number < math.MinInt32 {
		return 0, errors.NotValidf("event number %d for protocol version 1", number)
	}
	return number, nil
}
