// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package eventlog

import "math"

// DeletedEventNumber is the event number of a delete-tombstone, and of a link
// whose target has been deleted. Wire encoders rely on it to pick the
// representation older protocol versions understand, so it must survive
// unchanged from the log to the encoder.
const DeletedEventNumber int64 = math.MaxInt64

// CommittedEvent is a single committed record as read from the transaction
// log. When the record was reached through a link-to event, Link holds the
// link record that pointed at it.
//
// Position is always where the item sits in the log's commit order. For a
// resolved link that is the link record's position, not the target's.
//
// A CommittedEvent is never mutated after it has been handed to the
// distribution point; subscribers share the same value.
type CommittedEvent struct {
	Position    LogPosition
	StreamID    string
	EventNumber int64
	EventType   string

	Link *CommittedEvent

	Data     []byte
	Metadata []byte
}

// PositionOnly returns an event that only advances the prepare watermark.
func PositionOnly(prepare int64) CommittedEvent {
	return CommittedEvent{
		Position: LogPosition{
			Commit:  PositionOnlyCommit,
			Prepare: prepare,
		},
	}
}

// IsPositionOnly reports whether the event is a position-only advance.
func (e CommittedEvent) IsPositionOnly() bool {
	return e.Position.IsPositionOnly()
}

// IsDeleted reports whether the underlying record is a delete-tombstone or a
// link target that has since been deleted.
func (e CommittedEvent) IsDeleted() bool {
	return e.EventNumber == DeletedEventNumber
}

// IsResolvedLink reports whether the event was reached through a link.
func (e CommittedEvent) IsResolvedLink() bool {
	return e.Link != nil
}
