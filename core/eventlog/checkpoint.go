// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package eventlog

import "fmt"

// CheckpointTag is the resume point supplied by a subscriber. Admission
// decisions are taken against PreparePosition; the stream coordinates are
// kept for reporting and for the subscriber's own bookkeeping.
type CheckpointTag struct {
	StreamID        string
	StreamPosition  int64
	PreparePosition int64
}

// FromStreamPosition returns a checkpoint tag for the given stream position
// with the supplied prepare position.
func FromStreamPosition(streamID string, streamPosition, preparePosition int64) CheckpointTag {
	return CheckpointTag{
		StreamID:        streamID,
		StreamPosition:  streamPosition,
		PreparePosition: preparePosition,
	}
}

// FromPosition returns a checkpoint tag that marks everything up to and
// including the prepare position of pos as delivered.
func FromPosition(pos LogPosition) CheckpointTag {
	return CheckpointTag{
		StreamPosition:  -1,
		PreparePosition: pos.Prepare,
	}
}

// String implements fmt.Stringer.
func (t CheckpointTag) String() string {
	if t.StreamID == "" {
		return fmt.Sprintf("P:%d", t.PreparePosition)
	}
	return fmt.Sprintf("%s@%d/P:%d", t.StreamID, t.StreamPosition, t.PreparePosition)
}
