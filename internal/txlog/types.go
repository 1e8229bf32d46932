// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txlog

import (
	"database/sql"

	"github.com/juju/eventfanout/core/eventlog"
)

// eventRow is a row of the event table. The link columns are only set for
// a resolved link, in which case the row's position is the link's.
type eventRow struct {
	CommitPosition  int64          `db:"commit_position"`
	PreparePosition int64          `db:"prepare_position"`
	StreamID        string         `db:"stream_id"`
	EventNumber     int64          `db:"event_number"`
	EventType       string         `db:"event_type"`
	Data            []byte         `db:"data"`
	Metadata        []byte         `db:"metadata"`
	LinkStreamID    sql.NullString `db:"link_stream_id"`
	LinkEventNumber sql.NullInt64  `db:"link_event_number"`
	LinkEventType   sql.NullString `db:"link_event_type"`
	LinkData        []byte         `db:"link_data"`
	LinkMetadata    []byte         `db:"link_metadata"`
}

// position is a log position as stored.
type position struct {
	Commit  int64 `db:"commit_position"`
	Prepare int64 `db:"prepare_position"`
}

// cursor selects a page of the log strictly after a position.
type cursor struct {
	Commit  int64 `db:"commit_position"`
	Prepare int64 `db:"prepare_position"`
	Limit   int   `db:"limit"`
}

func rowFromEvent(ev eventlog.CommittedEvent) eventRow {
	row := eventRow{
		CommitPosition:  ev.Position.Commit,
		PreparePosition: ev.Position.Prepare,
		StreamID:        ev.StreamID,
		EventNumber:     ev.EventNumber,
		EventType:       ev.EventType,
		Data:            ev.Data,
		Metadata:        ev.Metadata,
	}
	if link := ev.Link; link != nil {
		row.LinkStreamID = sql.NullString{String: link.StreamID, Valid: true}
		row.LinkEventNumber = sql.NullInt64{Int64: link.EventNumber, Valid: true}
		row.LinkEventType = sql.NullString{String: link.EventType, Valid: true}
		row.LinkData = link.Data
		row.LinkMetadata = link.Metadata
	}
	return row
}

func (row eventRow) toEvent() eventlog.CommittedEvent {
	pos := eventlog.LogPosition{
		Commit:  row.CommitPosition,
		Prepare: row.PreparePosition,
	}
	ev := eventlog.CommittedEvent{
		Position:    pos,
		StreamID:    row.StreamID,
		EventNumber: row.EventNumber,
		EventType:   row.EventType,
		Data:        row.Data,
		Metadata:    row.Metadata,
	}
	if row.LinkStreamID.Valid {
		ev.Link = &eventlog.CommittedEvent{
			Position:    pos,
			StreamID:    row.LinkStreamID.String,
			EventNumber: row.LinkEventNumber.Int64,
			EventType:   row.LinkEventType.String,
			Data:        row.LinkData,
			Metadata:    row.LinkMetadata,
		}
	}
	return ev
}
