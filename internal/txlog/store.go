// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txlog

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/juju/eventfanout/core/eventlog"
)

const (
	// ErrOutOfOrder is returned when appending an event that does not
	// follow the head of the log.
	ErrOutOfOrder = errors.ConstError("event out of order")
)

// Store reads and writes the durable transaction log.
type Store struct {
	plain *sql.DB
	db    *sqlair.DB

	insertStmt *sqlair.Statement
	readStmt   *sqlair.Statement
	headStmt   *sqlair.Statement
}

// Open opens, creating if necessary, the SQLite log at path. Use ":memory:"
// for a log that lives only as long as the store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSourceName(path))
	if err != nil {
		return nil, errors.Annotatef(err, "opening transaction log %q", path)
	}
	// A single connection keeps in-memory logs alive and serialises writers.
	db.SetMaxOpenConns(1)

	store, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, errors.Trace(err)
	}
	return store, nil
}

// dataSourceName lets other processes append to a file-backed log while the
// store reads it.
func dataSourceName(path string) string {
	if path == ":memory:" {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

// NewStore returns a store using db, creating the log's schema if needed.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := applySchema(ctx, db); err != nil {
		return nil, errors.Trace(err)
	}

	insertStmt, err := sqlair.Prepare(`
INSERT INTO event (
    commit_position, prepare_position, stream_id, event_number, event_type,
    data, metadata, link_stream_id, link_event_number, link_event_type,
    link_data, link_metadata
) VALUES (
    $eventRow.commit_position, $eventRow.prepare_position, $eventRow.stream_id,
    $eventRow.event_number, $eventRow.event_type, $eventRow.data,
    $eventRow.metadata, $eventRow.link_stream_id, $eventRow.link_event_number,
    $eventRow.link_event_type, $eventRow.link_data, $eventRow.link_metadata
)`, eventRow{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing insert event statement")
	}

	readStmt, err := sqlair.Prepare(`
SELECT &eventRow.*
FROM   event
WHERE  commit_position > $cursor.commit_position
OR     (commit_position = $cursor.commit_position AND prepare_position > $cursor.prepare_position)
ORDER BY commit_position, prepare_position
LIMIT  $cursor.limit`, eventRow{}, cursor{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing read forward statement")
	}

	headStmt, err := sqlair.Prepare(`
SELECT (commit_position, prepare_position) AS (&position.*)
FROM   event
ORDER BY commit_position DESC, prepare_position DESC
LIMIT  1`, position{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing head statement")
	}

	return &Store{
		plain:      db,
		db:         sqlair.NewDB(db),
		insertStmt: insertStmt,
		readStmt:   readStmt,
		headStmt:   headStmt,
	}, nil
}

// Append writes events to the end of the log in one transaction. Every
// event must strictly follow the previous one and the current head;
// otherwise nothing is written and the error satisfies
// errors.Is(err, ErrOutOfOrder). Position-only advances are never stored.
func (s *Store) Append(ctx context.Context, events ...eventlog.CommittedEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		if ev.IsPositionOnly() {
			return errors.NotValidf("appending position-only advance at prepare %d", ev.Position.Prepare)
		}
	}

	return s.txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		head, err := s.head(ctx, tx)
		if err != nil {
			return errors.Trace(err)
		}
		for _, ev := range events {
			if !ev.Position.After(head) {
				return errors.Annotatef(ErrOutOfOrder, "appending %v after %v", ev.Position, head)
			}
			if err := tx.Query(ctx, s.insertStmt, rowFromEvent(ev)).Run(); err != nil {
				return errors.Annotatef(err, "inserting event at %v", ev.Position)
			}
			head = ev.Position
		}
		return nil
	})
}

// ReadForward returns at most limit events strictly after the given
// position, in log order. An empty result means the reader is at the head.
func (s *Store) ReadForward(ctx context.Context, after eventlog.LogPosition, limit int) ([]eventlog.CommittedEvent, error) {
	if limit <= 0 {
		return nil, errors.NotValidf("read limit %d", limit)
	}

	var rows []eventRow
	err := s.txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, s.readStmt, cursor{
			Commit:  after.Commit,
			Prepare: after.Prepare,
			Limit:   limit,
		}).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Annotatef(err, "reading forward from %v", after)
	}

	events := make([]eventlog.CommittedEvent, len(rows))
	for i, row := range rows {
		events[i] = row.toEvent()
	}
	return events, nil
}

// Head returns the position of the last event in the log, or
// eventlog.BeforeTime if the log is empty.
func (s *Store) Head(ctx context.Context) (eventlog.LogPosition, error) {
	var head eventlog.LogPosition
	err := s.txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		var err error
		head, err = s.head(ctx, tx)
		return errors.Trace(err)
	})
	return head, errors.Trace(err)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return errors.Trace(s.plain.Close())
}

func (s *Store) head(ctx context.Context, tx *sqlair.TX) (eventlog.LogPosition, error) {
	var pos position
	err := tx.Query(ctx, s.headStmt).Get(&pos)
	if errors.Is(err, sqlair.ErrNoRows) {
		return eventlog.BeforeTime, nil
	} else if err != nil {
		return eventlog.LogPosition{}, errors.Trace(err)
	}
	return eventlog.LogPosition{Commit: pos.Commit, Prepare: pos.Prepare}, nil
}

func (s *Store) txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	tx, err := s.db.Begin(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fn(ctx, tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Annotatef(err, "rolling back: %v", rerr)
		}
		return err
	}
	return errors.Trace(tx.Commit())
}
