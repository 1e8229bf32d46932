// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txlog

import (
	"context"
	"database/sql"

	"github.com/juju/errors"
)

var schemaDDL = []string{`
CREATE TABLE IF NOT EXISTS event (
    commit_position   INTEGER NOT NULL,
    prepare_position  INTEGER NOT NULL,
    stream_id         TEXT NOT NULL,
    event_number      INTEGER NOT NULL,
    event_type        TEXT NOT NULL,
    data              BLOB,
    metadata          BLOB,
    link_stream_id    TEXT,
    link_event_number INTEGER,
    link_event_type   TEXT,
    link_data         BLOB,
    link_metadata     BLOB,
    PRIMARY KEY (commit_position, prepare_position)
);`, `
CREATE INDEX IF NOT EXISTS idx_event_stream
ON event (stream_id, event_number);`,
}

// applySchema creates the log's tables if they do not already exist.
func applySchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	for _, stmt := range schemaDDL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return errors.Annotate(err, "applying schema")
		}
	}
	return errors.Trace(tx.Commit())
}
