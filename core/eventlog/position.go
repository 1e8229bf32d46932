// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package eventlog

import (
	"fmt"
	"math"
)

// PositionOnlyCommit is the commit position carried by a position-only
// advance. Such a position moves the prepare watermark forward without
// representing a deliverable event.
const PositionOnlyCommit int64 = math.MinInt64

// BeforeTime is the position of a reader that has not seen any event.
var BeforeTime = LogPosition{Commit: 0, Prepare: -1}

// LogPosition locates a record in the transaction log. Commit is where the
// owning transaction was durably committed, Prepare is where the record
// itself begins within that transaction.
type LogPosition struct {
	Commit  int64
	Prepare int64
}

// IsPositionOnly reports whether the position marks a position-only advance.
func (p LogPosition) IsPositionOnly() bool {
	return p.Commit == PositionOnlyCommit
}

// Compare orders positions by commit position and then by prepare position.
// It returns -1, 0 or +1.
func (p LogPosition) Compare(other LogPosition) int {
	switch {
	case p.Commit < other.Commit:
		return -1
	case p.Commit > other.Commit:
		return 1
	case p.Prepare < other.Prepare:
		return -1
	case p.Prepare > other.Prepare:
		return 1
	}
	return 0
}

// Before reports whether p sorts strictly before other.
func (p LogPosition) Before(other LogPosition) bool {
	return p.Compare(other) < 0
}

// After reports whether p sorts strictly after other.
func (p LogPosition) After(other LogPosition) bool {
	return p.Compare(other) > 0
}

// String implements fmt.Stringer.
func (p LogPosition) String() string {
	if p.IsPositionOnly() {
		return fmt.Sprintf("C:-/P:%d", p.Prepare)
	}
	return fmt.Sprintf("C:%d/P:%d", p.Commit, p.Prepare)
}
