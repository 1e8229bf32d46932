// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package distribution implements the heading distribution point: the place
// where freshly committed events, read in commit order from the transaction
// log, are fanned out to in-process subscribers.
//
// The point keeps the most recent events in a fixed-size retention window so
// that a subscriber resuming from a recent checkpoint can be replayed what it
// missed and then switched to live delivery, all under the same lock that
// guards ingestion. A subscriber whose checkpoint has already fallen out of
// the window is refused and must catch up from the log first.
//
// Ingestion is single writer. The log reader, bound with Start, is the only
// caller of Handle; subscription calls may come from any goroutine.
package distribution
