// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package txlog is the durable transaction log backing the distribution
// point. Committed events are kept in a SQLite table ordered by log
// position; the Store appends to it and reads it forward, and the Reader
// worker tails it to feed a distribution point.
//
// The log is the source of truth. The distribution point only caches its
// most recent events, and subscribers whose checkpoint has fallen out of
// that cache read the missing history from here.
package txlog
