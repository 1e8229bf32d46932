// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package eventlog holds the value types shared by everything that reads the
// transaction log: positions, committed events and subscriber checkpoints.
//
// Nothing in here knows how the log is stored, transported or distributed.
package eventlog
