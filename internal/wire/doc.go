// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package wire turns committed events into the documents sent to clients.
//
// Two protocol versions are understood. V2 carries 64-bit event numbers as
// they are. V1 clients only know 32-bit event numbers and learn that a record
// was deleted from the event number math.MaxInt32; the encoder downgrades
// deleted records to that value whenever it talks V1.
package wire
