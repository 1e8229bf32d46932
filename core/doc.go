// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

/*
Package core holds the concepts and pure logic of the event log's domain.

What should *not* go here matters most:

  - if it makes any reference to SQLite or sqlair, it should not be in here.
  - if it is concerned with encoding events for a client, it should not be in
    here.

When adding to core it is fine to import from any subpackage of
"github.com/juju/eventfanout/core", but never from any other subpackage of
"github.com/juju/eventfanout". No mutable global state.
*/
package core
