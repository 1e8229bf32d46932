// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"time"
)

// ShortWait is how long a suite blocks waiting for something that should
// not happen, such as a delivery to an unsubscribed target.
const ShortWait = 50 * time.Millisecond

// LongWait bounds waits for things that should already have happened, like
// a worker picking up an event. Tests never sleep for this long unless
// something is broken.
const LongWait = 10 * time.Second
