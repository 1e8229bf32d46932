// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package distribution

import (
	"iter"
	"sort"

	"github.com/juju/eventfanout/core/eventlog"
)

// window is a fixed-capacity ring of the most recently ingested events.
// Entries are contiguous in ingestion order, so they are also strictly
// increasing by position.
type window struct {
	events []eventlog.CommittedEvent

	// head is the slot holding the oldest entry.
	head  int
	count int
}

func newWindow(capacity int) *window {
	return &window{
		events: make([]eventlog.CommittedEvent, capacity),
	}
}

// push appends ev at the tip. It reports whether the oldest entry had to be
// evicted to make room.
func (w *window) push(ev eventlog.CommittedEvent) bool {
	capacity := len(w.events)
	if w.count < capacity {
		w.events[(w.head+w.count)%capacity] = ev
		w.count++
		return false
	}
	w.events[w.head] = ev
	w.head = (w.head + 1) % capacity
	return true
}

// oldest returns the position of the oldest retained event.
func (w *window) oldest() (eventlog.LogPosition, bool) {
	if w.count == 0 {
		return eventlog.LogPosition{}, false
	}
	return w.events[w.head].Position, true
}

// newest returns the position of the most recently retained event.
func (w *window) newest() (eventlog.LogPosition, bool) {
	if w.count == 0 {
		return eventlog.LogPosition{}, false
	}
	return w.at(w.count - 1).Position, true
}

func (w *window) len() int {
	return w.count
}

func (w *window) cap() int {
	return len(w.events)
}

// at returns the i'th oldest retained event.
func (w *window) at(i int) eventlog.CommittedEvent {
	return w.events[(w.head+i)%len(w.events)]
}

// rangeFrom yields, oldest first, every retained event whose position is at
// or after from. The sequence reads the ring as it is when iterated; it must
// not be iterated concurrently with push.
func (w *window) rangeFrom(from eventlog.LogPosition) iter.Seq[eventlog.CommittedEvent] {
	return func(yield func(eventlog.CommittedEvent) bool) {
		start := sort.Search(w.count, func(i int) bool {
			return !w.at(i).Position.Before(from)
		})
		for i := start; i < w.count; i++ {
			if !yield(w.at(i)) {
				return
			}
		}
	}
}
