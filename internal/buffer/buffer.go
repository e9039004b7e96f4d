// Package buffer holds the bounded, time-windowed working set of live risk
// events that the density estimator runs against.
package buffer

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/riskmap/internal/risk"
)

// DefaultCapacity bounds the number of retained events.
const DefaultCapacity = 1000

// Buffer retains events in ingestion order. Two independent rules shrink it:
// age (Evict) and capacity (applied after every mutation, keeping the most
// recently ingested events). Discarded events are gone for good.
//
// Buffer is safe for concurrent use. Snapshot returns a copy, so evaluations
// never observe a mutation mid-scan.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	events   []risk.Event
}

// New returns an empty buffer. A capacity below 1 uses DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

// Capacity returns the maximum number of retained events.
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// SetCapacity changes the bound, trimming the oldest events if the buffer
// is now over it. It returns the number trimmed. Values below 1 are ignored.
func (b *Buffer) SetCapacity(capacity int) int {
	if capacity < 1 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capacity = capacity
	return b.trimLocked()
}

// Ingest appends e unconditionally (no de-duplication by ID) and returns the
// number of older events displaced by the capacity bound.
func (b *Buffer) Ingest(e risk.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return b.trimLocked()
}

// Evict drops every event with now − T ≥ windowHours, measured in whole
// milliseconds, then applies the capacity bound. It returns how many events
// aged out and how many were trimmed for capacity.
func (b *Buffer) Evict(now time.Time, windowHours float64) (aged, trimmed int) {
	windowMs := windowMillis(windowHours)
	nowMs := now.UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.events[:0]
	for _, e := range b.events {
		if nowMs-e.T.UnixMilli() >= windowMs {
			aged++
			continue
		}
		kept = append(kept, e)
	}
	clear(b.events[len(kept):])
	b.events = kept
	return aged, b.trimLocked()
}

// windowMillis converts hours to milliseconds, saturating at MaxInt64 for
// windows (including NaN and +Inf) too long to represent.
func windowMillis(hours float64) int64 {
	ms := hours * float64(time.Hour/time.Millisecond)
	if !(ms < math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(ms)
}

// Reset replaces the whole contents with events (the manual refresh
// trigger) and returns how many of them were trimmed for capacity.
func (b *Buffer) Reset(events []risk.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(make([]risk.Event, 0, len(events)), events...)
	return b.trimLocked()
}

// Snapshot returns a copy of the retained events in ingestion order.
func (b *Buffer) Snapshot() []risk.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]risk.Event(nil), b.events...)
}

// Len returns the number of retained events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Find returns the most recently ingested event with the given ID.
func (b *Buffer) Find(id string) (risk.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].ID == id {
			return b.events[i], true
		}
	}
	return risk.Event{}, false
}

func (b *Buffer) trimLocked() int {
	over := len(b.events) - b.capacity
	if over <= 0 {
		return 0
	}
	kept := make([]risk.Event, b.capacity)
	copy(kept, b.events[over:])
	b.events = kept
	return over
}
