package sync

import (
	"sync"
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
)

// DedupFilter suppresses redelivered messages by messageId. The set is
// bounded two ways: entries expire after a TTL, and when the set outgrows
// its capacity the oldest entries fall off. Either bound alone keeps memory
// flat over long sessions.
//
// The filter sits in the data layer so every consumer shares the guarantee;
// none of the downstream services re-check for duplicates.
type DedupFilter struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	clock    clock.Clock
	seen     map[string]time.Time
	order    []dedupEntry
}

type dedupEntry struct {
	id string
	at time.Time
}

// NewDedupFilter creates a filter bounded by capacity and ttl.
func NewDedupFilter(capacity int, ttl time.Duration, clk clock.Clock) *DedupFilter {
	if capacity <= 0 {
		capacity = 500
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DedupFilter{
		capacity: capacity,
		ttl:      ttl,
		clock:    clk,
		seen:     make(map[string]time.Time, capacity),
	}
}

// Seen records the messageId and reports whether it was already present.
// An id whose previous sighting aged past the TTL counts as new again.
func (f *DedupFilter) Seen(messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	f.purgeExpired(now)

	if at, ok := f.seen[messageID]; ok && now.Sub(at) < f.ttl {
		return true
	}

	f.seen[messageID] = now
	f.order = append(f.order, dedupEntry{id: messageID, at: now})

	for len(f.seen) > f.capacity && len(f.order) > 0 {
		f.evictOldest()
	}

	return false
}

// Len returns the number of live entries.
func (f *DedupFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeExpired(f.clock.Now())
	return len(f.seen)
}

// purgeExpired drops entries older than the TTL from the front of the
// insertion order. Must hold f.mu.
func (f *DedupFilter) purgeExpired(now time.Time) {
	for len(f.order) > 0 && now.Sub(f.order[0].at) >= f.ttl {
		f.popFront()
	}
}

// evictOldest removes the oldest entry. Must hold f.mu.
func (f *DedupFilter) evictOldest() {
	f.popFront()
}

// popFront removes the head of the insertion order. A re-added id leaves a
// stale entry behind, so the map row is only deleted when the timestamps
// match. Must hold f.mu.
func (f *DedupFilter) popFront() {
	head := f.order[0]
	f.order = f.order[1:]
	if at, ok := f.seen[head.id]; ok && at.Equal(head.at) {
		delete(f.seen, head.id)
	}
}
