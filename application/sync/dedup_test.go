package sync

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func TestDedup_FirstSightRegisters(t *testing.T) {
	clk := newManualClock()
	filter := NewDedupFilter(500, 5*time.Minute, clk)

	assert.False(t, filter.Seen("m-1"))
	assert.True(t, filter.Seen("m-1"))
	assert.True(t, filter.Seen("m-1"))
	assert.Equal(t, 1, filter.Len())
}

func TestDedup_CapacityEvictsOldest(t *testing.T) {
	clk := newManualClock()
	filter := NewDedupFilter(3, 5*time.Minute, clk)

	assert.False(t, filter.Seen("m-1"))
	clk.advance(time.Second)
	assert.False(t, filter.Seen("m-2"))
	clk.advance(time.Second)
	assert.False(t, filter.Seen("m-3"))
	clk.advance(time.Second)
	assert.False(t, filter.Seen("m-4"))

	assert.Equal(t, 3, filter.Len())
	// m-1 was evicted, so its id is no longer remembered.
	assert.False(t, filter.Seen("m-1"))
	// m-4 is still tracked.
	assert.True(t, filter.Seen("m-4"))
}

func TestDedup_EntriesExpireAfterTTL(t *testing.T) {
	clk := newManualClock()
	filter := NewDedupFilter(500, 5*time.Minute, clk)

	assert.False(t, filter.Seen("m-1"))

	clk.advance(4 * time.Minute)
	assert.True(t, filter.Seen("m-1"))

	clk.advance(2 * time.Minute)
	// Past the TTL the id reads as fresh again.
	assert.False(t, filter.Seen("m-1"))
}

func TestDedup_ExpiredEntriesFreeCapacity(t *testing.T) {
	clk := newManualClock()
	filter := NewDedupFilter(2, time.Minute, clk)

	assert.False(t, filter.Seen("m-1"))
	assert.False(t, filter.Seen("m-2"))

	clk.advance(2 * time.Minute)
	assert.False(t, filter.Seen("m-3"))
	assert.Equal(t, 1, filter.Len())
}

func TestDedup_ReregisteredIDKeepsNewTimestamp(t *testing.T) {
	clk := newManualClock()
	filter := NewDedupFilter(500, 5*time.Minute, clk)

	assert.False(t, filter.Seen("m-1"))
	clk.advance(6 * time.Minute)

	// Expired, so it registers fresh and survives another full TTL.
	assert.False(t, filter.Seen("m-1"))
	clk.advance(4 * time.Minute)
	assert.True(t, filter.Seen("m-1"))
}

func BenchmarkDedup_SeenFresh(b *testing.B) {
	filter := NewDedupFilter(500, 5*time.Minute, newManualClock())
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = filter.Seen(strconv.Itoa(i))
	}
}

func BenchmarkDedup_SeenDuplicate(b *testing.B) {
	filter := NewDedupFilter(500, 5*time.Minute, newManualClock())
	filter.Seen("m-1")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = filter.Seen("m-1")
	}
}
