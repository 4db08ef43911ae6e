package records

import (
	"sync"

	"github.com/sweeney/shake-timer/internal/api"
)

// Cache holds the single client-side snapshot of the server record list.
//
// Every List request takes a sequence number from Begin; a response is only
// applied if its sequence number is newer than the last one applied, so a slow
// stale response can never overwrite a newer list. Clear discards the snapshot
// and invalidates all outstanding requests.
type Cache struct {
	mu      sync.RWMutex
	records []api.Record
	next    uint64 // last sequence number handed out
	applied uint64 // sequence number of the current snapshot
}

// Begin returns the sequence number for a new List request.
func (c *Cache) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next
}

// Apply replaces the snapshot with records if seq is newer than the current
// snapshot. It reports whether the records were applied.
func (c *Cache) Apply(seq uint64, records []api.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied || seq > c.next {
		return false
	}
	c.applied = seq
	c.records = append([]api.Record(nil), records...)
	return true
}

// Records returns a copy of the current snapshot.
func (c *Cache) Records() []api.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]api.Record(nil), c.records...)
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Clear drops the snapshot. Requests begun before Clear are never applied.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.applied = c.next
}
