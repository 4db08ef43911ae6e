// Package records keeps the client's copy of the server record list in step
// with the server. Mutations are never applied locally; every one is expected
// to be followed by a full List.
package records

import (
	"context"
	"time"

	"github.com/sweeney/shake-timer/internal/api"
)

// Backend is the server side of the record list.
type Backend interface {
	ListRecords(ctx context.Context) ([]api.Record, error)
	CreateRecord(ctx context.Context, elapsed time.Duration) error
	DeleteRecord(ctx context.Context, id string) error
}

// Sync is the record list client. It is safe for concurrent use; List calls
// may complete in any order.
type Sync struct {
	backend Backend
	cache   Cache
}

// NewSync creates a Sync over the given backend.
func NewSync(backend Backend) *Sync {
	return &Sync{backend: backend}
}

// List fetches the full record list and applies it to the cache. applied is
// false when a newer List (or a Clear) overtook this one; records is then the
// stale response, which callers should ignore.
func (s *Sync) List(ctx context.Context) (records []api.Record, applied bool, err error) {
	return s.Fetch(ctx, s.Begin())
}

// Begin reserves a sequence number for a later Fetch. A Clear after Begin
// makes that Fetch's response stale.
func (s *Sync) Begin() uint64 {
	return s.cache.Begin()
}

// Fetch is List with a sequence number taken earlier from Begin.
func (s *Sync) Fetch(ctx context.Context, seq uint64) (records []api.Record, applied bool, err error) {
	records, err = s.backend.ListRecords(ctx)
	if err != nil {
		return nil, false, err
	}
	return records, s.cache.Apply(seq, records), nil
}

// Create submits a record with the given elapsed time. The cache is not
// touched; call List afterwards.
func (s *Sync) Create(ctx context.Context, elapsed time.Duration) error {
	return s.backend.CreateRecord(ctx, elapsed)
}

// Delete removes the record with the given id. Deleting an unknown id fails
// with *api.ServerError. The cache is not touched; call List afterwards.
func (s *Sync) Delete(ctx context.Context, id string) error {
	return s.backend.DeleteRecord(ctx, id)
}

// Records returns the cached snapshot.
func (s *Sync) Records() []api.Record {
	return s.cache.Records()
}

// Len returns the number of cached records.
func (s *Sync) Len() int {
	return s.cache.Len()
}

// Clear discards the cached snapshot and any in-flight List results.
func (s *Sync) Clear() {
	s.cache.Clear()
}
