package records

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sweeney/shake-timer/internal/api"
)

// FakeBackend is an in-memory Backend for tests. It behaves like the server:
// records are appended in creation order and deleting an unknown id is a
// 404 *api.ServerError.
type FakeBackend struct {
	mu sync.Mutex

	// Stored contains the server-side records.
	Stored []api.Record

	// Calls logs each operation in order: "list", "create", "delete".
	Calls []string

	// Created contains the elapsed times passed to CreateRecord.
	Created []time.Duration

	// ListError, CreateError and DeleteError, if set, are returned by the
	// corresponding call before any state changes.
	ListError   error
	CreateError error
	DeleteError error

	// ListGate, if set, is received from before each ListRecords returns,
	// letting tests hold responses and release them out of order.
	ListGate chan struct{}

	// CreateGate, if set, is received from before CreateRecord stores the
	// record, holding the create in flight.
	CreateGate chan struct{}

	nextID int
}

// NewFakeBackend creates a FakeBackend holding the given records.
func NewFakeBackend(stored ...api.Record) *FakeBackend {
	return &FakeBackend{Stored: stored}
}

// ListRecords returns a snapshot of Stored.
func (f *FakeBackend) ListRecords(ctx context.Context) ([]api.Record, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, "list")
	err := f.ListError
	snap := append([]api.Record{}, f.Stored...)
	gate := f.ListGate
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &api.NetworkError{Op: "list records", Err: ctx.Err()}
		}
	}
	return snap, nil
}

// CreateRecord appends a record with a generated id.
func (f *FakeBackend) CreateRecord(ctx context.Context, elapsed time.Duration) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, "create")
	gate := f.CreateGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &api.NetworkError{Op: "create record", Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateError != nil {
		return f.CreateError
	}
	f.nextID++
	f.Created = append(f.Created, elapsed)
	f.Stored = append(f.Stored, api.Record{ID: fmt.Sprintf("r%d", f.nextID), Time: elapsed.Milliseconds()})
	return nil
}

// DeleteRecord removes the record with id, or fails with a 404.
func (f *FakeBackend) DeleteRecord(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "delete")
	if f.DeleteError != nil {
		return f.DeleteError
	}
	for i, r := range f.Stored {
		if r.ID == id {
			f.Stored = append(f.Stored[:i], f.Stored[i+1:]...)
			return nil
		}
	}
	return &api.ServerError{Op: "delete record", StatusCode: http.StatusNotFound, Message: "record not found"}
}

// CallLog returns a copy of Calls.
func (f *FakeBackend) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// Count returns how many times op was called.
func (f *FakeBackend) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

// Reset clears the call log.
func (f *FakeBackend) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Created = nil
}
