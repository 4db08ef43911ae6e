package sensor

import (
	"sync"

	"github.com/sweeney/shake-timer/internal/logic"
)

// FakeSource is a test double that records subscriptions and lets tests push
// samples to the current subscriber.
type FakeSource struct {
	mu sync.Mutex

	// SubscribeError, if set, is returned by Subscribe.
	SubscribeError error

	// Subscribes and Unsubscribes count lifecycle calls.
	Subscribes   int
	Unsubscribes int

	handlers map[int]Handler
	nextID   int
}

// NewFakeSource creates an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{handlers: make(map[int]Handler)}
}

// Subscribe registers h.
func (f *FakeSource) Subscribe(h Handler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return nil, f.SubscribeError
	}
	f.Subscribes++
	f.nextID++
	f.handlers[f.nextID] = h
	return &fakeSubscription{source: f, id: f.nextID}, nil
}

// Emit delivers s to every live subscriber.
func (f *FakeSource) Emit(s logic.Sample) {
	f.mu.Lock()
	hs := make([]Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h)
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(s)
	}
}

// Live returns the number of live subscriptions.
func (f *FakeSource) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// Counts returns the subscribe and unsubscribe totals.
func (f *FakeSource) Counts() (subscribes, unsubscribes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Subscribes, f.Unsubscribes
}

type fakeSubscription struct {
	source *FakeSource
	id     int
}

func (s *fakeSubscription) Unsubscribe() error {
	s.source.mu.Lock()
	defer s.source.mu.Unlock()
	if _, ok := s.source.handlers[s.id]; ok {
		delete(s.source.handlers, s.id)
		s.source.Unsubscribes++
	}
	return nil
}
