// Package sensor delivers 3-axis acceleration samples, with a subscription
// lifecycle that is bound to explicit activation and deactivation.
package sensor

import (
	"errors"
	"log"
	"sync"

	"github.com/sweeney/shake-timer/internal/logic"
)

// ErrUnavailable is returned when the sensor is missing or access is denied.
var ErrUnavailable = errors.New("sensor: unavailable")

// Handler receives samples. It may be called from any goroutine.
type Handler func(logic.Sample)

// Source is a stream of acceleration samples.
type Source interface {
	// Subscribe starts delivering samples to h until the returned
	// Subscription is released. Errors wrap ErrUnavailable when the sensor
	// cannot be used at all.
	Subscribe(h Handler) (Subscription, error)
}

// Subscription is an active sample stream.
type Subscription interface {
	Unsubscribe() error
}

// Binding ties a Source subscription to an activation window: Activate
// subscribes exactly once, Deactivate unsubscribes exactly once. Calling
// Activate while active, or Deactivate while inactive, does nothing.
type Binding struct {
	source  Source
	handler Handler

	mu     sync.Mutex
	sub    Subscription
	active bool
}

// NewBinding creates an inactive binding delivering samples to h.
func NewBinding(source Source, h Handler) *Binding {
	return &Binding{source: source, handler: h}
}

// Activate subscribes to the source. If the source is unavailable the binding
// still becomes active (so Deactivate pairs with it) but holds no
// subscription, and the error is returned for the caller to report.
func (b *Binding) Activate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		return nil
	}
	b.active = true

	if b.source == nil {
		return ErrUnavailable
	}
	sub, err := b.source.Subscribe(b.handler)
	if err != nil {
		return err
	}
	b.sub = sub
	return nil
}

// Deactivate releases the subscription, if any.
func (b *Binding) Deactivate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return
	}
	b.active = false

	sub := b.sub
	b.sub = nil
	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		log.Printf("sensor: unsubscribe error: %v", err)
	}
}

// Active reports whether the binding is between Activate and Deactivate.
func (b *Binding) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Subscribed reports whether a live subscription is held.
func (b *Binding) Subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub != nil
}
