// Package stopwatch wires the timer, debounce gate, motion detector and record
// list into the session that exists while the user is logged in.
//
// A Stopwatch is driven by one front-end loop (the daemon run loop or the
// terminal UI) that calls Frame while the timer runs. Sensor samples and
// network replies arrive on other goroutines; all state is guarded by a mutex
// and every change is announced on Changed so the loop can redraw and
// (re)schedule frames.
package stopwatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/logic"
	"github.com/sweeney/shake-timer/internal/records"
	"github.com/sweeney/shake-timer/internal/sensor"
)

// ErrInactive is returned by operations that need a logged-in session.
var ErrInactive = errors.New("stopwatch: not logged in")

// ErrNothingToSubmit is returned by Submit while running or at zero elapsed.
var ErrNothingToSubmit = errors.New("stopwatch: nothing to submit")

// ErrSubmitPending is returned by Submit while an earlier submit of the same
// time is still waiting for the server.
var ErrSubmitPending = fmt.Errorf("%w: submit in progress", ErrNothingToSubmit)

// eventBuffer is how many unpublished events are held before dropping.
const eventBuffer = 64

// Config holds the tunables of the trigger path.
type Config struct {
	Debounce  time.Duration
	Threshold float64
}

// DefaultConfig is a 250ms debounce and a 0.5 threshold.
func DefaultConfig() Config {
	return Config{Debounce: 250 * time.Millisecond, Threshold: logic.DefaultThreshold}
}

// View is a point-in-time copy of the stopwatch for display.
type View struct {
	Active     bool
	Timer      logic.TimerState
	Magnitude  float64
	Capability logic.Capability
	Records    []api.Record
	Counts     logic.Counts
	CanSubmit  bool
}

// Stopwatch is the logged-in session state. It implements session.Lifecycle.
type Stopwatch struct {
	cfg     Config
	now     func() time.Time
	records *records.Sync
	binding *sensor.Binding

	events  chan logic.Event
	changed chan struct{}

	mu     sync.Mutex
	active bool
	timer  *logic.Timer
	gate   *logic.Debounce
	motion *logic.MotionDetector
	counts logic.Counts

	// submitting is the timer whose time is being created on the server.
	submitting *logic.Timer
}

// New creates an inactive stopwatch. source may be nil when no motion sensor
// is configured; the detector then reports CapabilityUnavailable.
func New(cfg Config, rs *records.Sync, source sensor.Source, now func() time.Time) *Stopwatch {
	s := &Stopwatch{
		cfg:     cfg,
		now:     now,
		records: rs,
		events:  make(chan logic.Event, eventBuffer),
		changed: make(chan struct{}, 1),
	}
	s.binding = sensor.NewBinding(source, s.handleSample)
	return s
}

// Activate creates a stopped timer, subscribes to the sensor and fetches the
// record list. Sensor and network failures are logged, not returned.
func (s *Stopwatch) Activate(ctx context.Context) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.timer = logic.NewTimer(s.now())
	s.gate = logic.NewDebounce(s.cfg.Debounce, s.toggleLocked)
	s.motion = logic.NewMotionDetector(s.cfg.Threshold, s.crossingLocked)
	s.mu.Unlock()

	capability := logic.CapabilityAvailable
	if err := s.binding.Activate(); err != nil {
		log.Printf("motion sensor unavailable: %v", err)
		capability = logic.CapabilityUnavailable
	}

	s.mu.Lock()
	if s.motion != nil {
		s.motion.SetCapability(capability)
	}
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		log.Printf("initial record fetch: %v", err)
	}
	s.notify()
}

// Deactivate releases the sensor and discards the timer and record list.
func (s *Stopwatch) Deactivate() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.timer = nil
	s.gate = nil
	s.motion = nil
	// Under s.mu so no Refresh can begin a list between the flag and the clear.
	s.records.Clear()
	s.mu.Unlock()

	s.binding.Deactivate()
	s.notify()
}

// Press is the start/stop button. The press goes through the same debounce
// gate as the motion trigger. It reports whether the toggle was accepted.
func (s *Stopwatch) Press() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	if !s.invokeLocked(s.now()) {
		return false
	}
	s.notify()
	return true
}

// HandleSample feeds one acceleration sample to the motion detector.
// It reports whether the sample toggled the timer.
func (s *Stopwatch) HandleSample(sample logic.Sample) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	before := s.counts.Accepted
	s.motion.Process(sample)
	toggled := s.counts.Accepted != before
	s.mu.Unlock()

	if toggled {
		s.notify()
	}
	return toggled
}

func (s *Stopwatch) handleSample(sample logic.Sample) {
	if sample.Time.IsZero() {
		sample.Time = s.now()
	}
	s.HandleSample(sample)
}

func (s *Stopwatch) crossingLocked(at time.Time) {
	s.counts.Crossings++
	s.invokeLocked(at)
}

func (s *Stopwatch) invokeLocked(at time.Time) bool {
	if s.gate.Invoke(at) {
		return true
	}
	s.counts.Dropped++
	return false
}

func (s *Stopwatch) toggleLocked(at time.Time) {
	e := s.timer.Toggle(at)
	s.counts.Accepted++
	s.emit(e)
}

// Frame advances the running timer to the current time. It reports whether
// another frame should be scheduled.
func (s *Stopwatch) Frame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	return s.timer.Tick(s.now())
}

// Running reports whether the timer is running.
func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.timer.Running()
}

// Elapsed returns the timer's elapsed time, or 0 when inactive.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return 0
	}
	return s.timer.Elapsed()
}

// CanSubmit reports whether a stopped, nonzero time is waiting to be submitted.
func (s *Stopwatch) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Stopwatch) canSubmitLocked() bool {
	return s.active && s.submitting != s.timer && !s.timer.Running() && s.timer.Elapsed() != 0
}

// Submit stores the stopped time on the server, resets the timer and
// refreshes the record list. A failed create leaves the timer untouched.
// Only one submit per session runs at a time; others get ErrSubmitPending.
func (s *Stopwatch) Submit(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrInactive
	}
	if s.submitting == s.timer {
		s.mu.Unlock()
		return ErrSubmitPending
	}
	if !s.canSubmitLocked() {
		s.mu.Unlock()
		return ErrNothingToSubmit
	}
	timer := s.timer
	elapsed := timer.Elapsed()
	s.submitting = timer
	s.mu.Unlock()

	err := s.records.Create(ctx, elapsed)

	s.mu.Lock()
	if s.submitting == timer {
		s.submitting = nil
	}
	if err != nil {
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("submit: %w", err)
	}
	// Stored, but the session that submitted it is gone.
	if !s.active || s.timer != timer {
		s.mu.Unlock()
		log.Printf("submit: session ended before %s was acknowledged", logic.FormatSeconds(elapsed))
		return nil
	}
	now := s.now()
	if !timer.Running() {
		timer.Reset(now)
	}
	s.counts.Submitted++
	s.emit(logic.Event{Timestamp: now, Type: logic.EventSubmitted, Elapsed: elapsed})
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Delete removes a record on the server and refreshes the list. The list is
// refreshed even when the delete fails, so the display matches the server.
func (s *Stopwatch) Delete(ctx context.Context, id string) error {
	if !s.isActive() {
		return ErrInactive
	}

	delErr := s.records.Delete(ctx, id)
	if delErr == nil {
		s.mu.Lock()
		s.counts.Deleted++
		s.emit(logic.Event{Timestamp: s.now(), Type: logic.EventDeleted, RecordID: id})
		s.mu.Unlock()
	}

	refreshErr := s.Refresh(ctx)
	if delErr != nil {
		return fmt.Errorf("delete %s: %w", id, delErr)
	}
	return refreshErr
}

// Refresh refetches the record list. Responses overtaken by a newer refresh
// are discarded.
func (s *Stopwatch) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrInactive
	}
	seq := s.records.Begin()
	s.mu.Unlock()

	_, applied, err := s.records.Fetch(ctx, seq)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if applied {
		s.notify()
	}
	return nil
}

// Records returns the cached record list.
func (s *Stopwatch) Records() []api.Record {
	return s.records.Records()
}

// View returns a snapshot for display.
func (s *Stopwatch) View() View {
	s.mu.Lock()
	v := View{
		Active:     s.active,
		Counts:     s.counts,
		Capability: logic.CapabilityUnknown,
	}
	if s.active {
		v.Timer = s.timer.State()
		v.Magnitude = s.motion.Magnitude()
		v.Capability = s.motion.Capability()
		v.CanSubmit = s.canSubmitLocked()
	}
	s.mu.Unlock()

	if v.Active {
		v.Records = s.records.Records()
	}
	return v
}

// Counts returns the trigger and submission counters.
func (s *Stopwatch) Counts() logic.Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// SensorSubscribed reports whether a live sensor subscription is held.
func (s *Stopwatch) SensorSubscribed() bool {
	return s.binding.Subscribed()
}

// Events returns timer events for publishing. Events are dropped if nobody
// drains the channel.
func (s *Stopwatch) Events() <-chan logic.Event {
	return s.events
}

// Changed is signalled after accepted toggles, applied list refreshes,
// activation and deactivation. It holds at most one pending signal.
func (s *Stopwatch) Changed() <-chan struct{} {
	return s.changed
}

func (s *Stopwatch) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Stopwatch) emit(e logic.Event) {
	select {
	case s.events <- e:
	default:
		log.Printf("event buffer full, dropping %s", e.Type)
	}
}

func (s *Stopwatch) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
