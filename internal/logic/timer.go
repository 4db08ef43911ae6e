package logic

import "time"

// Timer tracks start/end epochs for a stopwatch.
//
// While running, End is advanced by Tick on every frame; while stopped, End is
// frozen. Start <= End holds at all times.
type Timer struct {
	state TimerState
}

// NewTimer creates a stopped timer with zero elapsed time.
func NewTimer(now time.Time) *Timer {
	return &Timer{state: TimerState{Start: now, End: now}}
}

// Toggle flips between STOPPED and RUNNING and returns the resulting event.
// Starting sets Start = End = now. Stopping freezes End at now.
func (t *Timer) Toggle(now time.Time) Event {
	if t.state.Running {
		t.advance(now)
		t.state.Running = false
		return Event{Timestamp: now, Type: EventStopped, Elapsed: t.state.Elapsed()}
	}

	t.state.Start = now
	t.state.End = now
	t.state.Running = true
	return Event{Timestamp: now, Type: EventStarted}
}

// Tick advances End to now while running. It reports whether the caller
// should schedule another frame.
func (t *Timer) Tick(now time.Time) bool {
	if !t.state.Running {
		return false
	}
	t.advance(now)
	return true
}

// Reset sets Start = End = now. Running is left unchanged.
func (t *Timer) Reset(now time.Time) {
	t.state.Start = now
	t.state.End = now
}

// advance moves End forward, never backward, so elapsed time is
// non-decreasing even if the clock steps back between frames.
func (t *Timer) advance(now time.Time) {
	if now.After(t.state.End) {
		t.state.End = now
	}
}

// Elapsed returns End - Start.
func (t *Timer) Elapsed() time.Duration {
	return t.state.Elapsed()
}

// Running reports whether the timer is running.
func (t *Timer) Running() bool {
	return t.state.Running
}

// State returns a copy of the timer epochs.
func (t *Timer) State() TimerState {
	return t.state
}
