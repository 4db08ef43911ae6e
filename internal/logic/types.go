// Package logic contains the pure stopwatch state machines: the timer, the
// debounce gate, and the motion threshold detector.
// This package has NO external dependencies (no MQTT, GPIO, HTTP, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the run state of the timer.
type State string

const (
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
)

// EventType represents a timer lifecycle event.
type EventType string

const (
	EventStarted   EventType = "STARTED"
	EventStopped   EventType = "STOPPED"
	EventSubmitted EventType = "SUBMITTED"
	EventDeleted   EventType = "DELETED"
)

// Event represents a timer transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Elapsed   time.Duration
	// RecordID is set for DELETED events.
	RecordID string
}

// TimerState is a point-in-time copy of the timer epochs.
type TimerState struct {
	Start   time.Time
	End     time.Time
	Running bool
}

// Elapsed returns End - Start.
func (s TimerState) Elapsed() time.Duration {
	return s.End.Sub(s.Start)
}

// State returns RUNNING or STOPPED.
func (s TimerState) State() State {
	if s.Running {
		return StateRunning
	}
	return StateStopped
}

// Sample is a single 3-axis acceleration reading in sensor units.
type Sample struct {
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Z    float64   `json:"z"`
	Time time.Time `json:"-"`
}

// Capability reports whether the motion sensor can be used.
type Capability string

const (
	CapabilityUnknown     Capability = "UNKNOWN"
	CapabilityAvailable   Capability = "AVAILABLE"
	CapabilityUnavailable Capability = "UNAVAILABLE"
)

// Counts tracks how toggles and submissions were handled since startup.
type Counts struct {
	Accepted  int // toggles that passed the debounce gate
	Dropped   int // toggles swallowed by the debounce gate
	Crossings int // motion samples at or above threshold
	Submitted int
	Deleted   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
