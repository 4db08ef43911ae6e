// Package status provides a thread-safe status tracker for the shake-timer daemon.
// It is read by the HTTP status page and by the MQTT startup/heartbeat events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/shake-timer/internal/stopwatch"
)

// Config contains daemon configuration for display.
type Config struct {
	Server      string
	Username    string
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	FPS         int
	Threshold   float64
	Broker      string
	SensorTopic string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	LoggedIn      bool
	Stopwatch     stopwatch.View
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the login state and the stopwatch view.
// Called from the run loop after every change and on every frame.
func (t *Tracker) Update(loggedIn bool, view stopwatch.View) {
	t.mu.Lock()
	t.snap.LoggedIn = loggedIn
	t.snap.Stopwatch = view
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
