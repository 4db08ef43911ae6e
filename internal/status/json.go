package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/shake-timer/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	LoggedIn      bool         `json:"logged_in"`
	Timer         TimerJSON    `json:"timer"`
	Sensor        SensorJSON   `json:"sensor"`
	Records       []RecordJSON `json:"records,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        ConfigJSON   `json:"config"`
}

// TimerJSON reports the timer state. Elapsed is seconds with two decimals.
type TimerJSON struct {
	State     string `json:"state"`
	Elapsed   string `json:"elapsed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	CanSubmit bool   `json:"can_submit"`
}

// SensorJSON reports the motion sensor. Magnitude has three significant figures.
type SensorJSON struct {
	Capability string `json:"capability"`
	Magnitude  string `json:"magnitude"`
}

// RecordJSON is one stored time.
type RecordJSON struct {
	ID      string `json:"id"`
	TimeMs  int64  `json:"time_ms"`
	Elapsed string `json:"elapsed"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the trigger counters.
type CountsJSON struct {
	Accepted  int `json:"accepted"`
	Dropped   int `json:"dropped"`
	Crossings int `json:"crossings"`
	Submitted int `json:"submitted"`
	Deleted   int `json:"deleted"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Server      string  `json:"server"`
	Username    string  `json:"username,omitempty"`
	PollMs      int64   `json:"poll_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	FPS         int     `json:"fps"`
	Threshold   float64 `json:"threshold"`
	Broker      string  `json:"broker"`
	SensorTopic string  `json:"sensor_topic,omitempty"`
	HTTPAddr    string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	view := snap.Stopwatch
	capability := string(view.Capability)
	if capability == "" {
		capability = string(logic.CapabilityUnknown)
	}

	inner := StatusInner{
		LoggedIn: snap.LoggedIn,
		Timer: TimerJSON{
			State:     string(view.Timer.State()),
			Elapsed:   logic.FormatSeconds(view.Timer.Elapsed()),
			ElapsedMs: view.Timer.Elapsed().Milliseconds(),
			CanSubmit: view.CanSubmit,
		},
		Sensor: SensorJSON{
			Capability: capability,
			Magnitude:  logic.FormatMagnitude(view.Magnitude),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Accepted:  view.Counts.Accepted,
			Dropped:   view.Counts.Dropped,
			Crossings: view.Counts.Crossings,
			Submitted: view.Counts.Submitted,
			Deleted:   view.Counts.Deleted,
		},
		Config: ConfigJSON{
			Server:      snap.Config.Server,
			Username:    snap.Config.Username,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			FPS:         snap.Config.FPS,
			Threshold:   snap.Config.Threshold,
			Broker:      snap.Config.Broker,
			SensorTopic: snap.Config.SensorTopic,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	for _, r := range view.Records {
		inner.Records = append(inner.Records, RecordJSON{
			ID:      r.ID,
			TimeMs:  r.Time,
			Elapsed: logic.FormatSeconds(r.Elapsed()),
		})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// The record list is left out to keep the message small.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	inner.Records = nil

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
