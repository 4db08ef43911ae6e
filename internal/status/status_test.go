package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/logic"
	"github.com/sweeney/shake-timer/internal/stopwatch"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func stoppedView(elapsed time.Duration) stopwatch.View {
	return stopwatch.View{
		Active:     true,
		Timer:      logic.TimerState{Start: start, End: start.Add(elapsed)},
		Magnitude:  0.5,
		Capability: logic.CapabilityAvailable,
		Records:    []api.Record{{ID: "a", Time: 1200}, {ID: "b", Time: 61000}},
		Counts:     logic.Counts{Accepted: 2, Dropped: 3, Crossings: 4, Submitted: 1},
		CanSubmit:  elapsed != 0,
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{PollMs: 20, DebounceMs: 250, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 20 {
		t.Errorf("Config.PollMs: got %d, want 20", snap.Config.PollMs)
	}
	if snap.LoggedIn {
		t.Error("expected LoggedIn=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Update(true, stoppedView(1500*time.Millisecond))

	snap := tr.Snapshot()
	if !snap.LoggedIn {
		t.Error("expected LoggedIn=true")
	}
	if snap.Stopwatch.Timer.Elapsed() != 1500*time.Millisecond {
		t.Errorf("Elapsed: got %v", snap.Stopwatch.Timer.Elapsed())
	}
	if len(snap.Stopwatch.Records) != 2 {
		t.Errorf("Records: got %d, want 2", len(snap.Stopwatch.Records))
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		LoggedIn:      true,
		Stopwatch:     stoppedView(1500 * time.Millisecond),
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PollMs: 20, DebounceMs: 250, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if !s.LoggedIn {
		t.Error("expected LoggedIn=true")
	}
	if s.Timer.State != "STOPPED" || s.Timer.Elapsed != "1.50" || s.Timer.ElapsedMs != 1500 {
		t.Errorf("unexpected timer %+v", s.Timer)
	}
	if !s.Timer.CanSubmit {
		t.Error("expected CanSubmit=true")
	}
	if s.Sensor.Capability != "AVAILABLE" || s.Sensor.Magnitude != "0.500" {
		t.Errorf("unexpected sensor %+v", s.Sensor)
	}
	if len(s.Records) != 2 || s.Records[1].Elapsed != "61.00" || s.Records[0].ID != "a" {
		t.Errorf("unexpected records %+v", s.Records)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.Counts.Accepted != 2 || s.Counts.Dropped != 3 || s.Counts.Crossings != 4 {
		t.Errorf("unexpected counts %+v", s.Counts)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONLoggedOut(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.LoggedIn {
		t.Error("expected LoggedIn=false")
	}
	if parsed.Status.Sensor.Capability != "UNKNOWN" {
		t.Errorf("Capability: got %q, want UNKNOWN", parsed.Status.Sensor.Capability)
	}
	if parsed.Status.Timer.Elapsed != "0.00" {
		t.Errorf("Elapsed: got %q, want 0.00", parsed.Status.Timer.Elapsed)
	}
	if parsed.Status.Records != nil {
		t.Errorf("expected no records, got %+v", parsed.Status.Records)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		LoggedIn:  true,
		Stopwatch: stoppedView(0),
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "HEARTBEAT", ""), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Records != nil {
		t.Error("status events should not carry the record list")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var raw map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(start, Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(i%2 == 0, stoppedView(time.Duration(i)*time.Millisecond))
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = FormatJSON(tr.Snapshot())
		}
	}()

	wg.Wait()
}
