package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/gpio"
	"github.com/sweeney/shake-timer/internal/logic"
	"github.com/sweeney/shake-timer/internal/mqtt"
	"github.com/sweeney/shake-timer/internal/records"
	"github.com/sweeney/shake-timer/internal/session"
	"github.com/sweeney/shake-timer/internal/status"
	"github.com/sweeney/shake-timer/internal/stopwatch"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// steppingClock is fakeClock guarded by a mutex, for the stopwatch, which is
// also reached from the test goroutine.
type steppingClock struct {
	mu   sync.Mutex
	next func() time.Time
}

func newSteppingClock(step time.Duration) *steppingClock {
	return &steppingClock{next: fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step)}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next()
}

type fakeAuth struct{}

func (fakeAuth) Login(ctx context.Context, creds api.Credentials) error {
	if creds.Password != "secret" {
		return &api.ServerError{Op: "login", StatusCode: http.StatusUnauthorized}
	}
	return nil
}

func (fakeAuth) Logout(ctx context.Context) error { return nil }

// --- runLoop tests ---

type fixture struct {
	sw      *stopwatch.Stopwatch
	gate    *session.Gate
	backend *records.FakeBackend
	pub     *mqtt.FakePublisher
	tracker *status.Tracker

	tick  chan time.Time
	frame chan time.Time
	sig   chan os.Signal
	errCh chan error
}

// newFixture builds a logged-in stopwatch whose clock advances 300ms per
// reading, so consecutive presses always clear the 250ms debounce window.
func newFixture(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	clock := newSteppingClock(300 * time.Millisecond)
	f := &fixture{
		backend: records.NewFakeBackend(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{}),
		tick:    make(chan time.Time),
		frame:   make(chan time.Time),
		sig:     make(chan os.Signal, 1),
		errCh:   make(chan error, 1),
	}
	f.sw = stopwatch.New(stopwatch.DefaultConfig(), records.NewSync(f.backend), nil, clock.Now)
	f.gate = session.NewGate(fakeAuth{}, f.sw)
	if loggedIn {
		if err := f.gate.Login(context.Background(), api.Credentials{Username: "alice", Password: "secret"}); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	return f
}

func (f *fixture) start(button gpio.Reader, heartbeat time.Duration, clock func() time.Time) {
	l := loop{
		sw:        f.sw,
		gate:      f.gate,
		button:    button,
		publisher: f.pub,
		tracker:   f.tracker,
		heartbeat: heartbeat,
		now:       clock,
		tick:      f.tick,
		frame:     f.frame,
		sig:       f.sig,
	}
	go func() {
		f.errCh <- runLoop(l)
	}()
}

func (f *fixture) ticks(n int) {
	for i := 0; i < n; i++ {
		f.tick <- time.Time{}
	}
}

func (f *fixture) stop(t *testing.T, s os.Signal) {
	t.Helper()
	f.sig <- s
	select {
	case err := <-f.errCh:
		if err != nil {
			t.Fatalf("runLoop returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not stop")
	}
}

func defaultClock() func() time.Time {
	return fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 100*time.Millisecond)
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	f := newFixture(t, true)
	f.start(nil, 0, defaultClock())
	f.stop(t, syscall.SIGTERM)

	if got := f.pub.SystemEventNames(); len(got) != 1 || got[0] != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %v", got)
	}
	se := f.pub.SystemEvents[0]
	if se.Reason != "SIGTERM" || !se.Retained {
		t.Errorf("unexpected shutdown event %+v", se)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(f.pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid shutdown payload: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" || !parsed.Status.LoggedIn {
		t.Errorf("unexpected shutdown status %+v", parsed.Status)
	}

	if f.gate.LoggedIn() {
		t.Error("session should be closed on shutdown")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	f := newFixture(t, false)
	f.start(nil, 0, defaultClock())
	f.stop(t, syscall.SIGINT)

	if len(f.pub.SystemEvents) != 1 || f.pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("expected SIGINT shutdown, got %+v", f.pub.SystemEvents)
	}
}

func TestRunLoopButtonToggles(t *testing.T) {
	f := newFixture(t, true)
	// released, pressed, released, pressed
	reader := gpio.NewFakeReader(false, true, false, true)
	f.start(reader, 0, defaultClock())
	f.ticks(4)
	f.stop(t, syscall.SIGTERM)

	got := f.pub.EventTypes()
	if len(got) != 2 || got[0] != logic.EventStarted || got[1] != logic.EventStopped {
		t.Fatalf("expected [STARTED STOPPED], got %v", got)
	}
	if f.sw.Counts().Accepted != 2 {
		t.Errorf("accepted: got %d, want 2", f.sw.Counts().Accepted)
	}

	// Timer events are published before the shutdown notice.
	if names := f.pub.SystemEventNames(); len(names) != 1 || names[0] != "SHUTDOWN" {
		t.Errorf("unexpected system events %v", names)
	}
}

func TestRunLoopButtonHeldAtStartup(t *testing.T) {
	f := newFixture(t, true)
	reader := gpio.NewFakeReader(true, true, true)
	f.start(reader, 0, defaultClock())
	f.ticks(3)
	f.stop(t, syscall.SIGTERM)

	if len(f.pub.Events) != 0 {
		t.Errorf("a button held at startup is not a press, got %v", f.pub.EventTypes())
	}
}

func TestRunLoopButtonLoggedOut(t *testing.T) {
	f := newFixture(t, false)
	reader := gpio.NewFakeReader(false, true)
	f.start(reader, 0, defaultClock())
	f.ticks(2)
	f.stop(t, syscall.SIGTERM)

	if len(f.pub.Events) != 0 {
		t.Errorf("press while logged out should do nothing, got %v", f.pub.EventTypes())
	}
}

func TestRunLoopGPIOReadError(t *testing.T) {
	f := newFixture(t, true)
	reader := gpio.NewFakeReader(false)
	reader.ReadError = errors.New("gpio fault")
	f.start(reader, 0, defaultClock())
	f.ticks(3)
	f.stop(t, syscall.SIGTERM)

	if len(f.pub.Events) != 0 {
		t.Errorf("expected no events, got %v", f.pub.EventTypes())
	}
	if len(f.pub.SystemEvents) != 1 {
		t.Errorf("expected loop to survive read errors and shut down cleanly")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	f := newFixture(t, true)
	// startTime t0; ticks at +5m, +10m, +15m. The 15-minute heartbeat fires on the third.
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)
	f.start(nil, 15*time.Minute, clock)
	f.ticks(3)
	f.stop(t, syscall.SIGTERM)

	names := f.pub.SystemEventNames()
	if len(names) != 2 || names[0] != "HEARTBEAT" || names[1] != "SHUTDOWN" {
		t.Fatalf("expected [HEARTBEAT SHUTDOWN], got %v", names)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(f.pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid heartbeat payload: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("unexpected heartbeat event %q", parsed.Status.Event)
	}
	if !f.pub.SystemEvents[0].Timestamp.Equal(time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)) {
		t.Errorf("unexpected heartbeat timestamp %v", f.pub.SystemEvents[0].Timestamp)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	f := newFixture(t, true)
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)
	f.start(nil, 0, clock)
	f.ticks(5)
	f.stop(t, syscall.SIGTERM)

	if names := f.pub.SystemEventNames(); len(names) != 1 {
		t.Errorf("expected only SHUTDOWN with heartbeat disabled, got %v", names)
	}
}

func TestRunLoopFramesUpdateTracker(t *testing.T) {
	f := newFixture(t, true)
	reader := gpio.NewFakeReader(false, true)
	f.start(reader, 0, defaultClock())
	f.ticks(2)
	// Frames are only read while running; these would block otherwise.
	f.frame <- time.Time{}
	f.frame <- time.Time{}
	f.stop(t, syscall.SIGTERM)

	snap := f.tracker.Snapshot()
	if !snap.LoggedIn || !snap.Stopwatch.Timer.Running {
		t.Fatalf("expected running timer in tracker, got %+v", snap.Stopwatch.Timer)
	}
	if snap.Stopwatch.Timer.Elapsed() <= 0 {
		t.Errorf("expected elapsed to advance with frames, got %v", snap.Stopwatch.Timer.Elapsed())
	}
}

func TestRunLoopExternalPress(t *testing.T) {
	f := newFixture(t, true)
	f.start(nil, 0, defaultClock())

	// A press from the status page arrives on another goroutine.
	if !f.sw.Press() {
		t.Fatal("press not accepted")
	}
	f.frame <- time.Time{}
	f.stop(t, syscall.SIGTERM)

	if got := f.pub.EventTypes(); len(got) != 1 || got[0] != logic.EventStarted {
		t.Errorf("expected STARTED published, got %v", got)
	}
	if !f.tracker.Snapshot().Stopwatch.Timer.Running {
		t.Error("tracker should show the running timer")
	}
}

func TestRunLoopPublishError(t *testing.T) {
	f := newFixture(t, true)
	f.pub.PublishError = errors.New("broker down")
	reader := gpio.NewFakeReader(false, true)
	f.start(reader, 0, defaultClock())
	f.ticks(3)
	f.stop(t, syscall.SIGTERM)

	if len(f.pub.Events) != 0 {
		t.Errorf("expected no recorded events, got %d", len(f.pub.Events))
	}
	if names := f.pub.SystemEventNames(); len(names) != 1 || names[0] != "SHUTDOWN" {
		t.Errorf("loop should keep running after publish errors, got %v", names)
	}
}

// --- helpers ---

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	err := printRecords(&buf, []api.Record{
		{ID: "abc", Time: 1500},
		{ID: "def", Time: 12340},
	})
	if err != nil {
		t.Fatalf("printRecords: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"SECONDS", "1.50", "abc", "12.34", "def"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printRecords(&buf, nil)
	if strings.TrimSpace(buf.String()) != "no times recorded" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(envPassword, "secret")

	creds, err := credentials("alice")
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.Username != "alice" || creds.Password != "secret" {
		t.Errorf("unexpected credentials %+v", creds)
	}
}

func TestCredentialsNeedUsername(t *testing.T) {
	t.Setenv(envPassword, "secret")
	if _, err := credentials(""); err == nil {
		t.Error("expected error without a username")
	}
}
