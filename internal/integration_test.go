package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/logic"
	"github.com/sweeney/shake-timer/internal/mqtt"
	"github.com/sweeney/shake-timer/internal/records"
	"github.com/sweeney/shake-timer/internal/sensor"
	"github.com/sweeney/shake-timer/internal/server"
	"github.com/sweeney/shake-timer/internal/session"
	"github.com/sweeney/shake-timer/internal/status"
	"github.com/sweeney/shake-timer/internal/stopwatch"
	"github.com/sweeney/shake-timer/internal/store"
	"github.com/sweeney/shake-timer/internal/web"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// rig is the whole client (stopwatch, session, status page) talking to the
// reference server over HTTP, with a scripted sensor.
type rig struct {
	clock   *clock
	store   *store.Store
	source  *sensor.FakeSource
	sw      *stopwatch.Stopwatch
	gate    *session.Gate
	tracker *status.Tracker
	page    *httptest.Server
}

func newRig(t *testing.T) *rig {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.AddUser(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	backend := httptest.NewServer(server.New(st).Handler())
	t.Cleanup(backend.Close)

	apiClient, err := api.NewClient(backend.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	r := &rig{
		clock:  &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		store:  st,
		source: sensor.NewFakeSource(),
	}
	r.sw = stopwatch.New(stopwatch.DefaultConfig(), records.NewSync(apiClient), r.source, r.clock.Now)
	r.gate = session.NewGate(apiClient, r.sw)
	r.tracker = status.NewTracker(r.clock.Now(), status.Config{Server: backend.URL})

	r.page = httptest.NewServer(web.New("", r.tracker, r.sw, r.gate).Handler())
	t.Cleanup(r.page.Close)
	return r
}

// sync does what the run loop does after a change.
func (r *rig) sync() {
	r.sw.Frame()
	r.tracker.Update(r.gate.LoggedIn(), r.sw.View())
}

func (r *rig) shake() {
	r.source.Emit(logic.Sample{X: 0.3, Y: 0.4, Z: 0, Time: r.clock.Now()})
}

func (r *rig) post(t *testing.T, path string, form url.Values) (int, web.ActionJSON) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, r.page.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var res web.ActionJSON
	json.NewDecoder(resp.Body).Decode(&res)
	return resp.StatusCode, res
}

func (r *rig) status(t *testing.T) status.StatusInner {
	t.Helper()
	resp, err := http.Get(r.page.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()
	var parsed status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	return parsed.Status
}

func login(t *testing.T, r *rig) {
	t.Helper()
	code, res := r.post(t, "/login", url.Values{"username": {"alice"}, "password": {"secret"}})
	if code != http.StatusOK || !res.OK {
		t.Fatalf("login: %d %+v", code, res)
	}
}

// TestIntegrationShakeSubmitDelete follows a session end to end: log in from
// the page, shake to start and stop, submit, delete, log out.
func TestIntegrationShakeSubmitDelete(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	login(t, r)
	if r.source.Live() != 1 {
		t.Fatalf("expected a live sensor subscription after login, got %d", r.source.Live())
	}
	r.sync()
	if st := r.status(t); !st.LoggedIn || st.Sensor.Capability != "AVAILABLE" || len(st.Records) != 0 {
		t.Fatalf("unexpected status after login: %+v", st)
	}

	r.shake()
	r.clock.Advance(1500 * time.Millisecond)
	r.sync()
	if st := r.status(t); st.Timer.State != "RUNNING" || st.Timer.Elapsed != "1.50" {
		t.Fatalf("expected running at 1.50, got %+v", st.Timer)
	}

	r.shake()
	r.sync()
	if st := r.status(t); st.Timer.State != "STOPPED" || !st.Timer.CanSubmit {
		t.Fatalf("expected stopped and submittable, got %+v", st.Timer)
	}

	if code, res := r.post(t, "/submit", nil); code != http.StatusOK || !res.OK {
		t.Fatalf("submit: %d %+v", code, res)
	}
	r.sync()
	st := r.status(t)
	if st.Timer.ElapsedMs != 0 || len(st.Records) != 1 || st.Records[0].TimeMs != 1500 {
		t.Fatalf("expected reset timer and one 1500ms record, got %+v / %+v", st.Timer, st.Records)
	}
	stored, _ := r.store.ListRecords(ctx, "alice")
	if len(stored) != 1 || stored[0].ID != st.Records[0].ID {
		t.Fatalf("server and client disagree: %+v vs %+v", stored, st.Records)
	}

	if code, res := r.post(t, "/records/"+st.Records[0].ID+"/delete", nil); code != http.StatusOK || !res.OK {
		t.Fatalf("delete: %d %+v", code, res)
	}
	r.sync()
	if st := r.status(t); len(st.Records) != 0 || st.Counts.Deleted != 1 {
		t.Fatalf("expected empty list after delete, got %+v", st)
	}

	if code, _ := r.post(t, "/logout", nil); code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	r.sync()
	if r.source.Live() != 0 {
		t.Error("sensor subscription should be released on logout")
	}
	if st := r.status(t); st.LoggedIn {
		t.Error("expected logged out")
	}
}

func TestIntegrationBadLoginKeepsLoggedOut(t *testing.T) {
	r := newRig(t)

	code, res := r.post(t, "/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	if code != http.StatusUnauthorized || res.OK {
		t.Fatalf("expected 401, got %d %+v", code, res)
	}
	if r.gate.LoggedIn() || r.source.Live() != 0 {
		t.Error("failed login must not activate the stopwatch")
	}

	if code, _ := r.post(t, "/toggle", nil); code != http.StatusOK {
		t.Fatalf("toggle: %d", code)
	}
	r.sync()
	if r.sw.Running() {
		t.Error("toggle while logged out should do nothing")
	}
}

func TestIntegrationShakeBurstDebounced(t *testing.T) {
	r := newRig(t)
	login(t, r)

	// Ten shakes 10ms apart: one toggle, the rest fall inside the window.
	for i := 0; i < 10; i++ {
		r.shake()
		r.clock.Advance(10 * time.Millisecond)
	}
	r.sync()

	st := r.status(t)
	if st.Timer.State != "RUNNING" {
		t.Fatalf("expected running, got %s", st.Timer.State)
	}
	if st.Counts.Accepted != 1 || st.Counts.Dropped != 9 || st.Counts.Crossings != 10 {
		t.Errorf("unexpected counts %+v", st.Counts)
	}
}

func TestIntegrationPageToggleSharesGateWithShake(t *testing.T) {
	r := newRig(t)
	login(t, r)

	_, res := r.post(t, "/toggle", nil)
	if res.Accepted == nil || !*res.Accepted {
		t.Fatalf("first toggle should be accepted, got %+v", res)
	}
	r.clock.Advance(100 * time.Millisecond)
	r.shake()
	r.sync()

	if !r.sw.Running() {
		t.Error("shake inside the window should be dropped")
	}
}

func TestIntegrationSubmitWhileRunningRejected(t *testing.T) {
	r := newRig(t)
	login(t, r)

	r.shake()
	r.clock.Advance(time.Second)
	code, res := r.post(t, "/submit", nil)
	if code != http.StatusConflict || res.OK {
		t.Errorf("expected 409 while running, got %d %+v", code, res)
	}
	n, _ := r.store.RecordCount(context.Background())
	if n != 0 {
		t.Errorf("nothing should be stored, got %d", n)
	}
}

func TestIntegrationDeleteUnknownRecord(t *testing.T) {
	r := newRig(t)
	login(t, r)

	code, res := r.post(t, "/records/missing/delete", nil)
	if code != http.StatusNotFound || res.OK {
		t.Errorf("expected 404, got %d %+v", code, res)
	}
}

// Events produced by the stopwatch reach the MQTT payload format unchanged.
func TestIntegrationEventsFormatForMQTT(t *testing.T) {
	r := newRig(t)
	login(t, r)
	pub := mqtt.NewFakePublisher()

	r.shake()
	r.clock.Advance(2 * time.Second)
	r.shake()

	for drained := false; !drained; {
		select {
		case e := <-r.sw.Events():
			if err := pub.Publish(e); err != nil {
				t.Fatalf("publish: %v", err)
			}
		default:
			drained = true
		}
	}

	if len(pub.Payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(pub.Payloads))
	}
	var stopped mqtt.Payload
	if err := json.Unmarshal(pub.Payloads[1], &stopped); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if stopped.Timer.Event != "STOPPED" || stopped.Timer.ElapsedMs != 2000 || stopped.Timer.Elapsed != "2.00" {
		t.Errorf("unexpected stop payload %+v", stopped.Timer)
	}
}
