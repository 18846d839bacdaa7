package dispatch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"autopid/internal/clock"
	"autopid/internal/store"
)

type stubSink struct {
	fail    bool
	payload []byte
	calls   int
}

func (s *stubSink) Send(payload []byte) error {
	s.calls++
	s.payload = payload
	if s.fail {
		return errors.New("stub failure")
	}
	return nil
}
func (s *stubSink) Close() error { return nil }

type stubStatus struct{ connected bool }

func (s stubStatus) Connected() bool { return s.connected }

func newTestStoreForDispatch() *store.Store {
	return store.New([]*store.PIDEntry{{
		Cmd:   "010C",
		Class: store.KindStandard,
		Parameters: []*store.Parameter{
			{Name: "0C-EngineRPM", Kind: store.KindStandard, SensorType: store.SensorNumeric, Destination: "dest1"},
		},
	}})
}

func TestDispatcher_SendsOnlyWhenDue(t *testing.T) {
	st := newTestStoreForDispatch()
	st.Update("0C-EngineRPM", 1000)
	sink := &stubSink{}
	dest := &Destination{Name: "dest1", Type: "mqtt_topic", CycleMs: 1000, Enabled: true, sink: sink}
	clk := clock.NewFake(time.Unix(0, 0))
	d := New([]*Destination{dest}, st, clk, stubStatus{})

	d.Tick()
	if sink.calls != 1 {
		t.Fatalf("calls = %d, want 1 on first tick (nextDueAt starts at zero)", sink.calls)
	}

	d.Tick() // immediately again: not due yet
	if sink.calls != 1 {
		t.Fatalf("calls = %d, want still 1 before cycle elapses", sink.calls)
	}

	clk.Advance(1001 * time.Millisecond)
	d.Tick()
	if sink.calls != 2 {
		t.Fatalf("calls = %d, want 2 after cycle elapsed", sink.calls)
	}
}

func TestDispatcher_OnlySendsAssignedParameters(t *testing.T) {
	st := newTestStoreForDispatch()
	st.Update("0C-EngineRPM", 1000)
	sink := &stubSink{}
	dest := &Destination{Name: "dest1", Type: "mqtt_topic", CycleMs: 1000, Enabled: true, sink: sink}
	clk := clock.NewFake(time.Unix(0, 0))
	d := New([]*Destination{dest}, st, clk, stubStatus{})
	d.Tick()

	if string(sink.payload) != `{"0C-EngineRPM":1000}` {
		t.Fatalf("payload = %s", sink.payload)
	}
}

// TestDispatcher_BackoffRequiresThreeFailures is Testable Property 4:
// current_backoff_ms > 0 implies consecutive_failures >= 3 occurred.
// The first two failures must retry on the ordinary cycle, not backoff.
func TestDispatcher_BackoffRequiresThreeFailures(t *testing.T) {
	st := newTestStoreForDispatch()
	sink := &stubSink{fail: true}
	dest := &Destination{Name: "dest1", Type: "http", CycleMs: 1000, Enabled: true, sink: sink}
	clk := clock.NewFake(time.Unix(0, 0))
	d := New([]*Destination{dest}, st, clk, stubStatus{})

	d.Tick() // failure 1
	if dest.backoffMs != 0 {
		t.Fatalf("backoffMs = %d, want 0 after 1st failure", dest.backoffMs)
	}
	clk.Advance(1001 * time.Millisecond)
	d.Tick() // failure 2
	if dest.backoffMs != 0 {
		t.Fatalf("backoffMs = %d, want 0 after 2nd failure", dest.backoffMs)
	}
	clk.Advance(1001 * time.Millisecond)
	d.Tick() // failure 3
	if dest.consecutiveFailures != 3 {
		t.Fatalf("consecutiveFailures = %d, want 3", dest.consecutiveFailures)
	}
	if dest.backoffMs != 2000 {
		t.Fatalf("backoffMs = %d, want 2000 (cap=2*cycle=2000 applies after the 30000 floor)", dest.backoffMs)
	}
}

func TestDispatcher_BackoffResetsOnSuccess(t *testing.T) {
	st := newTestStoreForDispatch()
	sink := &stubSink{fail: true}
	dest := &Destination{Name: "dest1", Type: "http", CycleMs: 1000, Enabled: true, sink: sink}
	clk := clock.NewFake(time.Unix(0, 0))
	d := New([]*Destination{dest}, st, clk, stubStatus{})

	for i := 0; i < 3; i++ {
		d.Tick()
		clk.Advance(time.Duration(max64(dest.backoffMs, int64(dest.CycleMs))+1) * time.Millisecond)
	}
	if dest.backoffMs == 0 {
		t.Fatal("expected nonzero backoff after 3 consecutive failures")
	}

	sink.fail = false
	d.Tick()
	if dest.backoffMs != 0 {
		t.Fatalf("backoffMs = %d, want 0 after a successful send", dest.backoffMs)
	}
	if dest.consecutiveFailures != 0 {
		t.Fatalf("consecutiveFailures = %d, want 0 after a successful send", dest.consecutiveFailures)
	}
}

func TestDispatcher_DisabledDestinationNeverSends(t *testing.T) {
	st := newTestStoreForDispatch()
	sink := &stubSink{}
	dest := &Destination{Name: "dest1", Type: "http", CycleMs: 1000, Enabled: false, sink: sink}
	clk := clock.NewFake(time.Unix(0, 0))
	d := New([]*Destination{dest}, st, clk, stubStatus{})
	d.Tick()
	if sink.calls != 0 {
		t.Fatal("disabled destination should never send")
	}
}

// TestDispatcher_HTTPWrapsConfigOnFirstSuccessOnly exercises spec
// §4.7 step 2: the first successful post wraps {config, status,
// autopid_data}; afterwards only {autopid_data} is sent.
func TestDispatcher_HTTPWrapsConfigOnFirstSuccessOnly(t *testing.T) {
	st := newTestStoreForDispatch()
	st.Update("0C-EngineRPM", 1000)
	sink := &stubSink{}
	dest := &Destination{Name: "dest1", Type: "http", CycleMs: 1000, Enabled: true, sink: sink}
	clk := clock.NewFake(time.Unix(0, 0))
	d := New([]*Destination{dest}, st, clk, stubStatus{connected: true})

	d.Tick()
	var first map[string]json.RawMessage
	if err := json.Unmarshal(sink.payload, &first); err != nil {
		t.Fatalf("first payload not valid JSON: %v", err)
	}
	for _, key := range []string{"config", "status", "autopid_data"} {
		if _, ok := first[key]; !ok {
			t.Fatalf("first payload missing %q: %s", key, sink.payload)
		}
	}

	clk.Advance(1001 * time.Millisecond)
	d.Tick()
	var second map[string]json.RawMessage
	if err := json.Unmarshal(sink.payload, &second); err != nil {
		t.Fatalf("second payload not valid JSON: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("second payload = %s, want only autopid_data", sink.payload)
	}
	if _, ok := second["autopid_data"]; !ok {
		t.Fatalf("second payload missing autopid_data: %s", sink.payload)
	}
}

func TestNextBackoffMs_FloorAppliesBeforeCap(t *testing.T) {
	// cycle=100: max(0,100)*2=200, floor 30000 -> 30000, cap 2*100=200 -> 200.
	got := nextBackoffMs(0, 100, 30_000)
	if got != 200 {
		t.Fatalf("got %d, want 200 (cap wins after floor)", got)
	}
}

func TestNextBackoffMs_ABRPFloor(t *testing.T) {
	// doubled cycle (20000) is below the 60000 floor, so the floor
	// bumps it up to 60000, then the 2*cycle=20000 cap clips it back
	// down — the cap always wins when cycle is small relative to floor.
	got := nextBackoffMs(0, 10_000, abrpBackoffFloorMs)
	if got != 20_000 {
		t.Fatalf("got %d, want 20000", got)
	}
}
