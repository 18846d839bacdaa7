package liveness

import "testing"

type fakeChecker struct{ allFailed bool }

func (f *fakeChecker) AllFailed() bool { return f.allFailed }

func TestMonitor_StartsConnected(t *testing.T) {
	m := New(&fakeChecker{})
	if !m.Connected() {
		t.Fatal("expected Monitor to start connected")
	}
}

func TestMonitor_TickFlipsOnAllFailed(t *testing.T) {
	checker := &fakeChecker{}
	m := New(checker)

	checker.allFailed = true
	m.Tick()
	if m.Connected() {
		t.Fatal("expected disconnected after all-failed tick")
	}

	checker.allFailed = false
	m.Tick()
	if !m.Connected() {
		t.Fatal("expected reconnected once a parameter succeeds")
	}
}
