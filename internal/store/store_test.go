package store

import (
	"encoding/json"
	"testing"
)

func newTestStore() (*Store, *PIDEntry) {
	entry := &PIDEntry{
		Cmd:   "010C\r",
		Class: KindStandard,
		Parameters: []*Parameter{
			{Name: "0C-EngineRPM", Kind: KindStandard, SensorType: SensorNumeric, Min: 0, Max: 16384},
			{Name: "CHARGING", Kind: KindCustom, SensorType: SensorBinary},
		},
	}
	return New([]*PIDEntry{entry}), entry
}

func TestSnapshotClosure(t *testing.T) {
	s, _ := newTestStore()

	empty := s.SnapshotJSON()
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(empty, &obj); err != nil {
		t.Fatal(err)
	}
	if len(obj) != 0 {
		t.Fatalf("expected empty snapshot before any update, got %s", empty)
	}

	s.Update("0C-EngineRPM", 1726.0)
	snap := s.SnapshotJSON()
	if err := json.Unmarshal(snap, &obj); err != nil {
		t.Fatal(err)
	}
	if len(obj) != 1 {
		t.Fatalf("expected exactly one key, got %s", snap)
	}
	if _, ok := obj["0C-EngineRPM"]; !ok {
		t.Fatalf("missing expected key in %s", snap)
	}
	if _, ok := obj["CHARGING"]; ok {
		t.Fatalf("CHARGING should be absent (never set): %s", snap)
	}
}

func TestSnapshot_S1EngineRPM(t *testing.T) {
	s, _ := newTestStore()
	s.Update("0C-EngineRPM", 1726.0)

	snap := s.SnapshotJSON()
	var obj map[string]json.RawMessage
	json.Unmarshal(snap, &obj)
	if string(obj["0C-EngineRPM"]) != "1726" {
		t.Fatalf("got %s, want 1726 (integral, no trailing decimal point)", obj["0C-EngineRPM"])
	}
}

func TestSnapshot_PrecisionTrimsTrailingZeros(t *testing.T) {
	s, _ := newTestStore()
	s.Update("0C-EngineRPM", 12.5)

	snap := s.SnapshotJSON()
	var obj map[string]json.RawMessage
	json.Unmarshal(snap, &obj)
	if string(obj["0C-EngineRPM"]) != "12.5" {
		t.Fatalf("got %s, want 12.5", obj["0C-EngineRPM"])
	}
}

func TestSnapshot_PrecisionRoundsToTwoDecimals(t *testing.T) {
	s, _ := newTestStore()
	s.Update("0C-EngineRPM", 1.005)

	snap := s.SnapshotJSON()
	var obj map[string]json.RawMessage
	json.Unmarshal(snap, &obj)
	if string(obj["0C-EngineRPM"]) != "1.01" {
		t.Fatalf("got %s, want 1.01 (round-half-away-from-zero)", obj["0C-EngineRPM"])
	}
}

func TestSnapshot_BinarySensorRendersOnOff(t *testing.T) {
	s, _ := newTestStore()
	s.Update("CHARGING", 1)

	snap := s.SnapshotJSON()
	var obj map[string]json.RawMessage
	json.Unmarshal(snap, &obj)
	if string(obj["CHARGING"]) != `"on"` {
		t.Fatalf("got %s, want \"on\"", obj["CHARGING"])
	}

	s.Update("CHARGING", 0)
	snap = s.SnapshotJSON()
	json.Unmarshal(snap, &obj)
	if string(obj["CHARGING"]) != `"off"` {
		t.Fatalf("got %s, want \"off\"", obj["CHARGING"])
	}
}

func TestValueByName(t *testing.T) {
	s, _ := newTestStore()
	if _, ok := s.ValueByName("0C-EngineRPM"); ok {
		t.Fatal("expected not-found before first update")
	}

	s.Update("0C-EngineRPM", 42.0)
	data, ok := s.ValueByName("0C-EngineRPM")
	if !ok {
		t.Fatal("expected value to be found")
	}
	var obj map[string]json.RawMessage
	json.Unmarshal(data, &obj)
	if len(obj) != 1 || string(obj["0C-EngineRPM"]) != "42" {
		t.Fatalf("got %s", data)
	}
}

func TestAllFailed(t *testing.T) {
	s, _ := newTestStore()
	if s.AllFailed() {
		t.Fatal("fresh store should not report all-failed")
	}

	s.MarkFailed("0C-EngineRPM")
	if s.AllFailed() {
		t.Fatal("only one of two parameters failed")
	}

	s.MarkFailed("CHARGING")
	if !s.AllFailed() {
		t.Fatal("both parameters failed, expected AllFailed true")
	}

	s.Update("0C-EngineRPM", 10)
	if s.AllFailed() {
		t.Fatal("a successful update should clear the failed condition")
	}
}
