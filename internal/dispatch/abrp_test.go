package dispatch

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"autopid/internal/clock"
	"autopid/internal/config"
)

// TestRenameForABRP_S6 is scenario S6 from spec §8: a snapshot keyed
// by internal parameter names is renamed to ABRP's field set, "off"
// becomes 0, and a Unix-seconds utc field is stamped.
func TestRenameForABRP_S6(t *testing.T) {
	snapshot := map[string]any{
		"SOC":      62.3,
		"HV_W":     -4500.0,
		"CHARGING": "off",
	}
	now := time.Unix(1700000000, 0)

	got := RenameForABRP(snapshot, now)

	want := map[string]any{
		"soc":         62.3,
		"power":       -4500.0,
		"is_charging": 0,
		"utc":         int64(1700000000),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d: %+v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("key %q = %v, want %v", k, got[k], v)
		}
	}
}

func TestRenameForABRP_PassThroughKeys(t *testing.T) {
	snapshot := map[string]any{"lat": 52.1, "lon": 4.3, "elevation": 10.0, "UNKNOWN": 1.0}
	got := RenameForABRP(snapshot, time.Unix(0, 0))

	for _, k := range []string{"lat", "lon", "elevation"} {
		if _, ok := got[k]; !ok {
			t.Fatalf("expected pass-through key %q in output: %+v", k, got)
		}
	}
	if _, ok := got["UNKNOWN"]; ok {
		t.Fatalf("unmapped key should be dropped: %+v", got)
	}
}

func TestRenameForABRP_OnOffCoercion(t *testing.T) {
	got := RenameForABRP(map[string]any{"PARK_BRAKE": "on"}, time.Unix(0, 0))
	if got["is_parked"] != 1 {
		t.Fatalf("is_parked = %v, want 1", got["is_parked"])
	}
}

// TestABRPSink_Send_FormEncodedWithTlm exercises the full Send path
// against a stub server, checking the token/tlm form body and the
// {"status":"ok"} success check (spec §4.7 steps 2 and 5).
func TestABRPSink_Send_FormEncodedWithTlm(t *testing.T) {
	var gotForm url.Values
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	sink := &abrpSink{
		client: srv.Client(),
		token:  "XYZ",
		clock:  clock.NewFake(time.Unix(1700000000, 0)),
	}
	sink.sendURL = srv.URL

	payload, _ := json.Marshal(map[string]any{"SOC": 62.3})
	if err := sink.Send(payload); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("content-type = %q", gotContentType)
	}
	if gotForm.Get("token") != "XYZ" {
		t.Fatalf("token = %q, want XYZ", gotForm.Get("token"))
	}
	var tlm map[string]any
	if err := json.Unmarshal([]byte(gotForm.Get("tlm")), &tlm); err != nil {
		t.Fatalf("tlm not valid JSON: %v", err)
	}
	if tlm["soc"] != 62.3 {
		t.Fatalf("tlm.soc = %v, want 62.3", tlm["soc"])
	}
	if tlm["utc"] != float64(1700000000) {
		t.Fatalf("tlm.utc = %v, want 1700000000", tlm["utc"])
	}
}

func TestABRPSink_Send_RejectsNonOkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error"}`))
	}))
	defer srv.Close()

	sink := &abrpSink{client: srv.Client(), clock: clock.NewFake(time.Unix(0, 0))}
	sink.sendURL = srv.URL

	payload, _ := json.Marshal(map[string]any{"SOC": 1.0})
	if err := sink.Send(payload); err == nil {
		t.Fatal("expected error on non-ok ABRP status")
	}
}

func TestNewABRPSink_UsesTwoSecondTimeout(t *testing.T) {
	sink, err := newABRPSink(config.DestinationConfig{ABRPToken: "t"}, clock.NewReal())
	if err != nil {
		t.Fatalf("newABRPSink: %v", err)
	}
	if sink.client.Timeout != 2*time.Second {
		t.Fatalf("timeout = %v, want 2s", sink.client.Timeout)
	}
}
