package statusapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"autopid/internal/config"
	"autopid/internal/liveness"
	"autopid/internal/store"
)

type alwaysConnected struct{}

func (alwaysConnected) AllFailed() bool { return false }

func newTestServer() *Server {
	st := store.New([]*store.PIDEntry{{
		Cmd:   "010C",
		Class: store.KindStandard,
		Parameters: []*store.Parameter{
			{Name: "0C-EngineRPM", Kind: store.KindStandard, SensorType: store.SensorNumeric},
		},
	}})
	st.Update("0C-EngineRPM", 1726)
	mon := liveness.New(alwaysConnected{})
	return New(st, mon, "test", &config.AllPids{})
}

func TestServer_Snapshot(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != `{"0C-EngineRPM":1726}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestServer_ValueByName(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/value/0C-EngineRPM", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestServer_ValueByName_NotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/value/NOPE", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestServer_Status(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
