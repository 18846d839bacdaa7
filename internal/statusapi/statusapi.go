// Package statusapi implements the Status API (C10): an HTTP surface
// over the Parameter Store's snapshot, config summary, and a
// websocket that broadcasts the snapshot after every scheduler pass,
// following the same upgrader/clients-map pattern the original
// telemetry server used for its own websocket broadcast.
package statusapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autopid/internal/config"
	"autopid/internal/liveness"
	"autopid/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes /snapshot, /value/{name}, /status, /config, /metrics
// and /ws over the live Store.
type Server struct {
	store   *store.Store
	monitor *liveness.Monitor
	version string
	cfg     *config.AllPids

	clientsMux sync.Mutex
	clients    map[*websocket.Conn]bool

	connectedGauge prometheus.Gauge
}

// New builds a Server. version is reported verbatim on /status; cfg is
// echoed (global switches and destination list only, never secrets)
// on /config.
func New(st *store.Store, monitor *liveness.Monitor, version string, cfg *config.AllPids) *Server {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopid_ecu_connected",
		Help: "1 if the ECU liveness monitor currently considers the adapter connected, else 0.",
	})
	if err := prometheus.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			gauge = are.ExistingCollector.(prometheus.Gauge)
		}
	}

	return &Server{
		store:          st,
		monitor:        monitor,
		version:        version,
		cfg:            cfg,
		clients:        make(map[*websocket.Conn]bool),
		connectedGauge: gauge,
	}
}

// Router builds the gorilla/mux router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/value/{name}", s.handleValue).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/ws", s.handleWS)
	return r
}

// configView is the subset of AllPids safe to expose over the Status
// API: destination auth secrets (tokens, keys, passwords) are never
// echoed back.
type configView struct {
	Global            config.GlobalConfig `json:"global"`
	DestinationCount  int                 `json:"destination_count"`
	DestinationTypes  []string            `json:"destination_types"`
	PIDEntryCount     int                 `json:"pid_entry_count"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var view configView
	if s.cfg != nil {
		view.Global = s.cfg.Global
		view.PIDEntryCount = len(s.cfg.Entries)
		view.DestinationCount = len(s.cfg.Destinations)
		for _, d := range s.cfg.Destinations {
			view.DestinationTypes = append(view.DestinationTypes, d.Type)
		}
	}
	data, _ := json.Marshal(view)
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.store.SnapshotJSON())
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	data, ok := s.store.ValueByName(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.connectedGauge.Set(boolToFloat(s.monitor.Connected()))
	body := map[string]any{
		"version":   s.version,
		"connected": s.monitor.Connected(),
	}
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("statusapi: websocket upgrade error: %v", err)
		return
	}

	s.clientsMux.Lock()
	s.clients[ws] = true
	s.clientsMux.Unlock()

	defer func() {
		s.clientsMux.Lock()
		delete(s.clients, ws)
		s.clientsMux.Unlock()
		ws.Close()
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

// BroadcastSnapshot sends the current snapshot to every connected
// websocket client, dropping clients whose write fails.
func (s *Server) BroadcastSnapshot() {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	payload := s.store.SnapshotJSON()
	for client := range s.clients {
		if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("statusapi: websocket write error: %v", err)
			client.Close()
			delete(s.clients, client)
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
