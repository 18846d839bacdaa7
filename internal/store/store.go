// Package store implements the Parameter Store (C4) and Snapshot
// Builder (C6): the set of parameter definitions and their last
// values, protected by a mutex, and the pure JSON projection of that
// state.
package store

import (
	"math"
	"sync"
	"time"

	"autopid/internal/protocol"
)

// Kind is a parameter's PID class.
type Kind int

const (
	KindStandard Kind = iota
	KindCustom
	KindVehicleSpecific
)

// SensorType distinguishes numeric parameters from binary ones, which
// render as "on"/"off" in the snapshot.
type SensorType int

const (
	SensorNumeric SensorType = iota
	SensorBinary
)

// NeverSet is the sentinel LastValue of a parameter that has not yet
// been successfully decoded, per spec §3.
var NeverSet = math.Inf(-1)

// Parameter is a named physical quantity exposed to sinks (spec §3).
type Parameter struct {
	Name            string
	Kind            Kind
	SensorType      SensorType
	Unit            string
	Class           string
	PeriodMs        int
	Min, Max        float64
	Expression      string
	Destination     string
	DestinationType string
	StandardLayout  *protocol.FieldLayout

	// Mutable state, touched only while the owning Store's mutex is
	// held.
	LastValue float64
	Failed    bool
	NextDueAt time.Duration
}

// PIDEntry groups parameters sharing the same transport command (spec
// §3).
type PIDEntry struct {
	Cmd        string
	PIDInit    string
	RXHeader   string
	Class      Kind
	Parameters []*Parameter
}

// Store owns the PID entries (and the parameters nested within them)
// for the lifetime of the process. A single mutex guards both the
// PID-entry/parameter structure the Scheduler walks and the mutable
// last-value/failed/next-due-at fields it writes — spec §4.5's
// pseudocode acquires and releases exactly one "parameter-store
// mutex" across a pass, and spec §5's "config mutex" names the same
// lock from the Scheduler's point of view (see DESIGN.md).
type Store struct {
	mu      sync.Mutex
	entries []*PIDEntry
	byName  map[string]*Parameter
	order   []string

	configJSON []byte // built once, lazily, by ConfigJSON
}

// New builds a Store from entries, which must already be in
// declaration order. Parameter names must be unique across entries.
func New(entries []*PIDEntry) *Store {
	s := &Store{
		entries: entries,
		byName:  make(map[string]*Parameter),
	}
	for _, e := range entries {
		for _, p := range e.Parameters {
			p.LastValue = NeverSet
			s.byName[p.Name] = p
			s.order = append(s.order, p.Name)
		}
	}
	return s
}

// Lock acquires the Store's mutex for a full Scheduler pass. Callers
// that hold the lock may read/mutate Parameter fields obtained via
// Entries directly.
func (s *Store) Lock() { s.mu.Lock() }

// Unlock releases the Store's mutex.
func (s *Store) Unlock() { s.mu.Unlock() }

// Entries returns the PID entries in declaration order. Safe to call
// only while holding the Store's lock (via Lock) if the caller intends
// to mutate parameter state; a snapshot read under Store's own
// internal locking should use SnapshotJSON/ValueByName instead.
func (s *Store) Entries() []*PIDEntry {
	return s.entries
}

// ByName returns the parameter with the given name, assuming the
// caller already holds the Store's lock.
func (s *Store) ByName(name string) (*Parameter, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Update sets a parameter's last value and clears its failed flag,
// taking the Store's lock itself. Intended for callers outside an
// already-locked Scheduler pass (e.g. tests).
func (s *Store) Update(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byName[name]; ok {
		p.LastValue = value
		p.Failed = false
	}
}

// MarkFailed sets a parameter's failed flag, taking the Store's lock
// itself.
func (s *Store) MarkFailed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byName[name]; ok {
		p.Failed = true
	}
}

// AllFailed reports whether every known parameter's failed flag is
// set (spec §4.4 / used by C8 ECU Liveness). Vacuously true for an
// empty store, matching the source's all_parameters_failed.
func (s *Store) AllFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byName {
		if !p.Failed {
			return false
		}
	}
	return true
}
