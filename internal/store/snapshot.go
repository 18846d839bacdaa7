package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SnapshotJSON builds the current JSON document from the Store: the
// union of parameters whose LastValue is not the sentinel, per spec
// §4.4/§4.6. Binary-sensor parameters render as "on"/"off"; numeric
// values are normalized to at most two fractional digits with
// trailing zeros trimmed.
func (s *Store) SnapshotJSON() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := make(map[string]json.RawMessage, len(s.order))
	for _, name := range s.order {
		p := s.byName[name]
		if p.LastValue == NeverSet {
			continue
		}
		obj[name] = renderValue(p)
	}
	data, _ := json.Marshal(obj)
	return data
}

// SnapshotForDestination builds the same JSON document as
// SnapshotJSON, restricted to parameters whose Destination matches
// name — the per-sink view the Destination Dispatcher (C7) sends on
// each destination's own cycle.
func (s *Store) SnapshotForDestination(name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := make(map[string]json.RawMessage)
	for _, pname := range s.order {
		p := s.byName[pname]
		if p.Destination != name || p.LastValue == NeverSet {
			continue
		}
		obj[pname] = renderValue(p)
	}
	data, _ := json.Marshal(obj)
	return data
}

// ConfigJSON returns {name: {class, unit}} for every parameter, per
// spec §6's get_config_json(): built once and cached, since the
// parameter set never changes after the Store is constructed.
func (s *Store) ConfigJSON() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configJSON == nil {
		type entry struct {
			Class string `json:"class"`
			Unit  string `json:"unit"`
		}
		obj := make(map[string]entry, len(s.order))
		for _, name := range s.order {
			p := s.byName[name]
			obj[name] = entry{Class: p.Class, Unit: p.Unit}
		}
		s.configJSON, _ = json.Marshal(obj)
	}
	return s.configJSON
}

// ValueByName returns {name: value} JSON for a single parameter, or
// (nil, false) if the parameter is unknown or has never been set.
func (s *Store) ValueByName(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byName[name]
	if !ok || p.LastValue == NeverSet {
		return nil, false
	}
	data, _ := json.Marshal(map[string]json.RawMessage{name: renderValue(p)})
	return data, true
}

func renderValue(p *Parameter) json.RawMessage {
	if p.SensorType == SensorBinary {
		if p.LastValue > 0 {
			return json.RawMessage(`"on"`)
		}
		return json.RawMessage(`"off"`)
	}
	return json.RawMessage(formatNumber(p.LastValue))
}

// formatNumber implements spec §4.4's precision normalization: round
// half-away-from-zero to 2 decimals, trim trailing zeros, and drop the
// decimal point entirely for integral results.
func formatNumber(v float64) string {
	rounded := roundHalfAwayFromZero(v, 2)
	s := strconv.FormatFloat(rounded, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" || s == "-0" {
		return "0"
	}
	return s
}

func roundHalfAwayFromZero(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	// Scale through v's shortest decimal form so a value such as 1.005
	// rounds as written rather than as its binary neighbour 1.00499...
	scaled, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', -1, 64)+"e"+strconv.Itoa(decimals), 64)
	if err != nil {
		scaled = v * mult
	}
	return math.Round(scaled) / mult
}

// NormalizeJSONPrecision walks a parsed JSON tree (as produced by
// encoding/json.Unmarshal into map[string]any/[]any) and reformats
// every numeric leaf per the same rule SnapshotJSON applies inline.
// It is a standalone helper for documents reshaped after SnapshotJSON
// has produced them; the Destination Dispatcher's ABRP renaming and
// HTTP wrapper do not call it.
func NormalizeJSONPrecision(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = NormalizeJSONPrecision(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = NormalizeJSONPrecision(child)
		}
		return t
	case float64:
		s := formatNumber(t)
		f, _ := strconv.ParseFloat(s, 64)
		return f
	default:
		return v
	}
}
