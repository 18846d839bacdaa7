// Package config loads the declarative PID schedule and destination
// list ("AllPids") from a YAML document, the collaborator named in
// spec §6 ("configuration loader provides an AllPids structure").
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AuthConfig describes how a destination authenticates.
type AuthConfig struct {
	Type    string `yaml:"type"` // none, bearer, api_key_header, api_key_query, basic
	Token   string `yaml:"token"`
	KeyName string `yaml:"key_name"`
	Key     string `yaml:"key"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
}

// DestinationConfig is the canonical per-sink record (spec §3).
type DestinationConfig struct {
	Type       string            `yaml:"type"` // mqtt_topic, mqtt_wallbox, http, https, abrp
	URLOrTopic string            `yaml:"url_or_topic"`
	BrokerURL  string            `yaml:"broker_url"` // mqtt_topic/mqtt_wallbox only
	CycleMs    int               `yaml:"cycle_ms"`
	Enabled    bool              `yaml:"enabled"`
	Auth       AuthConfig        `yaml:"auth"`
	ExtraQuery map[string]string `yaml:"extra_query"`
	CertSet    string            `yaml:"cert_set"` // named set, "default", or empty (= default)
	ABRPToken  string            `yaml:"abrp_token"`
}

// legacyDestination is the pre-multi-destination config shape the
// original firmware also accepted; Load folds it into Destinations.
type legacyDestination struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	CycleMs int    `yaml:"cycle_ms"`
	Token   string `yaml:"token"`
}

// ParameterConfig is one Parameter (spec §3) as it appears in YAML.
type ParameterConfig struct {
	Name            string   `yaml:"name"`
	Kind            string   `yaml:"kind"`        // standard, custom, vehicle
	SensorType      string   `yaml:"sensor_type"` // numeric, binary
	Unit            string   `yaml:"unit"`
	Class           string   `yaml:"class"`
	PeriodMs        int      `yaml:"period_ms"`
	Min             *float64 `yaml:"min"`
	Max             *float64 `yaml:"max"`
	Expression      string   `yaml:"expression"`
	Destination     string   `yaml:"destination"`
	DestinationType string   `yaml:"destination_type"`

	// Standard-PID bitfield override; when nil the built-in table entry
	// keyed by Name is used instead (see internal/protocol.StandardPIDs).
	BitStart  *int     `yaml:"bit_start"`
	BitLength *int     `yaml:"bit_length"`
	Scale     *float64 `yaml:"scale"`
	Offset    *float64 `yaml:"offset"`
}

// EntryConfig is one PID entry (spec §3): a group of parameters
// sharing a single command.
type EntryConfig struct {
	Cmd        string            `yaml:"cmd"`
	PIDInit    string            `yaml:"pid_init"`
	RXHeader   string            `yaml:"rxheader"`
	PIDClass   string            `yaml:"pid_class"` // standard, custom, vehicle
	Parameters []ParameterConfig `yaml:"parameters"`
}

// GlobalConfig holds the top-level switches (spec §3).
type GlobalConfig struct {
	GroupingEnabled   bool     `yaml:"grouping_enabled"`
	GroupDestinations []string `yaml:"group_destinations"`
	StandardProtocol  string   `yaml:"standard_protocol"` // "auto" or "0".."12"
	StandardEnabled   bool     `yaml:"standard_enabled"`
	CustomEnabled     bool     `yaml:"custom_enabled"`
	VehicleEnabled    bool     `yaml:"vehicle_enabled"`
	CustomInit        string   `yaml:"custom_init"`
	VehicleInit       string   `yaml:"vehicle_init"`
}

// TransportConfig selects the physical link to the adapter.
type TransportConfig struct {
	Type     string `yaml:"type"` // serial or tcp
	Address  string `yaml:"address"`
	BaudRate int    `yaml:"baud_rate"`
}

// raw mirrors the on-disk YAML shape, including the legacy single
// destination fields that get folded into Destinations at load time.
type raw struct {
	Global            GlobalConfig        `yaml:"global"`
	Entries           []EntryConfig       `yaml:"pids"`
	Destinations      []DestinationConfig `yaml:"destinations"`
	LegacyDestination *legacyDestination  `yaml:"destination"`
	Transport         TransportConfig     `yaml:"transport"`
	CertDir           string              `yaml:"cert_dir"`
}

// AllPids is the canonical, load-time-resolved configuration tree:
// exactly one destination representation, per spec §9.
type AllPids struct {
	Global       GlobalConfig
	Entries      []EntryConfig
	Destinations []DestinationConfig
	Transport    TransportConfig
	CertDir      string
}

// Load reads filename, folds the legacy single-destination shape into
// Destinations, and rewrites the custom-class init string once, at
// load time, rather than during scheduling (spec §9).
func Load(filename string) (*AllPids, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var r raw
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	dests := r.Destinations
	if r.LegacyDestination != nil {
		dests = append(dests, DestinationConfig{
			Type:       r.LegacyDestination.Type,
			URLOrTopic: r.LegacyDestination.URL,
			CycleMs:    r.LegacyDestination.CycleMs,
			Enabled:    r.LegacyDestination.Enabled,
			ABRPToken:  r.LegacyDestination.Token,
		})
	}

	r.Global.CustomInit = NormalizeInitString(r.Global.CustomInit)

	return &AllPids{
		Global:       r.Global,
		Entries:      r.Entries,
		Destinations: dests,
		Transport:    r.Transport,
		CertDir:      r.CertDir,
	}, nil
}

// NormalizeInitString applies the source firmware's ad-hoc rewriting
// (";" -> "\r", "ATSP" -> "ATTP") once, at config-load time, per spec
// §9's redesign note. "ATSP" is matched case-insensitively; everything
// else, including any ATH0/ATS0/ATE1 sub-strings a user supplies,
// passes through unmodified (see DESIGN.md Open Questions).
func NormalizeInitString(s string) string {
	s = strings.ReplaceAll(s, ";", "\r")
	return replaceFold(s, "ATSP", "ATTP")
}

func replaceFold(s, old, newStr string) string {
	upper := strings.ToUpper(s)
	oldUpper := strings.ToUpper(old)
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(upper[i:], oldUpper)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i : i+idx])
		b.WriteString(newStr)
		i += idx + len(old)
	}
	return b.String()
}
