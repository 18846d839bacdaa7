package dispatch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autopid/internal/clock"
	"autopid/internal/config"
)

const abrpTelemetryURL = "https://api.iternio.com/1/tlm/send"

// abrpFieldRenames is the fixed ABRP telemetry field-rename table
// (spec §4.7): source key -> target key.
var abrpFieldRenames = map[string]string{
	"SOC":              "soc",
	"HV_W":             "power",
	"SPEED":            "speed",
	"CHARGING":         "is_charging",
	"CHARGING_DC":      "is_dcfc",
	"PARK_BRAKE":       "is_parked",
	"HV_CAPACITY_KWH":  "capacity",
	"HV_CAPACITY_R":    "soe",
	"SOH":              "soh",
	"TMP_A":            "ext_temp",
	"BATT_TEMP":        "batt_temp",
	"HV_V":             "voltage",
	"HV_A":             "current",
	"ODOMETER":         "odometer",
	"RANGE":            "est_battery_range",
	"T_CAB":            "cabin_temp",
	"TYRE_P_FL":        "tire_pressure_fl",
	"TYRE_P_FR":        "tire_pressure_fr",
	"TYRE_P_RL":        "tire_pressure_rl",
	"TYRE_P_RR":        "tire_pressure_rr",
}

// abrpPassThroughKeys are carried into the ABRP payload unrenamed.
var abrpPassThroughKeys = map[string]bool{
	"lat":       true,
	"lon":       true,
	"elevation": true,
}

// abrpResponse is the minimal shape of an ABRP success reply.
type abrpResponse struct {
	Status string `json:"status"`
}

type abrpSink struct {
	client     *http.Client
	sendURL    string // abrpTelemetryURL in production; overridden by tests
	token      string
	extraQuery map[string]string
	clock      clock.Clock
}

func newABRPSink(dc config.DestinationConfig, clk clock.Clock) (*abrpSink, error) {
	return &abrpSink{
		client:     &http.Client{Timeout: 2 * time.Second},
		sendURL:    abrpTelemetryURL,
		token:      dc.ABRPToken,
		extraQuery: dc.ExtraQuery,
		clock:      clk,
	}, nil
}

// RenameForABRP rewrites a parsed snapshot's keys per
// abrpFieldRenames, passes lat/lon/elevation through unrenamed, drops
// any other key, coerces each surviving value to a number where
// possible ("on"/"off" and JSON bool become 1/0), and stamps a
// Unix-seconds utc field, per spec §4.7's ABRP payload shaping.
func RenameForABRP(snapshot map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(snapshot)+1)
	for k, v := range snapshot {
		if renamed, ok := abrpFieldRenames[k]; ok {
			out[renamed] = coerceNumeric(v)
		} else if abrpPassThroughKeys[k] {
			out[k] = coerceNumeric(v)
		}
	}
	out["utc"] = now.Unix()
	return out
}

func coerceNumeric(v any) any {
	switch t := v.(type) {
	case string:
		switch t {
		case "on":
			return 1
		case "off":
			return 0
		}
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return v
	}
}

func (s *abrpSink) Send(payload []byte) error {
	var snapshot map[string]any
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("dispatch: abrp payload: %w", err)
	}
	now := time.Now()
	if s.clock != nil {
		now = s.clock.Now()
	}
	renamed := RenameForABRP(snapshot, now)
	tlmJSON, err := json.Marshal(renamed)
	if err != nil {
		return fmt.Errorf("dispatch: abrp encode: %w", err)
	}

	u, err := url.Parse(s.sendURL)
	if err != nil {
		return fmt.Errorf("dispatch: abrp url: %w", err)
	}
	applyExtraQuery(u, s.extraQuery)

	form := url.Values{}
	form.Set("token", s.token)
	form.Set("tlm", string(tlmJSON))

	req, err := http.NewRequest(http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("dispatch: abrp build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: abrp send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("dispatch: abrp read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch: abrp returned status %d", resp.StatusCode)
	}
	var parsed abrpResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Status != "ok" {
		return fmt.Errorf("dispatch: abrp rejected payload: %s", body)
	}
	return nil
}

func (s *abrpSink) Close() error { return nil }
