// Package dispatch implements the Destination Dispatcher (C7): the
// per-destination send loop that ships the Parameter Store's snapshot
// to MQTT topics, generic HTTP/HTTPS endpoints, and A Better Route
// Planner (ABRP), each on its own cycle with exponential backoff on
// failure.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"autopid/internal/certstore"
	"autopid/internal/clock"
	"autopid/internal/config"
)

// Sink is a single destination's send operation; sinks implemented in
// this package are http.go (HTTP/HTTPS), mqtt.go, and abrp.go.
type Sink interface {
	Send(payload []byte) error
	Close() error
}

// Destination is one configured sink plus its scheduling state.
type Destination struct {
	Name    string // config key: URLOrTopic doubles as the Parameter.Destination match key
	Type    string
	CycleMs int
	Enabled bool
	sink    Sink

	nextDueAt           time.Duration
	backoffMs           int64
	consecutiveFailures int
	everSucceeded       bool
}

// NewDestinations builds the runtime Destination set from
// configuration, binding each entry's Type to a concrete Sink
// (http.go/mqtt.go/abrp.go).
func NewDestinations(cfgs []config.DestinationConfig, certs certstore.Manager, clk clock.Clock) ([]*Destination, error) {
	dests := make([]*Destination, 0, len(cfgs))
	for _, dc := range cfgs {
		sink, err := buildSink(dc, certs, clk)
		if err != nil {
			return nil, err
		}
		dests = append(dests, &Destination{
			Name:    dc.URLOrTopic,
			Type:    dc.Type,
			CycleMs: dc.CycleMs,
			Enabled: dc.Enabled,
			sink:    sink,
		})
	}
	return dests, nil
}

func buildSink(dc config.DestinationConfig, certs certstore.Manager, clk clock.Clock) (Sink, error) {
	// An http/https URL configured without a scheme gets the one its
	// destination type names.
	if (dc.Type == "http" || dc.Type == "https") && dc.URLOrTopic != "" && !strings.Contains(dc.URLOrTopic, "://") {
		dc.URLOrTopic = dc.Type + "://" + dc.URLOrTopic
	}
	switch dc.Type {
	case "mqtt_topic", "mqtt_wallbox":
		return newMQTTSink(dc)
	case "http":
		return newHTTPSink(dc, nil)
	case "https":
		tlsCfg, err := tlsConfigFor(dc, certs)
		if err != nil {
			return nil, err
		}
		return newHTTPSink(dc, tlsCfg)
	case "abrp":
		return newABRPSink(dc, clk)
	default:
		return newHTTPSink(dc, nil)
	}
}

// DestinationPublisher adapts the Destination set to
// scheduler.Publisher, so a parameter's synchronous per-parameter MQTT
// publish (spec §2) reuses the same broker connection C7 dispatches
// on, rather than opening a new one per publish.
type DestinationPublisher struct {
	byName map[string]*Destination
}

// NewDestinationPublisher indexes dests by name for Publish lookups.
func NewDestinationPublisher(dests []*Destination) *DestinationPublisher {
	byName := make(map[string]*Destination, len(dests))
	for _, d := range dests {
		byName[d.Name] = d
	}
	return &DestinationPublisher{byName: byName}
}

// Publish sends payload through the named destination's sink,
// independent of that destination's own cycle/backoff state.
func (p *DestinationPublisher) Publish(destination string, payload []byte) error {
	d, ok := p.byName[destination]
	if !ok {
		return fmt.Errorf("dispatch: unknown destination %q", destination)
	}
	return d.sink.Send(payload)
}
