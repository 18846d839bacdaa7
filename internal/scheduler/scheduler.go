// Package scheduler implements the PID Scheduler (C5): the loop that
// walks the Parameter Store in declaration order, issues adapter
// transactions for due parameters, and writes decoded values back.
package scheduler

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"autopid/internal/adapter"
	"autopid/internal/clock"
	"autopid/internal/evaluator"
	"autopid/internal/protocol"
	"autopid/internal/store"
)

// Publisher is the synchronous per-parameter MQTT publish collaborator
// (spec §2's control flow), distinct from C7's periodic per-destination
// dispatch. Satisfied by a lookup over the Destination Dispatcher's
// already-connected MQTT sinks.
type Publisher interface {
	Publish(destination string, payload []byte) error
}

// Config holds the Scheduler's external knobs (spec §3/§4.5).
type Config struct {
	StandardProtocol string // "auto" or a protocol digit "0".."12"
	CustomInit       string // already normalized at config-load time
	VehicleInit      string
	AdapterTimeout   time.Duration // 12s per spec §4.5
	Publisher        Publisher     // optional; nil disables per-parameter MQTT publish
}

// Scheduler drives one Driver against one Store on a ~100ms cadence.
type Scheduler struct {
	adapter   *adapter.Driver
	store     *store.Store
	eval      evaluator.Evaluator
	protoCell *protocol.ProtocolCell
	clock     clock.Clock
	cfg       Config
	publisher Publisher

	hasLastClass bool
	lastClass    store.Kind
}

// New builds a Scheduler. cfg.AdapterTimeout defaults to 12s if zero.
func New(a *adapter.Driver, st *store.Store, ev evaluator.Evaluator, cell *protocol.ProtocolCell, clk clock.Clock, cfg Config) *Scheduler {
	if cfg.AdapterTimeout == 0 {
		cfg.AdapterTimeout = 12 * time.Second
	}
	return &Scheduler{
		adapter:   a,
		store:     st,
		eval:      ev,
		protoCell: cell,
		clock:     clk,
		cfg:       cfg,
		publisher: cfg.Publisher,
	}
}

// RunPass walks every PID entry once, servicing parameters whose
// NextDueAt has arrived, per spec §4.5's pseudocode. It holds the
// Store's lock for the full pass.
func (s *Scheduler) RunPass() {
	s.store.Lock()
	defer s.store.Unlock()

	now := s.clock.Monotonic()
	for _, entry := range s.store.Entries() {
		for _, p := range entry.Parameters {
			if now < p.NextDueAt {
				continue
			}
			s.serviceParameter(now, entry, p)
		}
	}
}

func (s *Scheduler) serviceParameter(now time.Duration, entry *store.PIDEntry, p *store.Parameter) {
	if !s.hasLastClass || s.lastClass != entry.Class {
		s.sendClassInit(entry)
		s.lastClass = entry.Class
		s.hasLastClass = true
	}

	p.NextDueAt = now + time.Duration(p.PeriodMs)*time.Millisecond

	if entry.PIDInit != "" {
		s.adapter.Send(entry.PIDInit, s.cfg.AdapterTimeout, nil)
	}

	reply, err := s.adapter.Send(entry.Cmd, s.cfg.AdapterTimeout, nil)
	if err != nil {
		// AdapterWriteFailed / AdapterTimeout: spec §7 marks the
		// parameter failed.
		p.Failed = true
		return
	}
	if adapter.IsNegativeReply(reply) {
		p.Failed = true
		return
	}

	resp := protocol.ParseFrames(reply, s.protoCell)

	switch entry.Class {
	case store.KindStandard:
		s.decodeStandard(entry, p, resp)
	default:
		s.decodeExpression(p, resp)
	}
}

func (s *Scheduler) decodeStandard(entry *store.PIDEntry, p *store.Parameter, resp protocol.Response) {
	pid, ok := pidByteFromCmd(entry.Cmd)
	if !ok || p.StandardLayout == nil {
		return // ParseShort: not updated, not failed
	}
	bytes := resp.Bytes
	if len(resp.PriorityBytes) > 0 {
		bytes = resp.PriorityBytes
	}
	norm, ok := protocol.NormalizeStandardResponse(bytes, pid)
	if !ok {
		return // ParseShort
	}
	val, ok := protocol.Decode(norm, *p.StandardLayout)
	if !ok {
		return // ParseShort
	}
	p.LastValue = val
	p.Failed = false
	s.publishParameter(p)
}

func (s *Scheduler) decodeExpression(p *store.Parameter, resp protocol.Response) {
	val, ok := s.eval.Evaluate(p.Expression, resp.Bytes, 0)
	if !ok {
		return // ExpressionFailed: not updated, not flagged failed
	}
	if val < p.Min || val > p.Max {
		return // ValueOutOfRange: not updated, not flagged failed
	}
	p.LastValue = val
	p.Failed = false
	s.publishParameter(p)
}

// publishParameter invokes the per-parameter MQTT publish named in
// spec §2's control flow ("invokes per-parameter MQTT publication if
// the parameter has its own destination"), synchronously and
// independently of C7's periodic per-destination dispatch, mirroring
// the source's publish_parameter_mqtt.
func (s *Scheduler) publishParameter(p *store.Parameter) {
	if s.publisher == nil || p.Destination == "" {
		return
	}
	var payload []byte
	switch p.DestinationType {
	case "mqtt_topic":
		payload = mqttTopicPayload(p)
	case "mqtt_wallbox":
		payload = []byte(strconv.FormatFloat(p.LastValue, 'f', 2, 64))
	default:
		return
	}
	if err := s.publisher.Publish(p.Destination, payload); err != nil {
		log.Printf("scheduler: publish %s to %s failed: %v", p.Name, p.Destination, err)
	}
}

func mqttTopicPayload(p *store.Parameter) []byte {
	var value any
	if p.SensorType == store.SensorBinary {
		if p.LastValue > 0 {
			value = "on"
		} else {
			value = "off"
		}
	} else {
		value = p.LastValue
	}
	data, _ := json.Marshal(map[string]any{p.Name: value})
	return data
}

// sendClassInit builds and sends the init sequence for entry's class,
// skipped entirely when the class did not change since the previous
// serviced parameter (Testable Property 3: never sent twice in a row
// for the same class).
func (s *Scheduler) sendClassInit(entry *store.PIDEntry) {
	var initStr string
	switch entry.Class {
	case store.KindStandard:
		if s.cfg.StandardProtocol == "auto" {
			// Ask the adapter which protocol it is using (ATDPN answers
			// e.g. "A6" in automatic mode, or "6") and cache the number
			// in the Protocol-Number Cell before the init is rebuilt.
			if reply, err := s.adapter.Send("ATDPN", s.cfg.AdapterTimeout, nil); err == nil {
				digits := strings.ToUpper(strings.TrimSpace(reply))
				if len(digits) == 2 && digits[0] == 'A' {
					digits = digits[1:]
				}
				if n, err := strconv.ParseInt(digits, 16, 32); err == nil && n >= 0 && n <= 12 {
					s.protoCell.Set(int(n))
				}
			}
		}
		known := s.protoCell.Known()
		current := s.protoCell.Peek()
		digit := protocolDigitFor(s.cfg.StandardProtocol, known, current)
		protocolNum, err := strconv.Atoi(digit)
		if err != nil {
			protocolNum = -1
		}
		initStr = buildStandardInit(digit, protocolNum, entry.RXHeader)
	case store.KindCustom:
		initStr = s.cfg.CustomInit
	case store.KindVehicleSpecific:
		initStr = s.cfg.VehicleInit
	}
	if initStr == "" {
		return
	}
	for _, cmd := range strings.Split(strings.TrimRight(initStr, "\r"), "\r") {
		if cmd == "" {
			continue
		}
		// SendInit, not Send: explicit init strings are allowed to
		// contain ATH0/ATS0/ATE1 even while the hot path forbids them.
		s.adapter.SendInit(cmd, s.cfg.AdapterTimeout, nil)
	}
}

// pidByteFromCmd extracts the requested PID from a standard-mode
// command string such as "010C\r".
func pidByteFromCmd(cmd string) (byte, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(cmd, "\r"))
	if len(trimmed) < 4 {
		return 0, false
	}
	n, err := strconv.ParseUint(trimmed[len(trimmed)-2:], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(n), true
}
