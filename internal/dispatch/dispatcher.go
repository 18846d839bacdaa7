package dispatch

import (
	"log"
	"time"

	"autopid/internal/clock"
	"autopid/internal/store"
)

// TickInterval is the dispatcher's own poll cadence (spec §4.7: "~100ms
// tick loop"), independent of each destination's configured cycle.
const TickInterval = 100 * time.Millisecond

// failureThreshold is the consecutive-failure count that must be
// reached before backoff engages (spec §4.7 step 6 / Testable
// Property 4): the first two failures retry on the ordinary cycle.
const failureThreshold = 3

// StatusProvider supplies the "status" field of the first-success HTTP
// wrapper payload (spec §4.7 step 2); satisfied by *liveness.Monitor.
type StatusProvider interface {
	Connected() bool
}

// Dispatcher ships the Store's per-destination snapshot to every
// enabled Destination on its own cycle, backing off on failure.
type Dispatcher struct {
	destinations []*Destination
	store        *store.Store
	clock        clock.Clock
	status       StatusProvider
}

// New builds a Dispatcher over destinations in declaration order —
// the order failures are retried in is the order they were configured.
func New(destinations []*Destination, st *store.Store, clk clock.Clock, status StatusProvider) *Dispatcher {
	return &Dispatcher{destinations: destinations, store: st, clock: clk, status: status}
}

// Tick evaluates every destination once; destinations whose due time
// has not arrived are skipped without touching their backoff state.
func (d *Dispatcher) Tick() {
	now := d.clock.Monotonic()
	for _, dest := range d.destinations {
		if !dest.Enabled {
			continue
		}
		if now < dest.nextDueAt {
			continue
		}
		d.send(now, dest)
	}
}

func (d *Dispatcher) send(now time.Duration, dest *Destination) {
	payload := d.payloadFor(dest)

	if err := dest.sink.Send(payload); err != nil {
		dest.consecutiveFailures++
		if dest.consecutiveFailures >= failureThreshold {
			floor := int64(httpBackoffFloorMs)
			if dest.Type == "abrp" {
				floor = abrpBackoffFloorMs
			}
			dest.backoffMs = nextBackoffMs(dest.backoffMs, int64(dest.CycleMs), floor)
		}
		dest.nextDueAt = now + time.Duration(max64(dest.backoffMs, int64(dest.CycleMs)))*time.Millisecond
		log.Printf("dispatch: %s (%s) failed (%d consecutive), backing off %dms: %v", dest.Name, dest.Type, dest.consecutiveFailures, dest.backoffMs, err)
		return
	}

	dest.consecutiveFailures = 0
	dest.backoffMs = 0
	dest.everSucceeded = true
	dest.nextDueAt = now + time.Duration(dest.CycleMs)*time.Millisecond
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// payloadFor builds the payload for dest's sink type: MQTT/default get
// the raw per-destination snapshot; HTTP/HTTPS get the first-success
// wrapper shape (spec §4.7 step 2).
func (d *Dispatcher) payloadFor(dest *Destination) []byte {
	snapshot := payloadFor(d.store, dest.Name)
	if dest.Type != "http" && dest.Type != "https" {
		return snapshot
	}
	return httpWrapperPayload(d.store, d.status, dest.everSucceeded, snapshot)
}

// Run drives Tick on TickInterval until stop closes.
func (d *Dispatcher) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Close shuts down every destination's sink (MQTT disconnects cleanly).
func (d *Dispatcher) Close() {
	for _, dest := range d.destinations {
		dest.sink.Close()
	}
}
