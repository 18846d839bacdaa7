// Package devstatus binds the device-status bits collaborator named
// in spec §6: whether the host device is asleep and whether autopid
// polling is enabled, both of which gate the Scheduler's main loop.
package devstatus

import (
	"context"
	"sync/atomic"
	"time"
)

// Bits is the collaborator interface named by spec §6.
type Bits interface {
	IsSleeping() bool
	IsAutopidEnabled() bool
}

// Flags is a process-local, atomically-updated implementation of
// Bits: on the reference platform these bits are read from onboard
// device state; here they are plain settable flags so the Scheduler's
// gating logic has something concrete to depend on and tests can
// flip them without a real device.
type Flags struct {
	sleeping atomic.Bool
	enabled  atomic.Bool
}

// NewFlags creates Flags with autopid enabled and the device awake.
func NewFlags() *Flags {
	f := &Flags{}
	f.enabled.Store(true)
	return f
}

func (f *Flags) IsSleeping() bool       { return f.sleeping.Load() }
func (f *Flags) IsAutopidEnabled() bool { return f.enabled.Load() }
func (f *Flags) SetSleeping(v bool)     { f.sleeping.Store(v) }
func (f *Flags) SetAutopidEnabled(v bool) { f.enabled.Store(v) }

// WaitAwake blocks until the device is awake and autopid is enabled,
// or ctx is done, polling at the given interval (spec §4.5: "wait
// until device is awake and engine is enabled").
func WaitAwake(ctx context.Context, bits Bits, poll time.Duration) error {
	if !bits.IsSleeping() && bits.IsAutopidEnabled() {
		return nil
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !bits.IsSleeping() && bits.IsAutopidEnabled() {
				return nil
			}
		}
	}
}
