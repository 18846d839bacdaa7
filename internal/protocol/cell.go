package protocol

import "sync/atomic"

// Unknown is the sentinel value held by a fresh ProtocolCell, matching
// the source firmware's "protocol not yet queried" state.
const Unknown int32 = -1

// ProtocolCell is the single-slot typed cell holding the currently
// active CAN protocol number (0..12, or Unknown). Reads never consume
// the value, and Peek and Set are both safe for concurrent use. The
// PID Scheduler writes it when the standard protocol is "auto"; the
// Frame Parser reads it.
type ProtocolCell struct {
	v atomic.Int32
}

// NewProtocolCell creates a cell initialized to Unknown.
func NewProtocolCell() *ProtocolCell {
	c := &ProtocolCell{}
	c.v.Store(Unknown)
	return c
}

// Set replaces the slot atomically.
func (c *ProtocolCell) Set(n int) {
	c.v.Store(int32(n))
}

// Peek returns the current value without consuming it.
func (c *ProtocolCell) Peek() int {
	return int(c.v.Load())
}

// Known reports whether the cell holds a value in the documented
// 0..12 protocol range.
func (c *ProtocolCell) Known() bool {
	n := c.Peek()
	return n >= 0 && n <= 12
}
