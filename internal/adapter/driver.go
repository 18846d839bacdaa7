// Package adapter implements the Adapter Driver (C1): a single
// operation that writes an AT/OBD command string to an ELM327-style
// serial adapter and accumulates the reply until the prompt byte.
package adapter

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Port is the minimal transport the driver needs. *serial.Port
// (github.com/tarm/serial) satisfies this, as does the TCP/Unix
// simulator transport used in tests.
type Port interface {
	io.Reader
	io.Writer
}

// promptByte is the ELM327 '>' prompt that signals end-of-reply.
const promptByte = '>'

// forbiddenHotPath lists AT commands that would silently break the
// Frame Parser's invariants (echo/spacing/header mode) if sent from
// the scheduling hot path. Case-insensitive match disables the write;
// these remain reachable from user-supplied class-init strings, which
// are config, not hot-path traffic.
var forbiddenHotPath = []string{"ATH0", "ATS0", "ATE1"}

// ErrForbiddenCommand is returned when a hot-path caller attempts to
// send a command containing a forbidden sub-string.
type ErrForbiddenCommand struct {
	Cmd string
}

func (e *ErrForbiddenCommand) Error() string {
	return fmt.Sprintf("adapter: command %q is forbidden on the hot path", e.Cmd)
}

// ResponseFunc is invoked once per incoming chunk while a command is
// in flight. chunk is the bytes of that read; cmdEcho is the command
// that is in flight, useful for logging.
type ResponseFunc func(chunk []byte, cmdEcho string)

// Driver serializes AT/OBD command strings to a single ELM327-style
// adapter and accumulates replies until the '>' prompt.
type Driver struct {
	port Port

	mu           sync.Mutex
	lastCmdTime  time.Time
	scratch      []byte // reused accumulator buffer, never shrunk
	hotPath      bool   // true while driving the scheduler's poll loop
}

// New creates a Driver over port with a scratch buffer of at least
// 4096 bytes, matching the PSRAM-backed buffer on the reference
// platform (see SPEC_FULL.md §9): allocate once, reuse on every
// transaction instead of allocating per command.
func New(port Port) *Driver {
	return &Driver{
		port:    port,
		scratch: make([]byte, 0, 4096),
	}
}

// SetHotPath toggles whether forbidden commands should be rejected.
// main calls SetHotPath(true) before the scheduler's poll loop begins;
// one-shot config/test paths leave it false.
func (d *Driver) SetHotPath(hot bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hotPath = hot
}

// SendInit writes cmd like Send, but bypasses the hot-path forbidden
// check: the source allows ATH0/ATS0/ATE1 through explicit init
// strings even while the hot scheduling path forbids them (spec §9
// Open Questions). Safe only because the Driver is single-writer.
func (d *Driver) SendInit(cmd string, timeout time.Duration, respCb ResponseFunc) (string, error) {
	d.mu.Lock()
	wasHot := d.hotPath
	d.hotPath = false
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.hotPath = wasHot
		d.mu.Unlock()
	}()

	return d.Send(cmd, timeout, respCb)
}

// Send writes cmd (terminated with \r) to the adapter and accumulates
// every byte received until the prompt byte appears or timeout
// elapses. respCb, if non-nil, is invoked once per chunk read from the
// port. Send returns the full accumulated reply (prompt stripped).
func (d *Driver) Send(cmd string, timeout time.Duration, respCb ResponseFunc) (string, error) {
	d.mu.Lock()
	if d.hotPath {
		upper := strings.ToUpper(cmd)
		for _, forbidden := range forbiddenHotPath {
			if strings.Contains(upper, forbidden) {
				d.mu.Unlock()
				return "", &ErrForbiddenCommand{Cmd: cmd}
			}
		}
	}
	d.lastCmdTime = time.Now()
	d.scratch = d.scratch[:0]
	d.mu.Unlock()

	if _, err := d.port.Write([]byte(cmd + "\r")); err != nil {
		return "", fmt.Errorf("adapter: write failed: %w", err)
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 512)

	// Each underlying Read is expected to return within the port's own
	// configured read timeout (serial.Config.ReadTimeout for the
	// production tarm/serial.Port), returning n==0 rather than
	// blocking forever; the loop below re-checks the transaction
	// deadline on every such wakeup.
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("adapter: %w", ErrTimeout)
		}

		n, err := d.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("adapter: read failed: %w", err)
		}
		if n == 0 {
			continue
		}

		chunk := buf[:n]
		if respCb != nil {
			respCb(chunk, cmd)
		}

		d.mu.Lock()
		d.scratch = append(d.scratch, chunk...)
		complete := bytes.IndexByte(d.scratch, promptByte) >= 0
		var out []byte
		if complete {
			idx := bytes.IndexByte(d.scratch, promptByte)
			out = make([]byte, idx)
			copy(out, d.scratch[:idx])
		}
		d.mu.Unlock()

		if complete {
			return string(out), nil
		}
	}
}

// LastCmdTime returns the time the most recent command was issued.
// Send records it but does not itself throttle back-to-back commands.
func (d *Driver) LastCmdTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCmdTime
}
