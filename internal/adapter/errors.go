package adapter

import (
	"errors"
	"strings"
)

// ErrTimeout is surfaced when no prompt byte arrives before a
// transaction's timeout elapses (spec §7 AdapterTimeout).
var ErrTimeout = errors.New("no response before timeout")

// NegativeReplies are adapter text responses that indicate the ECU
// could not answer; the scheduler treats any of these as
// AdapterNegativeResponse and marks the parameter failed.
var NegativeReplies = []string{"ERROR", "SEARCHING", "UNABLE TO CONNECT", "NO DATA"}

// IsNegativeReply reports whether reply contains one of the adapter's
// negative-response markers.
func IsNegativeReply(reply string) bool {
	upper := strings.ToUpper(reply)
	for _, marker := range NegativeReplies {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
