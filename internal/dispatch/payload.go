package dispatch

import (
	"encoding/json"

	"autopid/internal/store"
)

// payloadFor returns the JSON body a destination should send this
// cycle: a destination sees only the parameters assigned to it
// (Parameter.Destination), already precision-normalized by the
// Snapshot Builder.
func payloadFor(st *store.Store, destinationName string) []byte {
	return st.SnapshotForDestination(destinationName)
}

// httpWrapperWithConfig is the shape sent on an HTTP/HTTPS
// destination's very first successful post.
type httpWrapperWithConfig struct {
	Config      json.RawMessage `json:"config"`
	Status      bool            `json:"status"`
	AutopidData json.RawMessage `json:"autopid_data"`
}

// httpWrapper is the steady-state shape sent on every post after the
// first success.
type httpWrapper struct {
	AutopidData json.RawMessage `json:"autopid_data"`
}

// httpWrapperPayload implements spec §4.7 step 2's HTTP/HTTPS payload
// shaping: "on the first successful post ever, include a wrapper
// {config, status, autopid_data}; after that, {autopid_data: <snapshot>}".
func httpWrapperPayload(st *store.Store, status StatusProvider, everSucceeded bool, snapshot []byte) []byte {
	if everSucceeded {
		data, _ := json.Marshal(httpWrapper{AutopidData: snapshot})
		return data
	}
	connected := false
	if status != nil {
		connected = status.Connected()
	}
	data, _ := json.Marshal(httpWrapperWithConfig{
		Config:      st.ConfigJSON(),
		Status:      connected,
		AutopidData: snapshot,
	})
	return data
}
