package dispatch

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"autopid/internal/config"
)

// httpSink POSTs the JSON snapshot payload to a generic HTTP/HTTPS
// endpoint (spec §3 destination types "http"/"https").
type httpSink struct {
	client     *http.Client
	url        string
	auth       config.AuthConfig
	extraQuery map[string]string
}

func newHTTPSink(dc config.DestinationConfig, tlsCfg *tls.Config) (*httpSink, error) {
	transport := &http.Transport{}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}
	return &httpSink{
		client:     &http.Client{Transport: transport, Timeout: 2 * time.Second},
		url:        dc.URLOrTopic,
		auth:       dc.Auth,
		extraQuery: dc.ExtraQuery,
	}, nil
}

func (s *httpSink) Send(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("dispatch: build request for %s: %w", s.url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, s.auth)
	applyExtraQuery(req.URL, s.extraQuery)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: send to %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch: %s returned status %d", s.url, resp.StatusCode)
	}
	return nil
}

func (s *httpSink) Close() error { return nil }
