package dispatch

import (
	"net/http"
	"net/url"

	"autopid/internal/config"
)

// applyAuth decorates req per spec §3's four auth.type values. The
// query-string variant mutates req.URL in place.
func applyAuth(req *http.Request, auth config.AuthConfig) {
	switch auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case "api_key_header":
		name := auth.KeyName
		if name == "" {
			name = "x-api-key"
		}
		req.Header.Set(name, auth.Key)
	case "api_key_query":
		q := req.URL.Query()
		q.Set(auth.KeyName, auth.Key)
		req.URL.RawQuery = q.Encode()
	case "basic":
		req.SetBasicAuth(auth.User, auth.Pass)
	}
}

// applyExtraQuery merges a destination's static extra_query parameters
// into u; both the HTTP/HTTPS sink and the ABRP sink apply it to their
// request URL.
func applyExtraQuery(u *url.URL, extra map[string]string) {
	if len(extra) == 0 {
		return
	}
	q := u.Query()
	for k, v := range extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
}
