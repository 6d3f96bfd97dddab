package fetch

import "net/http"

// HeaderTransport injects a fixed set of headers into every request.
type HeaderTransport struct {
	Headers map[string]string
	Base    http.RoundTripper
}

// RoundTrip sets the configured headers on a clone of req and delegates to Base.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if len(t.Headers) == 0 {
		return base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
	return base.RoundTrip(req)
}
