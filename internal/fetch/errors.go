package fetch

import (
	"fmt"
	"net/url"
)

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	host := e.URL
	if u, err := url.Parse(e.URL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	return fmt.Sprintf("response code from %s: %s (%s)", host, e.Status, e.URL)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
