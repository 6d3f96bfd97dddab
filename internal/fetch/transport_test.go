package fetch

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHeaderTransport_DoesNotMutateCallerRequest(t *testing.T) {
	var seen http.Header
	tr := &HeaderTransport{
		Headers: map[string]string{"X-Origin": "vimeo-dl"},
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			seen = r.Header.Clone()
			return httptest.NewRecorder().Result(), nil
		}),
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "vimeo-dl", seen.Get("X-Origin"))
	assert.Empty(t, req.Header.Get("X-Origin"))
}

func TestHTTPError_Temporary(t *testing.T) {
	assert.True(t, (&HTTPError{StatusCode: 500}).Temporary())
	assert.True(t, (&HTTPError{StatusCode: 429}).Temporary())
	assert.False(t, (&HTTPError{StatusCode: 403}).Temporary())
}
