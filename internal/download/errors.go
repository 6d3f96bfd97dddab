package download

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrNoVideo is returned when the manifest lists no video renditions.
var ErrNoVideo = errors.New("manifest has no video renditions")

// ManifestFetchError reports that the manifest could not be fetched or parsed.
// Hint is an alternative manifest URL worth retrying by hand.
type ManifestFetchError struct {
	URL  string
	Hint string
	Err  error
}

func (e *ManifestFetchError) Error() string {
	return fmt.Sprintf("failed to load manifest %s: %v", e.URL, e.Err)
}

func (e *ManifestFetchError) Unwrap() error {
	return e.Err
}

// RetryURL returns input with base64_init=1 added and query_string_ranges
// removed. Some clips only expose an inline init segment in that variant.
// An unparseable input is returned unchanged.
func RetryURL(input string) string {
	u, err := url.Parse(input)
	if err != nil {
		return input
	}
	q := u.Query()
	q.Add("base64_init", "1")
	q.Del("query_string_ranges")
	u.RawQuery = q.Encode()
	return u.String()
}
