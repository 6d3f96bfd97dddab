package manifest

import (
	"fmt"
	"net/url"
)

// resolveURL resolves a reference against a base URL, handling potential errors.
// An empty reference yields the base itself; an absolute reference ignores the base.
func resolveURL(base *url.URL, ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference '%s': %w", ref, err)
	}
	if base == nil {
		return parsed, nil
	}
	return base.ResolveReference(parsed), nil
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
