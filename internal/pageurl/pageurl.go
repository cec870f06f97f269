// Package pageurl resolves links found on a page against the page's own URL.
package pageurl

import (
	"fmt"
	"net/url"
	"strings"
)

// Base is the parsed URL of a fetched page
type Base struct {
	u *url.URL
}

// Parse parses an absolute page URL
func Parse(raw string) (*Base, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("page URL %q is not absolute", raw)
	}
	return &Base{u: u}, nil
}

// Scheme returns the lowercased scheme
func (b *Base) Scheme() string {
	return strings.ToLower(b.u.Scheme)
}

// Host returns host[:port]
func (b *Base) Host() string {
	return b.u.Host
}

// Origin returns scheme://host
func (b *Base) Origin() string {
	return b.Scheme() + "://" + b.u.Host
}

func (b *Base) String() string {
	return b.u.String()
}

// Resolve turns href into an absolute URL. Absolute hrefs are returned
// unchanged (apart from whitespace trimming); relative ones are resolved
// against the page URL following RFC 3986.
func (b *Base) Resolve(href string) (string, error) {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return b.u.ResolveReference(ref).String(), nil
}

// IsHTTP reports whether raw is an absolute http or https URL
func IsHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Normalize returns the dedup key for a URL: fragment dropped, scheme and
// host lowercased, empty path replaced by "/".
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	return u.String()
}
