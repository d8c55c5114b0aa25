package engine

import (
	"net/url"
	"regexp"
	"strings"
)

// videoIDRe matches the standard "v=ID" and shortened "youtu.be/ID" forms.
// The trailing group rejects IDs longer than 11 characters.
var videoIDRe = regexp.MustCompile(`(?:v=|youtu\.be/)([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`)

// VideoID extracts the 11-character video ID from rawURL.
// Pure string matching, no IO.
func VideoID(rawURL string) (string, bool) {
	m := videoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValidatePageURL checks that rawURL is an absolute http(s) URL.
func ValidatePageURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalidInput("extract", "unparseable URL %q: %v", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, invalidInput("extract", "unsupported URL %q: want http or https", rawURL)
	}
	if u.Host == "" {
		return nil, invalidInput("extract", "URL %q has no host", rawURL)
	}
	return u, nil
}
