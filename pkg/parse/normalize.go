// Package parse normalizes competitor product URLs before they are cached or compared.
package parse

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrNotProductURL is returned for links that cannot be a competitor product page
var ErrNotProductURL = errors.New("not an http(s) product url")

// NormalizeURL standardizes a product URL for storage.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// removes the fragment and turns an empty path into "/".
// The query string is kept: some shops identify the product there.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	}
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseProductURL parses a link returned by a search provider and normalizes it.
// Only absolute http and https URLs with a host are accepted
func ParseProductURL(raw string) (string, *url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Hostname() == "" {
		return "", nil, ErrNotProductURL
	}
	return NormalizeURL(parsed), parsed, nil
}

// OnDomain reports whether u is served by domain or one of its subdomains
func OnDomain(u *url.URL, domain string) bool {
	if u == nil {
		return false
	}
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if domain == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}
