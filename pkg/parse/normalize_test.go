package parse

import (
	"errors"
	"net/url"
	"testing"
)

func TestNormalizeURL_NilInput(t *testing.T) {
	result := NormalizeURL(nil)
	if result != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty string", result)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "UppercaseSchemeAndHost",
			input:    "HTTPS://WWW.Taklope.COM/Liquide-Fraise.html",
			expected: "https://www.taklope.com/Liquide-Fraise.html", // Path case preserved
		},
		{
			name:     "HTTPPort80Removed",
			input:    "http://shop.example:80/p/1",
			expected: "http://shop.example/p/1",
		},
		{
			name:     "HTTPSPort443Removed",
			input:    "https://shop.example:443/p/1",
			expected: "https://shop.example/p/1",
		},
		{
			name:     "NonDefaultPortKept",
			input:    "https://shop.example:8443/p/1",
			expected: "https://shop.example:8443/p/1",
		},
		{
			name:     "EmptyPath",
			input:    "https://shop.example",
			expected: "https://shop.example/",
		},
		{
			name:     "FragmentRemovedQueryKept",
			input:    "https://shop.example/index.php?id_product=42&controller=product#reviews",
			expected: "https://shop.example/index.php?id_product=42&controller=product",
		},
		{
			name:     "TrailingSlashKept",
			input:    "https://shop.example/e-liquide/fraise/",
			expected: "https://shop.example/e-liquide/fraise/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q) failed: %v", tt.input, err)
			}
			if result := NormalizeURL(parsed); result != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeURL_DoesNotModifyInput(t *testing.T) {
	parsed, _ := url.Parse("HTTPS://Shop.Example:443/p#top")
	_ = NormalizeURL(parsed)
	if parsed.Host != "Shop.Example:443" || parsed.Fragment != "top" {
		t.Errorf("input was modified: %+v", parsed)
	}
}

func TestParseProductURL(t *testing.T) {
	got, parsed, err := ParseProductURL("  https://Shop.Example/p/1#x ")
	if err != nil {
		t.Fatalf("ParseProductURL returned error: %v", err)
	}
	if got != "https://shop.example/p/1" {
		t.Errorf("got %q", got)
	}
	if parsed == nil || parsed.Hostname() != "Shop.Example" {
		t.Errorf("parsed URL = %+v", parsed)
	}

	for _, raw := range []string{"/relative/path", "mailto:shop@example.com", "ftp://shop.example/file", "https://"} {
		if _, _, err := ParseProductURL(raw); !errors.Is(err, ErrNotProductURL) {
			t.Errorf("ParseProductURL(%q) error = %v, want ErrNotProductURL", raw, err)
		}
	}

	if _, _, err := ParseProductURL("http://[::1"); err == nil {
		t.Error("expected a parse error for a malformed host")
	}
}

func TestOnDomain(t *testing.T) {
	tests := []struct {
		link   string
		domain string
		want   bool
	}{
		{"https://taklope.com/x", "taklope.com", true},
		{"https://www.taklope.com/x", "taklope.com", true},
		{"https://taklope.com/x", "www.taklope.com", true},
		{"https://TAKLOPE.com/x", " Taklope.com ", true},
		{"https://nottaklope.com/x", "taklope.com", false},
		{"https://taklope.com.evil.example/x", "taklope.com", false},
		{"https://taklope.com/x", "", false},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.link)
		if got := OnDomain(u, tt.domain); got != tt.want {
			t.Errorf("OnDomain(%q, %q) = %v, want %v", tt.link, tt.domain, got, tt.want)
		}
	}
	if OnDomain(nil, "taklope.com") {
		t.Error("OnDomain(nil) should be false")
	}
}
