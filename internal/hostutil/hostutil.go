// Package hostutil converts user-supplied hosts into API base URLs.
package hostutil

import (
	"fmt"
	"net/url"
	"strings"
)

// APIPath is the path prefix every API endpoint lives under.
const APIPath = "/api/v1/"

// Normalize converts a host string to a full URL.
// - Empty string returns empty
// - localhost/127.0.0.1 and private LAN addresses default to http://
// - Other bare hostnames default to https://
// - Full URLs are used as-is
func Normalize(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if IsLocalhost(host) || IsPrivateLAN(host) {
		return "http://" + host
	}
	return "https://" + host
}

// BaseURL turns a host or URL into an API base URL ending in "/api/v1/".
// A URL that already carries a path is kept as-is apart from the trailing slash.
func BaseURL(host string) string {
	u := Normalize(host)
	if u == "" {
		return ""
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = APIPath
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed.String()
}

// Origin returns scheme://host[:port] for a base URL.
func Origin(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(baseURL, "/")
	}
	return parsed.Scheme + "://" + parsed.Host
}

// RequireSecureURL rejects plain-http URLs for non-local hosts,
// since bearer tokens would travel in clear text.
func RequireSecureURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if IsLocalhost(parsed.Host) || IsPrivateLAN(parsed.Host) {
			return nil
		}
		return fmt.Errorf("refusing plain http for %s; use https", parsed.Host)
	default:
		return fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
}

// IsLocalhost returns true if host is localhost, a .localhost subdomain,
// 127.0.0.1, 10.0.2.2 (Android emulator loopback) or [::1] (with optional port).
func IsLocalhost(host string) bool {
	h := stripPort(host)
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	return h == "127.0.0.1" || h == "10.0.2.2" || h == "[::1]"
}

// IsPrivateLAN reports whether host is an RFC 1918 192.168.x.x address,
// the usual shape of a development backend on the same Wi-Fi.
func IsPrivateLAN(host string) bool {
	return strings.HasPrefix(stripPort(host), "192.168.")
}

func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end != -1 {
			return host[:end+1]
		}
		return host
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
