// Package urlutil canonicalizes posting links so the same job link seen with
// different tracking parameters collapses to one key.
package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// Canonical returns a normalized form of raw that only folds spellings of the
// same resource: lowercased scheme and host, no "www." or default port, no
// fragment or userinfo, dot segments resolved, and ad-click tracking
// parameters (utm_*, gclid, fbclid) removed. Remaining query parameters keep
// their order and values. Values that are not absolute URLs come back
// trimmed but otherwise unchanged.
func Canonical(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = normalizeHost(u.Host, u.Scheme)
	u.Path = normalizePath(u.Path)
	u.RawPath = ""
	u.RawQuery = stripTracking(u.RawQuery)
	u.ForceQuery = false
	return u.String()
}

// Host returns the normalized host of raw, or "" when it has none.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func normalizeHost(host, scheme string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	switch scheme {
	case "https":
		host = strings.TrimSuffix(host, ":443")
	case "http":
		host = strings.TrimSuffix(host, ":80")
	}
	return host
}

// normalizePath resolves "." and ".." segments. A trailing slash is kept
// because servers may route "/a" and "/a/" differently; only the bare root
// collapses to "".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	clean := path.Clean(p)
	if clean == "/" {
		return ""
	}
	if strings.HasSuffix(p, "/") {
		clean += "/"
	}
	return clean
}

// stripTracking drops tracking pairs from a raw query without re-encoding or
// reordering the rest.
func stripTracking(raw string) string {
	if raw == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func isTrackingParam(key string) bool {
	lk := strings.ToLower(key)
	if strings.HasPrefix(lk, "utm_") {
		return true
	}
	switch lk {
	case "gclid", "fbclid":
		return true
	}
	return false
}
