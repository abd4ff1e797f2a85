package urlutil

import (
	"net/url"
	"strings"
)

// IsSameOrigin reports whether target points at the same scheme and host as base.
// Relative targets (no scheme, no host) are treated as same-origin.
func IsSameOrigin(base, target string) bool {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	if t.Scheme == "" && t.Host == "" {
		return strings.HasPrefix(t.Path, "/") || t.Path == ""
	}
	return strings.EqualFold(b.Scheme, t.Scheme) && strings.EqualFold(b.Host, t.Host)
}
