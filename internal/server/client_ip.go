package server

import (
	"net"
	"net/netip"
	"strings"

	"github.com/valyala/fasthttp"
)

// clientIP returns the caller address from the first configured header that
// carries one, or the connection address. For list headers such as
// X-Forwarded-For the leftmost entry is used.
func clientIP(rc *fasthttp.RequestCtx, headers []string) string {
	for _, name := range headers {
		value := rc.Request.Header.Peek(name)
		if len(value) == 0 {
			continue
		}
		first, _, _ := strings.Cut(string(value), ",")
		if ip := canonicalIP(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}

	remote := rc.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	return canonicalIP(remote)
}

// canonicalIP strips brackets and zones. Unparseable values are returned as is.
func canonicalIP(raw string) string {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return raw
	}
	return addr.WithZone("").Unmap().String()
}
