package urlutil

import "strings"

// NormalizePath returns p with exactly one leading and one trailing slash.
// "test", "/test", "test/" and "//test//" all become "/test/"; "" becomes "/".
func NormalizePath(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}

// JoinBase joins a base URL and a path with a single separating slash.
// Only the seam is collapsed; slashes inside p are kept as given.
func JoinBase(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
