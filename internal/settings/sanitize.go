package settings

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/edgecomet/pagepurge/internal/common/urlutil"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeText strips markup and control characters from a single-line text
// field and collapses runs of whitespace.
func SanitizeText(raw string) string {
	s := tagPattern.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ParseURLList splits a comma separated list of paths, normalizing each entry
// and dropping blanks and duplicates. Order of first appearance is kept.
func ParseURLList(raw string) []string {
	return normalizeList(strings.Split(SanitizeText(raw), ","))
}

func normalizeList(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		p := urlutil.NormalizePath(e)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
