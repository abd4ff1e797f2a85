package requestid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// HeaderName carries the request id in and out of the gateway
const HeaderName = "X-Request-ID"

// MaxLength matches the length of a UUID string
const MaxLength = 36

var invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// FromHeader returns a sanitized copy of an incoming request id, or a fresh
// UUID when the header is empty or nothing usable remains after sanitization.
func FromHeader(incoming string) string {
	id := invalidChars.ReplaceAllString(strings.TrimSpace(incoming), "")
	id = strings.Trim(id, "-")
	if id == "" {
		return uuid.NewString()
	}
	if len(id) > MaxLength {
		id = id[:MaxLength]
	}
	return id
}
