package pagecache

import (
	"fmt"
	"strconv"
	"time"
)

// Entry is one cached page
type Entry struct {
	URL        string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	StatusCode int
	Body       []byte
}

func (e *Entry) IsExpired() bool {
	return !time.Now().UTC().Before(e.ExpiresAt)
}

// TTL returns the remaining freshness, 0 once expired
func (e *Entry) TTL() time.Duration {
	if e.IsExpired() {
		return 0
	}
	return e.ExpiresAt.Sub(time.Now().UTC())
}

// toHash converts the entry to Redis hash fields
func (e *Entry) toHash() []interface{} {
	return []interface{}{
		"url", e.URL,
		"created_at", e.CreatedAt.Unix(),
		"expires_at", e.ExpiresAt.Unix(),
		"status_code", e.StatusCode,
		"body", e.Body,
	}
}

// fromHash populates the entry from Redis hash fields
func (e *Entry) fromHash(data map[string]string) error {
	e.URL = data["url"]
	e.Body = []byte(data["body"])

	if statusCode, err := strconv.Atoi(data["status_code"]); err != nil {
		return fmt.Errorf("invalid status_code: %w", err)
	} else {
		e.StatusCode = statusCode
	}

	createdAt, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid created_at: %w", err)
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()

	expiresAt, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_at: %w", err)
	}
	e.ExpiresAt = time.Unix(expiresAt, 0).UTC()

	return nil
}
