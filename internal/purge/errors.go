package purge

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller lacks the administrative capability
	ErrUnauthorized = errors.New("sorry, you do not have the necessary privileges to purge the page cache")

	// ErrInvalidToken is returned when the anti-replay token is missing, expired or already used
	ErrInvalidToken = errors.New("the purge link has expired or was already used")

	// ErrRedirectRefused is returned when the host would not issue the done redirect.
	// Invalidation has already happened at that point.
	ErrRedirectRefused = errors.New("redirect to done url refused")
)

// InvalidationError reports a cache engine failure during dispatch
type InvalidationError struct {
	Action Action
	URL    string
	Err    error
}

func (e *InvalidationError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("cache invalidation %s failed for %s: %v", e.Action, e.URL, e.Err)
	}
	return fmt.Sprintf("cache invalidation %s failed: %v", e.Action, e.Err)
}

func (e *InvalidationError) Unwrap() error {
	return e.Err
}
