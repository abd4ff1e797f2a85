package purge

import (
	"context"
	"net/url"
	"time"
)

// CacheEngine is the page cache being purged
type CacheEngine interface {
	ClearAll(ctx context.Context) error
	// ClearByURL invalidates one normalized URL. With expire set the entry is
	// kept but marked stale; otherwise it is removed.
	ClearByURL(ctx context.Context, normalizedURL string, expire bool) error
}

// Host is the per-request view of the hosting substrate used by the dispatcher
type Host interface {
	CurrentUserHasAdminCapability() bool
	// CurrentRequestPath is the logical request path without host or query
	CurrentRequestPath() string
	IsAdministrativeSurface() bool
	BaseURL() string
	// IssueRedirect answers the request with a redirect to url. It returns
	// false when the host refuses the target.
	IssueRedirect(url string) bool
	VerifyAndConsumeToken(ctx context.Context, token, namespace string) bool
}

// LinkContext is the per-request view used when building the trigger link
type LinkContext interface {
	CurrentUserHasAdminCapability() bool
	IsAdministrativeSurface() bool
	// CurrentRequestURI is the path and query of the page being viewed
	CurrentRequestURI() string
	// AcceptLanguage is the raw Accept-Language header, used for labels
	AcceptLanguage() string
}

// TokenIssuer signs trigger links
type TokenIssuer interface {
	IssueToken(ctx context.Context, namespace string) (string, error)
}

// MenuRegistrar receives the navigational entry built for a page
type MenuRegistrar interface {
	AddEntry(id, title, href, metaTitle string)
}

// Recorder observes dispatches and rendered links
type Recorder interface {
	RecordDispatch(action, origin, result string, duration time.Duration)
	RecordLinkRender(scope string)
}

type noopRecorder struct{}

func (noopRecorder) RecordDispatch(string, string, string, time.Duration) {}
func (noopRecorder) RecordLinkRender(string)                              {}

// Request carries the inbound parameters a dispatch reads from
type Request struct {
	Method string
	Body   url.Values
	Query  url.Values
}

// submission reports whether the request uses the form-submission channel
func (r Request) submission() bool {
	return r.Method == "POST"
}

// channel returns the parameters the action is read from
func (r Request) channel() url.Values {
	if r.submission() {
		return r.Body
	}
	return r.Query
}

// namespace returns the token namespace expected for the request channel
func (r Request) namespace() string {
	if r.submission() {
		return SettingsNamespace
	}
	return PurgeNamespace
}
