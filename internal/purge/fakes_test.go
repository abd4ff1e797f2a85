package purge

import (
	"context"
	"errors"
	"net/url"
	"time"
)

type clearCall struct {
	all    bool
	url    string
	expire bool
}

type fakeEngine struct {
	calls []clearCall
	err   error
}

func (e *fakeEngine) ClearAll(context.Context) error {
	e.calls = append(e.calls, clearCall{all: true})
	return e.err
}

func (e *fakeEngine) ClearByURL(_ context.Context, normalizedURL string, expire bool) error {
	e.calls = append(e.calls, clearCall{url: normalizedURL, expire: expire})
	return e.err
}

type fakeHost struct {
	admin      bool
	adminPage  bool
	path       string
	uri        string
	base       string
	acceptLang string
	tokenOK    bool

	// refuseRedirect makes IssueRedirect decline every target
	refuseRedirect bool

	redirects  []string
	tokens     []string
	namespaces []string
}

func (h *fakeHost) CurrentUserHasAdminCapability() bool { return h.admin }
func (h *fakeHost) CurrentRequestPath() string          { return h.path }
func (h *fakeHost) IsAdministrativeSurface() bool       { return h.adminPage }
func (h *fakeHost) BaseURL() string                     { return h.base }
func (h *fakeHost) CurrentRequestURI() string           { return h.uri }
func (h *fakeHost) AcceptLanguage() string              { return h.acceptLang }

func (h *fakeHost) IssueRedirect(u string) bool {
	if h.refuseRedirect {
		return false
	}
	h.redirects = append(h.redirects, u)
	return true
}

func (h *fakeHost) VerifyAndConsumeToken(_ context.Context, token, namespace string) bool {
	h.tokens = append(h.tokens, token)
	h.namespaces = append(h.namespaces, namespace)
	return h.tokenOK
}

type fakeIssuer struct {
	token      string
	err        error
	namespaces []string
}

func (i *fakeIssuer) IssueToken(_ context.Context, namespace string) (string, error) {
	i.namespaces = append(i.namespaces, namespace)
	return i.token, i.err
}

type dispatchRecord struct {
	action, origin, result string
}

type fakeRecorder struct {
	dispatches []dispatchRecord
	links      []string
}

func (r *fakeRecorder) RecordDispatch(action, origin, result string, _ time.Duration) {
	r.dispatches = append(r.dispatches, dispatchRecord{action, origin, result})
}

func (r *fakeRecorder) RecordLinkRender(scope string) {
	r.links = append(r.links, scope)
}

type fakeMenu struct {
	entries [][4]string
}

func (m *fakeMenu) AddEntry(id, title, href, metaTitle string) {
	m.entries = append(m.entries, [4]string{id, title, href, metaTitle})
}

var errEngineDown = errors.New("engine down")

func query(action string) Request {
	return Request{Method: "GET", Query: url.Values{ParamAction: {action}, ParamToken: {"tok"}}}
}
