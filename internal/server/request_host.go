package server

import (
	"context"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/auth"
	"github.com/edgecomet/pagepurge/internal/common/urlutil"
	"github.com/edgecomet/pagepurge/internal/purge"
)

// TokenService verifies and issues anti-replay tokens
type TokenService interface {
	purge.TokenIssuer
	VerifyAndConsumeToken(ctx context.Context, token, namespace string) bool
}

// requestHost is the hosting substrate for a single inbound request
type requestHost struct {
	rc        *fasthttp.RequestCtx
	session   *auth.Session
	admin     bool
	baseURL   string
	adminPath string
	tokens    TokenService
	logger    *zap.Logger

	redirected bool
}

func (h *requestHost) CurrentUserHasAdminCapability() bool {
	return h.admin
}

// CurrentRequestPath returns the logical front-end path of the request.
// Admin screens have no front-end path, so admin purges return to the
// dashboard root.
func (h *requestHost) CurrentRequestPath() string {
	if h.IsAdministrativeSurface() {
		return ""
	}
	return string(h.rc.Path())
}

func (h *requestHost) IsAdministrativeSurface() bool {
	path := string(h.rc.Path())
	return strings.HasPrefix(path, h.adminPath) || path == strings.TrimSuffix(h.adminPath, "/")
}

func (h *requestHost) BaseURL() string {
	return h.baseURL
}

// IssueRedirect answers with 302. Targets outside the site origin are refused
// and false is returned.
func (h *requestHost) IssueRedirect(target string) bool {
	if !urlutil.IsSameOrigin(h.baseURL, target) {
		h.logger.Error("Refusing redirect outside site origin",
			zap.String("target", target),
			zap.String("base_url", h.baseURL))
		return false
	}
	h.redirected = true
	h.rc.Redirect(target, fasthttp.StatusFound)
	return true
}

func (h *requestHost) VerifyAndConsumeToken(ctx context.Context, token, namespace string) bool {
	return h.tokens.VerifyAndConsumeToken(ctx, token, namespace)
}

// CurrentRequestURI rebuilds the location from the normalized path and query.
// The raw request target is not used since it may name another host.
func (h *requestHost) CurrentRequestURI() string {
	uri := h.rc.URI()
	loc := url.URL{Path: string(uri.Path()), RawQuery: string(uri.QueryString())}
	return loc.RequestURI()
}

func (h *requestHost) AcceptLanguage() string {
	return string(h.rc.Request.Header.Peek(fasthttp.HeaderAcceptLanguage))
}

// purgeRequest exposes the inbound parameters to the dispatcher
func (h *requestHost) purgeRequest() purge.Request {
	return purge.Request{
		Method: string(h.rc.Method()),
		Body:   argsToValues(h.rc.PostArgs()),
		Query:  argsToValues(h.rc.QueryArgs()),
	}
}

func argsToValues(args *fasthttp.Args) url.Values {
	values := url.Values{}
	args.VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}
