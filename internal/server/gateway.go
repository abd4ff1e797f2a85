package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/adminbar"
	"github.com/edgecomet/pagepurge/internal/auth"
	"github.com/edgecomet/pagepurge/internal/common/configtypes"
	"github.com/edgecomet/pagepurge/internal/common/httputil"
	"github.com/edgecomet/pagepurge/internal/common/requestid"
	"github.com/edgecomet/pagepurge/internal/common/urlutil"
	"github.com/edgecomet/pagepurge/internal/hooks"
	"github.com/edgecomet/pagepurge/internal/purge"
	"github.com/edgecomet/pagepurge/internal/settings"
)

// Hook events fired by the gateway
const (
	EventRequestInit = "request_init"
	EventToolbarMenu = "toolbar_menu"
)

const (
	dispatcherPriority  = 10
	linkBuilderPriority = 100

	refusalUnauthorized = "Sorry, you do not have the necessary privileges to purge the page cache."
	refusalInvalidToken = "The link you followed has expired."
)

// Payload is passed to hook handlers. Menu is set for toolbar_menu only.
type Payload struct {
	host *requestHost
	Menu *adminbar.Menu
}

// Host returns the request the hook runs for
func (p *Payload) Host() purge.Host {
	return p.host
}

// Deps are the collaborators of the gateway
type Deps struct {
	Sessions    *auth.SessionAuthenticator
	Tokens      TokenService
	Dispatcher  *purge.Dispatcher
	LinkBuilder *purge.LinkBuilder
	Settings    *settings.Store
	Hooks       *hooks.Registry[*Payload]
}

// Gateway is the public purge endpoint. Every request first runs the
// request_init hooks; a request they do not answer is routed to the
// toolbar or settings handlers.
type Gateway struct {
	cfg     configtypes.ServerConfig
	baseURL string
	deps    Deps
	server  *fasthttp.Server
	logger  *zap.Logger
}

func NewGateway(cfg configtypes.ServerConfig, baseURL string, deps Deps, logger *zap.Logger) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		baseURL: baseURL,
		deps:    deps,
		logger:  logger,
	}
	g.server = &fasthttp.Server{
		Handler:      g.Handler(),
		Name:         "PagePurge-Gateway",
		ReadTimeout:  cfg.RequestTimeout.ToDuration(),
		WriteTimeout: cfg.RequestTimeout.ToDuration(),
	}
	deps.Hooks.RegisterHandlerWithPriority(EventRequestInit, "purge_dispatcher", dispatcherPriority, g.dispatchHook)
	deps.Hooks.RegisterHandlerWithPriority(EventToolbarMenu, "purge_link", linkBuilderPriority, g.toolbarHook)
	return g
}

// Start listens on cfg.Listen and serves until Shutdown
func (g *Gateway) Start() error {
	listener, err := net.Listen("tcp", g.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.cfg.Listen, err)
	}

	g.logger.Info("Gateway listening", zap.String("address", listener.Addr().String()))
	return g.server.Serve(listener)
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("Shutting down gateway")
	return g.server.ShutdownWithContext(ctx)
}

// Handler returns the FastHTTP request handler
func (g *Gateway) Handler() fasthttp.RequestHandler {
	return func(rc *fasthttp.RequestCtx) {
		reqID := requestid.FromHeader(string(rc.Request.Header.Peek(requestid.HeaderName)))
		rc.Response.Header.Set(requestid.HeaderName, reqID)

		logger := g.logger.With(
			zap.String("request_id", reqID),
			zap.String("client_ip", clientIP(rc, g.cfg.ClientIPHeaders)),
			zap.String("method", string(rc.Method())),
			zap.String("path", string(rc.Path())))

		ctx, cancel := g.requestContext()
		defer cancel()

		host := g.newRequestHost(rc, logger)
		payload := &Payload{host: host}

		if err := g.deps.Hooks.Fire(ctx, EventRequestInit, payload); err != nil {
			if !errors.Is(err, hooks.ErrHalt) {
				logger.Error("request_init hook failed", zap.Error(err))
				httputil.JSONError(rc, "internal error", fasthttp.StatusInternalServerError)
			}
			return
		}

		g.route(ctx, rc, host, logger)
	}
}

func (g *Gateway) requestContext() (context.Context, context.CancelFunc) {
	if timeout := g.cfg.RequestTimeout.ToDuration(); timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

func (g *Gateway) newRequestHost(rc *fasthttp.RequestCtx, logger *zap.Logger) *requestHost {
	host := &requestHost{
		rc:        rc,
		baseURL:   g.baseURL,
		adminPath: g.cfg.AdminPath,
		tokens:    g.deps.Tokens,
		logger:    logger,
	}

	session, err := g.deps.Sessions.Authenticate(rc)
	switch {
	case err == nil:
		host.session = session
		host.admin = g.deps.Sessions.IsAdmin(session)
	case errors.Is(err, auth.ErrNoSession):
	default:
		logger.Debug("Treating request as anonymous", zap.Error(err))
	}
	return host
}

func (g *Gateway) settingsPath() string {
	return g.cfg.AdminPath + "options"
}

func (g *Gateway) route(ctx context.Context, rc *fasthttp.RequestCtx, host *requestHost, logger *zap.Logger) {
	path := string(rc.Path())

	switch {
	case path == g.settingsPath() && rc.IsPost():
		g.handleSaveSettings(ctx, rc, host, logger)
	case path == g.settingsPath() && rc.IsGet():
		g.handleSettingsView(ctx, rc, host, logger)
	case rc.IsGet() || rc.IsHead():
		g.handleToolbar(ctx, rc, host, logger)
	default:
		httputil.JSONError(rc, "method not allowed", fasthttp.StatusMethodNotAllowed)
	}
}

// dispatchHook runs the purge dispatcher for every request
func (g *Gateway) dispatchHook(ctx context.Context, p *Payload) error {
	host := p.host
	out, err := g.deps.Dispatcher.Dispatch(ctx, host, host.purgeRequest())

	var invErr *purge.InvalidationError
	switch {
	case errors.Is(err, purge.ErrUnauthorized):
		httputil.Refuse(host.rc, refusalUnauthorized, fasthttp.StatusForbidden)
		return hooks.ErrHalt
	case errors.Is(err, purge.ErrInvalidToken):
		httputil.Refuse(host.rc, refusalInvalidToken, fasthttp.StatusForbidden)
		return hooks.ErrHalt
	case errors.As(err, &invErr):
		httputil.JSONError(host.rc, "cache invalidation failed", fasthttp.StatusBadGateway)
		return hooks.ErrHalt
	case errors.Is(err, purge.ErrRedirectRefused):
		httputil.JSONError(host.rc, "redirect target outside site", fasthttp.StatusInternalServerError)
		return hooks.ErrHalt
	case err != nil:
		return err
	}

	if out.Handled() {
		return hooks.ErrHalt
	}
	return nil
}

// toolbarHook adds the purge entry to the toolbar
func (g *Gateway) toolbarHook(ctx context.Context, p *Payload) error {
	return g.deps.LinkBuilder.Contribute(ctx, p.host, p.Menu)
}

func (g *Gateway) handleToolbar(ctx context.Context, rc *fasthttp.RequestCtx, host *requestHost, logger *zap.Logger) {
	menu := adminbar.NewMenu()
	if err := g.deps.Hooks.Fire(ctx, EventToolbarMenu, &Payload{host: host, Menu: menu}); err != nil {
		logger.Error("toolbar_menu hook failed", zap.Error(err))
		httputil.JSONError(rc, "failed to build toolbar", fasthttp.StatusInternalServerError)
		return
	}
	logger.Debug("Toolbar built", zap.Int("nodes", menu.Len()))

	if httputil.WantsJSON(rc) {
		httputil.JSONData(rc, map[string]interface{}{"nodes": menu.Nodes()}, fasthttp.StatusOK)
		return
	}

	body, err := menu.RenderHTML()
	if err != nil {
		logger.Error("Failed to render toolbar", zap.Error(err))
		httputil.JSONError(rc, "failed to render toolbar", fasthttp.StatusInternalServerError)
		return
	}
	httputil.HTML(rc, body)
}

type settingsResponse struct {
	settings.View
	Token string `json:"token"`
}

func (g *Gateway) handleSettingsView(ctx context.Context, rc *fasthttp.RequestCtx, host *requestHost, logger *zap.Logger) {
	if !host.CurrentUserHasAdminCapability() {
		httputil.Refuse(rc, refusalUnauthorized, fasthttp.StatusForbidden)
		return
	}

	view, err := g.deps.Settings.View(ctx)
	if err != nil {
		logger.Error("Failed to load settings", zap.Error(err))
		httputil.JSONError(rc, "failed to load settings", fasthttp.StatusInternalServerError)
		return
	}

	token, err := g.deps.Tokens.IssueToken(ctx, purge.SettingsNamespace)
	if err != nil {
		logger.Error("Failed to issue settings token", zap.Error(err))
		httputil.JSONError(rc, "failed to issue token", fasthttp.StatusInternalServerError)
		return
	}

	httputil.JSONData(rc, settingsResponse{View: view, Token: token}, fasthttp.StatusOK)
}

func (g *Gateway) handleSaveSettings(ctx context.Context, rc *fasthttp.RequestCtx, host *requestHost, logger *zap.Logger) {
	if !host.CurrentUserHasAdminCapability() {
		httputil.Refuse(rc, refusalUnauthorized, fasthttp.StatusForbidden)
		return
	}

	form := rc.PostArgs()
	if !host.VerifyAndConsumeToken(ctx, string(form.Peek(purge.ParamToken)), purge.SettingsNamespace) {
		httputil.Refuse(rc, refusalInvalidToken, fasthttp.StatusForbidden)
		return
	}

	saved, err := g.deps.Settings.Save(ctx, string(form.Peek(settings.OptionAlwaysPurgeURLs)))
	if err != nil {
		logger.Error("Failed to save settings", zap.Error(err))
		httputil.JSONError(rc, "failed to save settings", fasthttp.StatusInternalServerError)
		return
	}

	if httputil.WantsJSON(rc) {
		httputil.JSONData(rc, settings.View{AlwaysPurgeURLs: saved, Overrides: g.deps.Settings.Overrides()}, fasthttp.StatusOK)
		return
	}
	rc.Redirect(urlutil.JoinBase(host.BaseURL(), g.settingsPath())+"?settings-updated=true", fasthttp.StatusSeeOther)
}
