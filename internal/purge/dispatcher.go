package purge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/urlutil"
)

// DispatcherConfig controls redirect construction and token checks
type DispatcherConfig struct {
	// AdminPath is appended to the current path for admin redirects, e.g. "/wp-admin/"
	AdminPath string
	// RequireToken makes a valid anti-replay token mandatory before invalidation
	RequireToken bool
}

// Outcome describes how a dispatch ended. When Dispatch returns an error,
// State is the step the dispatch stopped in.
type Outcome struct {
	State    State
	Action   Action
	Origin   Origin
	URL      string
	Redirect string
}

// Handled reports whether the request was answered and must not be processed further
func (o Outcome) Handled() bool {
	return o.State == StateRedirecting || o.State == StateRejected
}

// Dispatcher turns a purge request into at most one cache invalidation
// followed by a redirect to the "done" URL.
type Dispatcher struct {
	engine   CacheEngine
	cfg      DispatcherConfig
	recorder Recorder
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. recorder may be nil.
func NewDispatcher(engine CacheEngine, cfg DispatcherConfig, recorder Recorder, logger *zap.Logger) *Dispatcher {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Dispatcher{
		engine:   engine,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
	}
}

// Dispatch processes req against host.
//
// A request without an action, or with action=done, returns a zero Outcome in
// StateIdle and touches nothing. Unauthorized callers get ErrUnauthorized and
// no redirect. Engine failures are returned as *InvalidationError and no
// redirect is issued either. A redirect the host refuses yields
// ErrRedirectRefused.
func (d *Dispatcher) Dispatch(ctx context.Context, host Host, req Request) (Outcome, error) {
	start := time.Now()
	params := req.channel()
	out := Outcome{State: StateIdle, Action: ParseAction(params.Get(ParamAction))}

	if out.Action.terminal() {
		d.logger.Debug("No purge requested", zap.String("action", out.Action.label()))
		return out, nil
	}

	if host.IsAdministrativeSurface() {
		out.Origin = OriginAdmin
	}

	out.State = StateAuthorizing
	if !host.CurrentUserHasAdminCapability() {
		out.State = StateRejected
		d.logger.Warn("Purge refused: missing admin capability",
			zap.String("action", out.Action.label()))
		d.record(out, "unauthorized", start)
		return out, ErrUnauthorized
	}

	if d.cfg.RequireToken && !host.VerifyAndConsumeToken(ctx, params.Get(ParamToken), req.namespace()) {
		out.State = StateRejected
		d.logger.Warn("Purge refused: invalid token",
			zap.String("action", out.Action.label()),
			zap.String("namespace", req.namespace()))
		d.record(out, "invalid_token", start)
		return out, ErrInvalidToken
	}

	out.State = StateScoping
	path := host.CurrentRequestPath()
	redirectPath := path
	if out.Origin == OriginAdmin {
		redirectPath = path + d.cfg.AdminPath
	} else {
		// front-end purges are always scoped to the page being viewed
		out.Action = ActionPurgeCurrentPage
	}

	out.State = StateInvalidating
	if err := d.invalidate(ctx, &out, path); err != nil {
		d.logger.Error("Cache invalidation failed",
			zap.String("action", out.Action.label()),
			zap.String("origin", out.Origin.String()),
			zap.String("url", out.URL),
			zap.Error(err))
		d.record(out, "failed", start)
		return out, err
	}

	out.State = StateRedirecting
	out.Redirect = urlutil.JoinBase(host.BaseURL(), redirectPath) + "?" + ParamAction + "=" + ActionDone.String()
	if !host.IssueRedirect(out.Redirect) {
		d.logger.Error("Done redirect refused by host",
			zap.String("action", out.Action.label()),
			zap.String("origin", out.Origin.String()),
			zap.String("redirect", out.Redirect))
		d.record(out, "redirect_refused", start)
		return out, ErrRedirectRefused
	}

	d.logger.Info("Purge dispatched",
		zap.String("action", out.Action.label()),
		zap.String("origin", out.Origin.String()),
		zap.String("url", out.URL),
		zap.String("redirect", out.Redirect))
	d.record(out, "ok", start)
	return out, nil
}

func (d *Dispatcher) invalidate(ctx context.Context, out *Outcome, path string) error {
	var err error
	switch out.Action {
	case ActionPurgeAll:
		err = d.engine.ClearAll(ctx)
	case ActionPurgeCurrentPage:
		out.URL = urlutil.NormalizePath(path)
		err = d.engine.ClearByURL(ctx, out.URL, true)
	default:
		d.logger.Debug("Unrecognized purge action ignored", zap.String("action", out.Action.label()))
		return nil
	}
	if err != nil {
		return &InvalidationError{Action: out.Action, URL: out.URL, Err: err}
	}
	return nil
}

func (d *Dispatcher) record(out Outcome, result string, start time.Time) {
	d.recorder.RecordDispatch(out.Action.label(), out.Origin.String(), result, time.Since(start))
}
