package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/httputil"
	"github.com/edgecomet/pagepurge/internal/common/urlutil"
	"github.com/edgecomet/pagepurge/internal/settings"
)

// Path constants for internal endpoints
const (
	PathContentPublished = "/internal/content/published"
	PathCachePurge       = "/internal/cache/purge"
	PathStatus           = "/internal/status"
)

const internalAuthHeader = "X-Internal-Auth"

// CachePurger is the cache surface operators may drive directly
type CachePurger interface {
	Flush(ctx context.Context) (int64, error)
	ClearByURL(ctx context.Context, url string, expire bool) error
}

// Publisher reacts to published content
type Publisher interface {
	OnPublished(ctx context.Context, contentURL string) (settings.PublishResult, error)
}

// HealthChecker reports backend health
type HealthChecker interface {
	HealthCheck(ctx context.Context) (time.Duration, error)
}

// PublishRecorder counts publish purges
type PublishRecorder interface {
	RecordPublishPurge(status string)
}

type noopPublishRecorder struct{}

func (noopPublishRecorder) RecordPublishPurge(string) {}

// InternalServer serves the authenticated operator API
type InternalServer struct {
	authKey   string
	routes    map[string]map[string]fasthttp.RequestHandler // method -> path -> handler
	server    *fasthttp.Server
	listener  net.Listener
	timeout   time.Duration
	cache     CachePurger
	publisher Publisher
	health    HealthChecker
	recorder  PublishRecorder
	logger    *zap.Logger
	startTime time.Time
}

// NewInternalServer creates the internal API and registers its handlers. recorder may be nil.
func NewInternalServer(authKey string, cache CachePurger, publisher Publisher, health HealthChecker, recorder PublishRecorder, logger *zap.Logger) *InternalServer {
	if recorder == nil {
		recorder = noopPublishRecorder{}
	}
	s := &InternalServer{
		authKey:   authKey,
		routes:    make(map[string]map[string]fasthttp.RequestHandler),
		timeout:   30 * time.Second,
		cache:     cache,
		publisher: publisher,
		health:    health,
		recorder:  recorder,
		logger:    logger,
		startTime: time.Now().UTC(),
	}

	s.RegisterHandler(fasthttp.MethodPost, PathContentPublished, s.handleContentPublished)
	s.RegisterHandler(fasthttp.MethodPost, PathCachePurge, s.handleCachePurge)
	s.RegisterHandler(fasthttp.MethodGet, PathStatus, s.handleStatus)

	return s
}

// RegisterHandler registers a handler for a specific method and path
func (s *InternalServer) RegisterHandler(method, path string, handler fasthttp.RequestHandler) {
	if s.routes[method] == nil {
		s.routes[method] = make(map[string]fasthttp.RequestHandler)
	}

	if _, exists := s.routes[method][path]; exists {
		s.logger.Warn("Overwriting existing handler registration",
			zap.String("method", method),
			zap.String("path", path))
	}

	s.routes[method][path] = handler
	s.logger.Debug("Registered internal handler",
		zap.String("method", method),
		zap.String("path", path))
}

// Start begins accepting HTTP requests on the given address
func (s *InternalServer) Start(address string) error {

	s.server = &fasthttp.Server{
		Handler: s.Handler(),
		Name:    "PagePurge-Internal",
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = listener

	s.logger.Info("Internal server started", zap.String("address", address))

	return s.server.Serve(listener)
}

// Shutdown gracefully stops the internal server
func (s *InternalServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Shutting down internal server")
	return s.server.ShutdownWithContext(ctx)
}

// Handler returns the FastHTTP request handler
func (s *InternalServer) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !s.authenticate(ctx) {
			return
		}

		method := string(ctx.Method())
		path := string(ctx.Path())

		if methodRoutes, ok := s.routes[method]; ok {
			if handler, ok := methodRoutes[path]; ok {
				handler(ctx)
				return
			}
		}

		// 405 when the path exists under another method
		for _, methodRoutes := range s.routes {
			if _, ok := methodRoutes[path]; ok {
				httputil.JSONError(ctx, "method not allowed", fasthttp.StatusMethodNotAllowed)
				return
			}
		}

		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
	}
}

// authenticate validates the X-Internal-Auth header
func (s *InternalServer) authenticate(ctx *fasthttp.RequestCtx) bool {
	authHeader := ctx.Request.Header.Peek(internalAuthHeader)

	if len(authHeader) == 0 {
		s.logger.Warn("Missing X-Internal-Auth header",
			zap.String("remote_addr", ctx.RemoteAddr().String()),
			zap.String("path", string(ctx.Path())))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return false
	}

	if subtle.ConstantTimeCompare(authHeader, []byte(s.authKey)) != 1 {
		s.logger.Warn("Invalid X-Internal-Auth header",
			zap.String("remote_addr", ctx.RemoteAddr().String()),
			zap.String("path", string(ctx.Path())))
		httputil.JSONError(ctx, "unauthorized", fasthttp.StatusUnauthorized)
		return false
	}

	return true
}

func (s *InternalServer) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

type publishedRequest struct {
	URL string `json:"url"`
}

func (s *InternalServer) handleContentPublished(ctx *fasthttp.RequestCtx) {
	var req publishedRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.JSONError(ctx, "invalid JSON body", fasthttp.StatusBadRequest)
		return
	}
	if req.URL == "" {
		httputil.JSONError(ctx, "url is required", fasthttp.StatusBadRequest)
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()

	result, err := s.publisher.OnPublished(reqCtx, req.URL)
	if err != nil {
		s.recorder.RecordPublishPurge("error")
		s.logger.Error("Publish purge failed",
			zap.String("url", req.URL),
			zap.Error(err))
		httputil.JSONResponse(ctx, false, "publish purge failed", result, fasthttp.StatusBadGateway)
		return
	}

	s.recorder.RecordPublishPurge("ok")
	httputil.JSONData(ctx, result, fasthttp.StatusOK)
}

type cachePurgeRequest struct {
	Scope  string `json:"scope"`
	URL    string `json:"url"`
	Expire *bool  `json:"expire,omitempty"`
}

func (s *InternalServer) handleCachePurge(ctx *fasthttp.RequestCtx) {
	var req cachePurgeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.JSONError(ctx, "invalid JSON body", fasthttp.StatusBadRequest)
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()

	switch req.Scope {
	case "all":
		deleted, err := s.cache.Flush(reqCtx)
		if err != nil {
			s.logger.Error("Operator cache flush failed", zap.Error(err))
			httputil.JSONError(ctx, "cache flush failed", fasthttp.StatusBadGateway)
			return
		}
		httputil.JSONData(ctx, map[string]interface{}{"scope": "all", "deleted": deleted}, fasthttp.StatusOK)

	case "url":
		if req.URL == "" {
			httputil.JSONError(ctx, "url is required for scope url", fasthttp.StatusBadRequest)
			return
		}
		expire := req.Expire == nil || *req.Expire
		normalized := urlutil.NormalizePath(req.URL)
		if err := s.cache.ClearByURL(reqCtx, normalized, expire); err != nil {
			s.logger.Error("Operator URL purge failed",
				zap.String("url", normalized),
				zap.Error(err))
			httputil.JSONError(ctx, "cache purge failed", fasthttp.StatusBadGateway)
			return
		}
		httputil.JSONData(ctx, map[string]interface{}{"scope": "url", "url": normalized, "expire": expire}, fasthttp.StatusOK)

	default:
		httputil.JSONError(ctx, `scope must be "all" or "url"`, fasthttp.StatusBadRequest)
	}
}

func (s *InternalServer) handleStatus(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := s.requestContext()
	defer cancel()

	status := map[string]interface{}{
		"started_at":     s.startTime.Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	}

	latency, err := s.health.HealthCheck(reqCtx)
	if err != nil {
		status["redis"] = map[string]interface{}{"healthy": false, "error": err.Error()}
		httputil.JSONResponse(ctx, false, "redis unhealthy", status, fasthttp.StatusServiceUnavailable)
		return
	}

	status["redis"] = map[string]interface{}{"healthy": true, "latency_ms": latency.Milliseconds()}
	httputil.JSONData(ctx, status, fasthttp.StatusOK)
}
