package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/httputil"
	"github.com/edgecomet/pagepurge/internal/settings"
)

type stubCache struct {
	flushed  int
	cleared  []string
	expired  []bool
	err      error
	deletedN int64
}

func (c *stubCache) Flush(context.Context) (int64, error) {
	c.flushed++
	return c.deletedN, c.err
}

func (c *stubCache) ClearByURL(_ context.Context, url string, expire bool) error {
	c.cleared = append(c.cleared, url)
	c.expired = append(c.expired, expire)
	return c.err
}

type stubPublisher struct {
	urls   []string
	result settings.PublishResult
	err    error
}

func (p *stubPublisher) OnPublished(_ context.Context, contentURL string) (settings.PublishResult, error) {
	p.urls = append(p.urls, contentURL)
	return p.result, p.err
}

type stubHealth struct {
	err error
}

func (h stubHealth) HealthCheck(context.Context) (time.Duration, error) {
	return 2 * time.Millisecond, h.err
}

type countingPublishRecorder struct {
	statuses []string
}

func (r *countingPublishRecorder) RecordPublishPurge(status string) {
	r.statuses = append(r.statuses, status)
}

func newTestInternalServer(cache *stubCache, pub *stubPublisher, health stubHealth, rec PublishRecorder) *InternalServer {
	return NewInternalServer("test-key", cache, pub, health, rec, zap.NewNop())
}

func internalRequest(method, path, body string, authKey string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if authKey != "" {
		ctx.Request.Header.Set(internalAuthHeader, authKey)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	return ctx
}

func decode(t *testing.T, ctx *fasthttp.RequestCtx) httputil.APIResponse {
	t.Helper()
	var resp httputil.APIResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	return resp
}

func TestInternalServer_Authentication(t *testing.T) {
	s := newTestInternalServer(&stubCache{}, &stubPublisher{}, stubHealth{}, nil)

	t.Run("missing header", func(t *testing.T) {
		ctx := internalRequest("GET", PathStatus, "", "")
		s.Handler()(ctx)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("invalid header", func(t *testing.T) {
		ctx := internalRequest("GET", PathStatus, "", "wrong-key")
		s.Handler()(ctx)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("valid header", func(t *testing.T) {
		ctx := internalRequest("GET", PathStatus, "", "test-key")
		s.Handler()(ctx)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	})
}

func TestInternalServer_Routing(t *testing.T) {
	s := newTestInternalServer(&stubCache{}, &stubPublisher{}, stubHealth{}, nil)

	t.Run("not found", func(t *testing.T) {
		ctx := internalRequest("GET", "/internal/unknown", "", "test-key")
		s.Handler()(ctx)
		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	})

	t.Run("method not allowed", func(t *testing.T) {
		ctx := internalRequest("GET", PathCachePurge, "", "test-key")
		s.Handler()(ctx)
		assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
	})

	t.Run("overwrite registration", func(t *testing.T) {
		called := false
		s.RegisterHandler("GET", PathStatus, func(ctx *fasthttp.RequestCtx) {
			called = true
			ctx.SetStatusCode(fasthttp.StatusNoContent)
		})

		ctx := internalRequest("GET", PathStatus, "", "test-key")
		s.Handler()(ctx)
		assert.True(t, called)
		assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	})
}

func TestInternalServer_ContentPublished(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		pub := &stubPublisher{result: settings.PublishResult{Purged: []string{"/post/", "/"}}}
		rec := &countingPublishRecorder{}
		s := newTestInternalServer(&stubCache{}, pub, stubHealth{}, rec)

		ctx := internalRequest("POST", PathContentPublished, `{"url":"/post/"}`, "test-key")
		s.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, []string{"/post/"}, pub.urls)
		assert.Equal(t, []string{"ok"}, rec.statuses)
		assert.JSONEq(t, `{"success":true,"data":{"purged":["/post/","/"]}}`, string(ctx.Response.Body()))
	})

	t.Run("partial failure", func(t *testing.T) {
		pub := &stubPublisher{
			result: settings.PublishResult{Purged: []string{"/post/"}, Failed: []string{"/"}},
			err:    errors.New("/: redis unavailable"),
		}
		rec := &countingPublishRecorder{}
		s := newTestInternalServer(&stubCache{}, pub, stubHealth{}, rec)

		ctx := internalRequest("POST", PathContentPublished, `{"url":"/post/"}`, "test-key")
		s.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
		resp := decode(t, ctx)
		assert.False(t, resp.Success)
		assert.NotNil(t, resp.Data)
		assert.Equal(t, []string{"error"}, rec.statuses)
	})

	t.Run("bad input", func(t *testing.T) {
		s := newTestInternalServer(&stubCache{}, &stubPublisher{}, stubHealth{}, nil)

		for _, body := range []string{"not json", `{"url":""}`} {
			ctx := internalRequest("POST", PathContentPublished, body, "test-key")
			s.Handler()(ctx)
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), body)
		}
	})
}

func TestInternalServer_CachePurge(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		cache := &stubCache{deletedN: 12}
		s := newTestInternalServer(cache, &stubPublisher{}, stubHealth{}, nil)

		ctx := internalRequest("POST", PathCachePurge, `{"scope":"all"}`, "test-key")
		s.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, 1, cache.flushed)
		assert.JSONEq(t, `{"success":true,"data":{"scope":"all","deleted":12}}`, string(ctx.Response.Body()))
	})

	t.Run("url defaults to expire", func(t *testing.T) {
		cache := &stubCache{}
		s := newTestInternalServer(cache, &stubPublisher{}, stubHealth{}, nil)

		ctx := internalRequest("POST", PathCachePurge, `{"scope":"url","url":"shop"}`, "test-key")
		s.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, []string{"/shop/"}, cache.cleared)
		assert.Equal(t, []bool{true}, cache.expired)
	})

	t.Run("url hard delete", func(t *testing.T) {
		cache := &stubCache{}
		s := newTestInternalServer(cache, &stubPublisher{}, stubHealth{}, nil)

		ctx := internalRequest("POST", PathCachePurge, `{"scope":"url","url":"/shop/","expire":false}`, "test-key")
		s.Handler()(ctx)

		assert.Equal(t, []bool{false}, cache.expired)
	})

	t.Run("engine failure", func(t *testing.T) {
		cache := &stubCache{err: errors.New("down")}
		s := newTestInternalServer(cache, &stubPublisher{}, stubHealth{}, nil)

		ctx := internalRequest("POST", PathCachePurge, `{"scope":"all"}`, "test-key")
		s.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
	})

	t.Run("validation", func(t *testing.T) {
		s := newTestInternalServer(&stubCache{}, &stubPublisher{}, stubHealth{}, nil)

		for _, body := range []string{"{", `{"scope":"some"}`, `{"scope":"url"}`} {
			ctx := internalRequest("POST", PathCachePurge, body, "test-key")
			s.Handler()(ctx)
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), body)
		}
	})
}

func TestInternalServer_Status(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestInternalServer(&stubCache{}, &stubPublisher{}, stubHealth{}, nil)

		ctx := internalRequest("GET", PathStatus, "", "test-key")
		s.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		resp := decode(t, ctx)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, true, data["redis"].(map[string]interface{})["healthy"])
		assert.Contains(t, data, "uptime_seconds")
	})

	t.Run("redis down", func(t *testing.T) {
		s := newTestInternalServer(&stubCache{}, &stubPublisher{}, stubHealth{err: errors.New("refused")}, nil)

		ctx := internalRequest("GET", PathStatus, "", "test-key")
		s.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
		assert.False(t, decode(t, ctx).Success)
	})
}
