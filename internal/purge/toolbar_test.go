package purge

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLinkBuilder(t *testing.T, issuer TokenIssuer, rec Recorder) *LinkBuilder {
	t.Helper()
	labels, err := NewLabels()
	require.NoError(t, err)
	return NewLinkBuilder(issuer, labels, rec, zap.NewNop())
}

func TestLinkBuilder_ScopeMapping(t *testing.T) {
	tests := []struct {
		name      string
		adminPage bool
		uri       string
		scope     Scope
		label     string
	}{
		{"admin", true, "/wp-admin/", ScopeAll, "Purge All Cache"},
		{"front end", false, "/shop/", ScopeCurrentURL, "Purge Current Page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := &fakeIssuer{token: "signed"}
			rec := &fakeRecorder{}
			lc := &fakeHost{admin: true, adminPage: tt.adminPage, uri: tt.uri}

			link, err := newTestLinkBuilder(t, issuer, rec).Build(context.Background(), lc)

			require.NoError(t, err)
			require.NotNil(t, link)
			assert.Equal(t, tt.scope, link.Scope)
			assert.Equal(t, tt.label, link.Label)
			assert.Equal(t, tt.label, link.MetaTitle)
			assert.Equal(t, MenuID, link.ID)
			assert.Equal(t, []string{PurgeNamespace}, issuer.namespaces)
			assert.Equal(t, []string{string(tt.scope)}, rec.links)

			href, err := url.Parse(link.Href)
			require.NoError(t, err)
			assert.Equal(t, tt.uri, href.Path)
			assert.Equal(t, "purge", href.Query().Get(ParamAction))
			assert.Equal(t, string(tt.scope), href.Query().Get(ParamScope))
			assert.Equal(t, "signed", href.Query().Get(ParamToken))
		})
	}
}

func TestLinkBuilder_Unauthorized(t *testing.T) {
	issuer := &fakeIssuer{token: "signed"}
	menu := &fakeMenu{}
	lc := &fakeHost{admin: false, adminPage: true, uri: "/wp-admin/"}
	b := newTestLinkBuilder(t, issuer, nil)

	link, err := b.Build(context.Background(), lc)
	require.NoError(t, err)
	assert.Nil(t, link)

	require.NoError(t, b.Contribute(context.Background(), lc, menu))
	assert.Empty(t, menu.entries)
	assert.Empty(t, issuer.namespaces, "no token is issued for viewers who cannot purge")
}

func TestLinkBuilder_ReplacesExistingParams(t *testing.T) {
	lc := &fakeHost{admin: true, uri: "/shop/?action=done&page=2&_wpnonce=old"}

	link, err := newTestLinkBuilder(t, &fakeIssuer{token: "new"}, nil).Build(context.Background(), lc)
	require.NoError(t, err)

	href, err := url.Parse(link.Href)
	require.NoError(t, err)
	q := href.Query()
	assert.Equal(t, []string{"purge"}, q[ParamAction])
	assert.Equal(t, []string{"new"}, q[ParamToken])
	assert.Equal(t, "2", q.Get("page"))
}

func TestLinkBuilder_Contribute(t *testing.T) {
	menu := &fakeMenu{}
	lc := &fakeHost{admin: true, uri: "/shop/"}

	require.NoError(t, newTestLinkBuilder(t, &fakeIssuer{token: "signed"}, nil).Contribute(context.Background(), lc, menu))

	require.Len(t, menu.entries, 1)
	entry := menu.entries[0]
	assert.Equal(t, MenuID, entry[0])
	assert.Equal(t, "Purge Current Page", entry[1])
	assert.Contains(t, entry[2], "urls=current-url")
	assert.Equal(t, "Purge Current Page", entry[3])
}

func TestLinkBuilder_Errors(t *testing.T) {
	t.Run("issuer failure", func(t *testing.T) {
		lc := &fakeHost{admin: true, uri: "/shop/"}
		_, err := newTestLinkBuilder(t, &fakeIssuer{err: errEngineDown}, nil).Build(context.Background(), lc)
		assert.ErrorIs(t, err, errEngineDown)
	})

	t.Run("bad request uri", func(t *testing.T) {
		lc := &fakeHost{admin: true, uri: "/%zz"}
		_, err := newTestLinkBuilder(t, &fakeIssuer{token: "x"}, nil).Build(context.Background(), lc)
		assert.Error(t, err)
	})
}

func TestLinkBuilder_RoundTripWithDispatcher(t *testing.T) {
	lc := &fakeHost{admin: true, uri: "/shop/"}
	link, err := newTestLinkBuilder(t, &fakeIssuer{token: "signed"}, nil).Build(context.Background(), lc)
	require.NoError(t, err)

	href, err := url.Parse(link.Href)
	require.NoError(t, err)

	engine := &fakeEngine{}
	host := frontHost()
	out, err := newTestDispatcher(engine, nil).Dispatch(context.Background(), host, Request{Method: "GET", Query: href.Query()})

	require.NoError(t, err)
	assert.Equal(t, ActionPurgeCurrentPage, out.Action)
	assert.Equal(t, []string{"signed"}, host.tokens)
	assert.Equal(t, []string{PurgeNamespace}, host.namespaces)
}

func TestLinkBuilder_StaysOnSite(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		path string
	}{
		{"protocol relative", "//evil.example/x", "/x"},
		{"absolute", "https://evil.example/shop/?page=2", "/shop/"},
		{"repeated slashes", "///shop/", "/shop/"},
		{"empty", "", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := &fakeHost{admin: true, uri: tt.uri}

			link, err := newTestLinkBuilder(t, &fakeIssuer{token: "signed"}, nil).Build(context.Background(), lc)
			require.NoError(t, err)

			href, err := url.Parse(link.Href)
			require.NoError(t, err)
			assert.Empty(t, href.Scheme)
			assert.Empty(t, href.Host)
			assert.Equal(t, tt.path, href.Path)
			assert.NotContains(t, link.Href, "evil.example")
			assert.Equal(t, "signed", href.Query().Get(ParamToken))
		})
	}
}
