package purge

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// MenuID identifies the purge entry in the toolbar
const MenuID = "page-cache-purge-all"

// TriggerLink is the toolbar entry that starts a purge
type TriggerLink struct {
	ID    string
	Scope Scope
	Label string
	Href  string
	// MetaTitle is the accessible title of the entry
	MetaTitle string
}

// LinkBuilder renders trigger links consistent with what Dispatcher accepts
type LinkBuilder struct {
	issuer   TokenIssuer
	labels   *Labels
	recorder Recorder
	logger   *zap.Logger
}

// NewLinkBuilder creates a LinkBuilder. recorder may be nil.
func NewLinkBuilder(issuer TokenIssuer, labels *Labels, recorder Recorder, logger *zap.Logger) *LinkBuilder {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &LinkBuilder{
		issuer:   issuer,
		labels:   labels,
		recorder: recorder,
		logger:   logger,
	}
}

// Build returns the trigger link for the current page, or nil when the viewer is not an administrator.
func (b *LinkBuilder) Build(ctx context.Context, lc LinkContext) (*TriggerLink, error) {
	if !lc.CurrentUserHasAdminCapability() {
		return nil, nil
	}

	origin := OriginFrontEnd
	if lc.IsAdministrativeSurface() {
		origin = OriginAdmin
	}
	scope := ScopeFor(origin)
	label := b.labels.For(scope, lc.AcceptLanguage())

	u, err := siteLocation(lc.CurrentRequestURI())
	if err != nil {
		return nil, err
	}

	token, err := b.issuer.IssueToken(ctx, PurgeNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to issue purge token: %w", err)
	}

	q := u.Query()
	q.Set(ParamAction, ActionPurgeAll.String())
	q.Set(ParamScope, string(scope))
	q.Set(ParamToken, token)
	u.RawQuery = q.Encode()

	b.recorder.RecordLinkRender(string(scope))
	b.logger.Debug("Built purge trigger link",
		zap.String("scope", string(scope)),
		zap.String("origin", origin.String()))

	return &TriggerLink{
		ID:        MenuID,
		Scope:     scope,
		Label:     label,
		Href:      u.String(),
		MetaTitle: label,
	}, nil
}

// siteLocation keeps only the path and query of uri. Any scheme, host or
// fragment is dropped and leading slashes are collapsed, so the link never
// leaves the site.
func siteLocation(uri string) (*url.URL, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request uri: %w", err)
	}
	return &url.URL{
		Path:     "/" + strings.TrimLeft(parsed.Path, "/"),
		RawQuery: parsed.RawQuery,
	}, nil
}

// Contribute builds the trigger link and adds it to menu. Nothing is added for
// viewers without the administrative capability.
func (b *LinkBuilder) Contribute(ctx context.Context, lc LinkContext, menu MenuRegistrar) error {
	link, err := b.Build(ctx, lc)
	if err != nil {
		return err
	}
	if link == nil {
		return nil
	}
	menu.AddEntry(link.ID, link.Label, link.Href, link.MetaTitle)
	return nil
}
