package settings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Invalidator clears single pages
type Invalidator interface {
	ClearByURL(ctx context.Context, normalizedURL string, expire bool) error
}

// PublishResult lists what a publish purge touched
type PublishResult struct {
	Purged []string `json:"purged"`
	Failed []string `json:"failed,omitempty"`
}

// PublishPurger expires the published page and every always-purge URL
type PublishPurger struct {
	settings *Store
	cache    Invalidator
	logger   *zap.Logger
}

func NewPublishPurger(settings *Store, cache Invalidator, logger *zap.Logger) *PublishPurger {
	return &PublishPurger{settings: settings, cache: cache, logger: logger}
}

// OnPublished runs after contentURL was created or updated. Every URL is
// attempted; failures are joined into the returned error.
func (p *PublishPurger) OnPublished(ctx context.Context, contentURL string) (PublishResult, error) {
	var result PublishResult

	always, err := p.settings.Effective(ctx)
	if err != nil {
		return result, err
	}

	targets := normalizeList(append([]string{contentURL}, always...))

	var errs []error
	for _, u := range targets {
		if err := p.cache.ClearByURL(ctx, u, true); err != nil {
			p.logger.Error("Failed to expire page on publish",
				zap.String("url", u),
				zap.Error(err))
			result.Failed = append(result.Failed, u)
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		result.Purged = append(result.Purged, u)
	}

	p.logger.Info("Publish purge finished",
		zap.String("content_url", contentURL),
		zap.Int("purged", len(result.Purged)),
		zap.Int("failed", len(result.Failed)))

	return result, errors.Join(errs...)
}
