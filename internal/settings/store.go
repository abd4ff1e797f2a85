package settings

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/redis"
)

// OptionAlwaysPurgeURLs is the option holding the stored always-purge list
const OptionAlwaysPurgeURLs = "always_purge_urls"

// View is what the settings screen shows
type View struct {
	AlwaysPurgeURLs []string `json:"always_purge_urls"`
	Overrides       []string `json:"overrides"`
}

// Store persists the always-purge option. Overrides come from configuration
// and the environment; "/" is always among them.
type Store struct {
	redis     *redis.Client
	keys      *redis.KeyGenerator
	overrides []string
	logger    *zap.Logger
}

func NewStore(client *redis.Client, keys *redis.KeyGenerator, overrides []string, logger *zap.Logger) *Store {
	return &Store{
		redis:     client,
		keys:      keys,
		overrides: normalizeList(append([]string{"/"}, overrides...)),
		logger:    logger,
	}
}

// Save sanitizes raw and stores it, returning the list that was stored
func (s *Store) Save(ctx context.Context, raw string) ([]string, error) {
	urls := ParseURLList(raw)
	if err := s.redis.Set(ctx, s.keys.OptionKey(OptionAlwaysPurgeURLs), strings.Join(urls, ","), 0); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", OptionAlwaysPurgeURLs, err)
	}
	s.logger.Info("Always-purge URLs updated", zap.Strings("urls", urls))
	return urls, nil
}

// Stored returns the saved list, empty when nothing was saved
func (s *Store) Stored(ctx context.Context) ([]string, error) {
	raw, err := s.redis.Get(ctx, s.keys.OptionKey(OptionAlwaysPurgeURLs))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", OptionAlwaysPurgeURLs, err)
	}
	return ParseURLList(raw), nil
}

// Overrides returns the configured overrides
func (s *Store) Overrides() []string {
	out := make([]string, len(s.overrides))
	copy(out, s.overrides)
	return out
}

// Effective returns overrides followed by stored URLs, without duplicates
func (s *Store) Effective(ctx context.Context) ([]string, error) {
	stored, err := s.Stored(ctx)
	if err != nil {
		return nil, err
	}
	return normalizeList(append(s.Overrides(), stored...)), nil
}

// View returns the settings screen data
func (s *Store) View(ctx context.Context) (View, error) {
	stored, err := s.Stored(ctx)
	if err != nil {
		return View{}, err
	}
	return View{AlwaysPurgeURLs: stored, Overrides: s.Overrides()}, nil
}
