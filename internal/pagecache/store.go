package pagecache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/redis"
	"github.com/edgecomet/pagepurge/internal/common/urlutil"
)

// scanBatch is the SCAN COUNT hint used when clearing the whole cache
const scanBatch = 500

// Store is the Redis-backed page cache. Pages are keyed by normalized path.
type Store struct {
	redis  *redis.Client
	keys   *redis.KeyGenerator
	logger *zap.Logger
	now    func() time.Time
}

func NewStore(client *redis.Client, keys *redis.KeyGenerator, logger *zap.Logger) *Store {
	return &Store{
		redis:  client,
		keys:   keys,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Put caches entry for ttl. The Redis key lives for retention, which must be
// at least ttl so that expired entries can still be served stale.
func (s *Store) Put(ctx context.Context, entry Entry, ttl, retention time.Duration) error {
	if retention < ttl {
		retention = ttl
	}
	entry.URL = urlutil.NormalizePath(entry.URL)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.ExpiresAt = entry.CreatedAt.Add(ttl)

	if err := s.redis.HSetWithExpire(ctx, s.keys.PageKey(entry.URL), retention, entry.toHash()...); err != nil {
		return fmt.Errorf("failed to store page %s: %w", entry.URL, err)
	}
	return nil
}

// Lookup returns the cached entry for url, or nil when nothing is cached
func (s *Store) Lookup(ctx context.Context, url string) (*Entry, error) {
	normalized := urlutil.NormalizePath(url)
	data, err := s.redis.HGetAll(ctx, s.keys.PageKey(normalized))
	if err != nil {
		return nil, fmt.Errorf("failed to load page %s: %w", normalized, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	entry := &Entry{}
	if err := entry.fromHash(data); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", normalized, err)
	}
	return entry, nil
}

// ClearAll removes every cached page
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.Flush(ctx)
	return err
}

// Flush removes every cached page and returns how many were deleted.
// Keys written while the scan runs may survive.
func (s *Store) Flush(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.keys.PagePattern(), scanBatch)
		if err != nil {
			return deleted, fmt.Errorf("failed to scan page keys: %w", err)
		}
		n, err := s.redis.Del(ctx, keys...)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete page keys: %w", err)
		}
		deleted += n
		if next == 0 {
			break
		}
		cursor = next
	}

	s.logger.Info("Page cache cleared", zap.Int64("deleted", deleted))
	return deleted, nil
}

// ClearByURL invalidates one page. With expire the entry is kept and its
// expiry moved to now, so it can be served stale while it regenerates;
// otherwise it is deleted. A page that is not cached is not an error.
func (s *Store) ClearByURL(ctx context.Context, url string, expire bool) error {
	normalized := urlutil.NormalizePath(url)
	key := s.keys.PageKey(normalized)

	if expire {
		found, err := s.redis.HSetIfExists(ctx, key, "expires_at", s.now().Unix())
		if err != nil {
			return fmt.Errorf("failed to expire page %s: %w", normalized, err)
		}
		s.logger.Debug("Page expired",
			zap.String("url", normalized),
			zap.Bool("cached", found))
		return nil
	}

	n, err := s.redis.Del(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete page %s: %w", normalized, err)
	}
	s.logger.Debug("Page deleted",
		zap.String("url", normalized),
		zap.Bool("cached", n > 0))
	return nil
}
