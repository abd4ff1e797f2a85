package configtypes

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the gateway configuration for missing or malformed values.
// It runs after defaults have been applied.
func (c *GatewayConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if err := ValidateListenAddress(c.Server.Listen); err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	if !strings.HasPrefix(c.Server.AdminPath, "/") || !strings.HasSuffix(c.Server.AdminPath, "/") {
		return fmt.Errorf("server.admin_path must start and end with '/', got %q", c.Server.AdminPath)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must be >= 0, got %v", c.Server.RequestTimeout)
	}

	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be specified")
	}
	base, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return fmt.Errorf("site.base_url is invalid: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return fmt.Errorf("site.base_url must use http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return fmt.Errorf("site.base_url must include a host")
	}
	if base.RawQuery != "" || base.Fragment != "" {
		return fmt.Errorf("site.base_url must not carry a query or fragment")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be specified")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret must be specified")
	}
	if c.Nonce.Secret == "" {
		return fmt.Errorf("nonce.secret must be specified")
	}
	if c.Nonce.Secret == c.Session.Secret {
		return fmt.Errorf("nonce.secret must differ from session.secret")
	}
	if c.Nonce.TTL <= 0 {
		return fmt.Errorf("nonce.ttl must be > 0, got %v", c.Nonce.TTL)
	}

	if err := ValidateKeyPrefix(c.Purge.KeyPrefix); err != nil {
		return fmt.Errorf("purge.key_prefix: %w", err)
	}

	if c.Internal.Listen != "" {
		if err := ValidateListenAddress(c.Internal.Listen); err != nil {
			return fmt.Errorf("internal.listen: %w", err)
		}
		if c.Internal.AuthKey == "" {
			return fmt.Errorf("internal.auth_key must be specified when internal.listen is set")
		}
	}

	if c.Metrics.Enabled {
		if err := ValidateListenAddress(c.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
		if c.Metrics.Listen == c.Server.Listen || c.Metrics.Listen == c.Internal.Listen {
			return fmt.Errorf("metrics.listen must use a separate port")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
		}
	}

	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("log.file.path must be specified when file logging is enabled")
	}

	return nil
}

// ValidateKeyPrefix checks a page key prefix. It must be non-empty, free of
// SCAN glob characters and must not overlap a reserved prefix in either direction.
func ValidateKeyPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("must not be empty")
	}
	if strings.ContainsAny(prefix, `*?[]\`) {
		return fmt.Errorf("must not contain glob characters, got %q", prefix)
	}
	for _, reserved := range []string{NonceKeyPrefix, OptionKeyPrefix} {
		if strings.HasPrefix(reserved, prefix) || strings.HasPrefix(prefix, reserved) {
			return fmt.Errorf("%q overlaps reserved prefix %q", prefix, reserved)
		}
	}
	return nil
}
