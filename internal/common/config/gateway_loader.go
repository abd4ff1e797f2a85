package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/configtypes"
	"github.com/edgecomet/pagepurge/internal/common/yamlutil"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultNonceTTL       = 12 * time.Hour
)

// envOverrides holds variables that are merged into the YAML values rather than replacing them
type envOverrides struct {
	AlwaysPurgeURLs []string `env:"ALWAYS_PURGE_URLS" envSeparator:","`
}

// LoadGatewayConfig loads the gateway configuration from a YAML file, then applies
// a sibling .env file and process environment on top of it.
func LoadGatewayConfig(path string, logger *zap.Logger) (*configtypes.GatewayConfig, error) {
	logger.Info("Loading gateway configuration", zap.String("path", path))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg configtypes.GatewayConfig
	if err := yamlutil.DecodeFileStrict(path, &cfg); err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), logger); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	applyGatewayDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Info("Gateway configuration loaded successfully",
		zap.String("base_url", cfg.Site.BaseURL),
		zap.String("listen", cfg.Server.Listen),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Int("always_purge_urls", len(cfg.Purge.AlwaysPurgeURLs)))

	return &cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set win over the file.
func loadDotEnv(path string, logger *zap.Logger) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	logger.Debug("Loaded environment file", zap.String("path", path))
	return nil
}

// applyEnvOverrides replaces tagged fields with environment values and appends
// ALWAYS_PURGE_URLS to the configured list
func applyEnvOverrides(cfg *configtypes.GatewayConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	var extra envOverrides
	if err := env.Parse(&extra); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	for _, u := range extra.AlwaysPurgeURLs {
		if u = strings.TrimSpace(u); u != "" {
			cfg.Purge.AlwaysPurgeURLs = append(cfg.Purge.AlwaysPurgeURLs, u)
		}
	}
	return nil
}

func applyGatewayDefaults(cfg *configtypes.GatewayConfig) {
	if cfg.Server.AdminPath == "" {
		cfg.Server.AdminPath = configtypes.DefaultAdminPath
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = configtypes.Duration(defaultRequestTimeout)
	}
	cfg.Site.BaseURL = strings.TrimRight(cfg.Site.BaseURL, "/")

	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = configtypes.DefaultCookieName
	}
	if cfg.Session.AdminCapability == "" {
		cfg.Session.AdminCapability = configtypes.DefaultAdminCapability
	}
	if cfg.Nonce.TTL == 0 {
		cfg.Nonce.TTL = configtypes.Duration(defaultNonceTTL)
	}
	if cfg.Purge.KeyPrefix == "" {
		cfg.Purge.KeyPrefix = configtypes.DefaultPageKeyPrefix
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = configtypes.DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = configtypes.DefaultMetricsNS
	}

	// If both outputs are disabled (zero values), enable console by default
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}
}
