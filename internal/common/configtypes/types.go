package configtypes

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Defaults applied by the loader when a field is left empty
const (
	DefaultAdminPath       = "/wp-admin/"
	DefaultCookieName      = "page_purge_session"
	DefaultAdminCapability = "manage_options"
	DefaultPageKeyPrefix   = "page:"
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNS       = "pagepurge"
)

// Redis key prefixes owned by the nonce and option stores. Page keys must not
// overlap them, since clearing the cache deletes every key under the page prefix.
const (
	NonceKeyPrefix  = "nonce:used:"
	OptionKeyPrefix = "option:"
)

// GatewayConfig is the root configuration of the purge gateway
type GatewayConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Site     SiteConfig     `yaml:"site"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Nonce    NonceConfig    `yaml:"nonce"`
	Purge    PurgeConfig    `yaml:"purge"`
	Internal InternalConfig `yaml:"internal"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Listen         string   `yaml:"listen"`
	AdminPath      string   `yaml:"admin_path"`      // Prefix that marks the administrative surface
	RequestTimeout Duration `yaml:"request_timeout"` // Upper bound for a single request including invalidation

	// Headers consulted in order for the caller address, e.g. X-Forwarded-For.
	// Empty means the connection address is used.
	ClientIPHeaders []string `yaml:"client_ip_headers"`
}

type SiteConfig struct {
	BaseURL string `yaml:"base_url" env:"PURGE_GATEWAY_BASE_URL"` // Home URL used for absolute redirects
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"PURGE_GATEWAY_REDIS_ADDR"`
	Password string `yaml:"password" env:"PURGE_GATEWAY_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

// SessionConfig configures how the caller's capabilities are read from the session token
type SessionConfig struct {
	Secret          string `yaml:"secret" env:"PURGE_GATEWAY_SESSION_SECRET"`
	CookieName      string `yaml:"cookie_name"`
	AdminCapability string `yaml:"admin_capability"`
}

// NonceConfig configures the anti-replay tokens attached to purge links
type NonceConfig struct {
	Secret            string   `yaml:"secret" env:"PURGE_GATEWAY_NONCE_SECRET"`
	TTL               Duration `yaml:"ttl"`
	StrictNamespace   bool     `yaml:"strict_namespace"`    // Reject tokens minted for another namespace
	RequireOnDispatch *bool    `yaml:"require_on_dispatch"` // nil = true
}

// RequireToken reports whether dispatch must verify a token
func (n NonceConfig) RequireToken() bool {
	return n.RequireOnDispatch == nil || *n.RequireOnDispatch
}

type PurgeConfig struct {
	AlwaysPurgeURLs []string `yaml:"always_purge_urls"`
	KeyPrefix       string   `yaml:"key_prefix"`
}

// InternalConfig configures the internal API used by publishers and operators
type InternalConfig struct {
	Listen  string `yaml:"listen"`
	AuthKey string `yaml:"auth_key" env:"PURGE_GATEWAY_INTERNAL_AUTH_KEY"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}
