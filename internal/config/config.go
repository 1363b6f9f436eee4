package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "PANEL"

// ConfigFileEnv names the variable pointing at an optional YAML file.
const ConfigFileEnv = "PANEL_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Admin      AdminConfig      `yaml:"admin" envconfig:"ADMIN"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	Discord    DiscordConfig    `yaml:"discord" envconfig:"DISCORD"`
	BuiltByBit BuiltByBitConfig `yaml:"builtbybit" envconfig:"BUILTBYBIT"`
	Geo        GeoConfig        `yaml:"geo" envconfig:"GEO"`
	Notifier   NotifierConfig   `yaml:"notifier" envconfig:"NOTIFIER"`
	License    LicenseConfig    `yaml:"license" envconfig:"LICENSE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" default:""`
	Port            int           `yaml:"port" envconfig:"PORT" default:"3000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig limits /api/validate per client IP.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"5"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"20"`
}

// AdminConfig holds the single dashboard account.
type AdminConfig struct {
	Username     string        `yaml:"username" envconfig:"USERNAME" default:"admin"`
	PasswordHash string        `yaml:"password_hash" envconfig:"PASSWORD_HASH"`
	JWTSecret    string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL" default:"12h"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/panel.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// StorageConfig locates the JSON documents.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
}

// TelemetryConfig controls tracing and metrics export.
type TelemetryConfig struct {
	ServiceName     string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"licensepanel"`
	ServiceVersion  string  `yaml:"service_version" envconfig:"SERVICE_VERSION" default:"dev"`
	Environment     string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"production"`
	TracingEnabled  bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled  bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	TraceSampleRate float64 `yaml:"trace_sample_rate" envconfig:"TRACE_SAMPLE_RATE" default:"1.0"`
}

// DiscordConfig configures the slash command bot.
type DiscordConfig struct {
	Enabled          bool          `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Token            string        `yaml:"token" envconfig:"TOKEN"`
	GuildID          string        `yaml:"guild_id" envconfig:"GUILD_ID"`
	AdminRoleID      string        `yaml:"admin_role_id" envconfig:"ADMIN_ROLE_ID"`
	CommandTimeout   time.Duration `yaml:"command_timeout" envconfig:"COMMAND_TIMEOUT" default:"10s"`
	ProfileCacheTTL  time.Duration `yaml:"profile_cache_ttl" envconfig:"PROFILE_CACHE_TTL" default:"1h"`
	ProfileCacheSize int           `yaml:"profile_cache_size" envconfig:"PROFILE_CACHE_SIZE" default:"1000"`
}

// BuiltByBitConfig configures marketplace webhooks and account linking.
type BuiltByBitConfig struct {
	Secret       string        `yaml:"secret" envconfig:"SECRET"`
	BaseURL      string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://builtbybit.com"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"10s"`
	LinkTTL      time.Duration `yaml:"link_ttl" envconfig:"LINK_TTL" default:"5m"`
	Breaker      BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
}

// GeoConfig configures IP geolocation of validation attempts.
type GeoConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" default:"http://ip-api.com/json"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"2s"`
	Breaker BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
}

// NotifierConfig configures Discord webhook delivery.
type NotifierConfig struct {
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"5s"`
	Username string        `yaml:"username" envconfig:"USERNAME" default:"License Panel"`
	Breaker  BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
}

// LicenseConfig shapes generated license keys.
type LicenseConfig struct {
	KeyPrefix string `yaml:"key_prefix" envconfig:"KEY_PREFIX"`
}

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests" envconfig:"MAX_REQUESTS" default:"1"`
	Interval            time.Duration `yaml:"interval" envconfig:"INTERVAL" default:"60s"`
	Timeout             time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" envconfig:"CONSECUTIVE_FAILURES" default:"5"`
}

// Load reads configuration in order of precedence: explicitly set
// environment variables, then the YAML file, then defaults. A .env file in
// the working directory is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := getConfigFilePath(); path != "" {
		fileConfig := cfg
		if err := loadFromFile(path, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(fileConfig, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile decodes a YAML file over dst. Keys absent from the file keep
// their current values.
func loadFromFile(filePath string, dst *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", filePath, err)
	}
	return nil
}

// mergeConfigs starts from the file configuration and restores every field
// whose environment variable was explicitly set.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := fileConfig
	overlayEnv(reflect.ValueOf(&merged).Elem(), reflect.ValueOf(envConfig), EnvPrefix)
	return merged
}

// overlayEnv walks dst alongside src and copies leaf fields that have an
// environment variable set. Keys are built the way envconfig builds them.
func overlayEnv(dst, src reflect.Value, prefix string) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("envconfig")
		if tag == "" {
			tag = field.Name
		}
		key := strings.ToUpper(prefix + "_" + tag)
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			overlayEnv(dst.Field(i), src.Field(i), key)
			continue
		}
		if _, ok := os.LookupEnv(key); ok {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// getConfigFilePath returns PANEL_CONFIG_FILE or the first config.yaml found
// in the usual locations.
func getConfigFilePath() string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}
	for _, location := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "console", "stdout":
	case "file", "both":
		if c.Logging.FilePath == "" {
			return fmt.Errorf("logging file_path is required for output %q", c.Logging.Output)
		}
	default:
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.RPS <= 0 {
			return fmt.Errorf("rate limit rps must be positive")
		}
		if c.Security.RateLimit.Burst < 1 {
			return fmt.Errorf("rate limit burst must be at least 1")
		}
	}

	if c.Admin.PasswordHash != "" && len(c.Admin.JWTSecret) < 32 {
		return fmt.Errorf("admin jwt_secret must be at least 32 bytes when a password is set")
	}

	if c.Telemetry.TraceSampleRate < 0 || c.Telemetry.TraceSampleRate > 1 {
		return fmt.Errorf("trace sample rate must be within [0, 1]")
	}

	if c.Discord.Enabled && (c.Discord.Token == "" || c.Discord.GuildID == "") {
		return fmt.Errorf("discord token and guild_id are required when the bot is enabled")
	}
	return nil
}

// AdminEnabled reports whether dashboard login is configured.
func (c *Config) AdminEnabled() bool {
	return c.Admin.PasswordHash != "" && c.Admin.JWTSecret != ""
}

// Default returns default configuration
func Default() *Config {
	breaker := BreakerConfig{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{Enabled: true, RPS: 5, Burst: 20},
		},
		Admin: AdminConfig{Username: "admin", TokenTTL: 12 * time.Hour},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/panel.log",
		},
		Storage: StorageConfig{DataDir: "data"},
		Telemetry: TelemetryConfig{
			ServiceName:     "licensepanel",
			ServiceVersion:  "dev",
			Environment:     "production",
			MetricsEnabled:  true,
			TraceSampleRate: 1.0,
		},
		Discord: DiscordConfig{
			CommandTimeout:   10 * time.Second,
			ProfileCacheTTL:  time.Hour,
			ProfileCacheSize: 1000,
		},
		BuiltByBit: BuiltByBitConfig{
			BaseURL:      "https://builtbybit.com",
			FetchTimeout: 10 * time.Second,
			LinkTTL:      5 * time.Minute,
			Breaker:      breaker,
		},
		Geo: GeoConfig{
			Enabled: true,
			BaseURL: "http://ip-api.com/json",
			Timeout: 2 * time.Second,
			Breaker: breaker,
		},
		Notifier: NotifierConfig{
			Timeout:  5 * time.Second,
			Username: "License Panel",
			Breaker:  breaker,
		},
	}
}
