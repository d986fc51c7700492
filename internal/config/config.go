// ABOUTME: Configuration loading and parsing for support-gateway
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, duration parsing and env overrides

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete support-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	Realtime RealtimeConfig `yaml:"realtime" toml:"realtime"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr" env:"SUPPORT_GATEWAY_HTTP_ADDR"`
	// AllowedOrigins restricts WebSocket upgrades and cross-origin API calls by
	// Origin header. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins" env:"SUPPORT_GATEWAY_ALLOWED_ORIGINS" envSeparator:","`

	ShutdownTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path" env:"SUPPORT_GATEWAY_DB_PATH"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret" env:"SUPPORT_GATEWAY_JWT_SECRET"`
	// DevTokens enables GET /users/token/{id}, which issues a token for any
	// active user without a password. Never enable in production.
	DevTokens bool `yaml:"dev_tokens" toml:"dev_tokens" env:"SUPPORT_GATEWAY_DEV_TOKENS"`

	TokenTTL    time.Duration `yaml:"-" toml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl" toml:"token_ttl"`
}

// RealtimeConfig tunes the WebSocket transport and the retry cache
type RealtimeConfig struct {
	MaxMessageBytes int64 `yaml:"max_message_bytes" toml:"max_message_bytes"`
	MaxMessageChars int   `yaml:"max_message_chars" toml:"max_message_chars"`
	SendBuffer      int   `yaml:"send_buffer" toml:"send_buffer"`
	DedupeSize      int   `yaml:"dedupe_size" toml:"dedupe_size"`

	HandlerTimeout time.Duration `yaml:"-" toml:"-"`
	PingInterval   time.Duration `yaml:"-" toml:"-"`
	PongWait       time.Duration `yaml:"-" toml:"-"`
	WriteTimeout   time.Duration `yaml:"-" toml:"-"`
	DedupeTTL      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	HandlerTimeoutRaw string `yaml:"handler_timeout" toml:"handler_timeout"`
	PingIntervalRaw   string `yaml:"ping_interval" toml:"ping_interval"`
	PongWaitRaw       string `yaml:"pong_wait" toml:"pong_wait"`
	WriteTimeoutRaw   string `yaml:"write_timeout" toml:"write_timeout"`
	DedupeTTLRaw      string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"SUPPORT_GATEWAY_LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"SUPPORT_GATEWAY_LOG_FORMAT"`
}

// Default returns a Config with every optional field filled in.
// Required fields (database path, jwt secret) are left empty.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        "localhost:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 30 * 24 * time.Hour,
		},
		Realtime: RealtimeConfig{
			MaxMessageBytes: 64 * 1024,
			MaxMessageChars: 4000,
			SendBuffer:      64,
			DedupeSize:      10000,
			HandlerTimeout:  10 * time.Second,
			PingInterval:    30 * time.Second,
			PongWait:        60 * time.Second,
			WriteTimeout:    10 * time.Second,
			DedupeTTL:       5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the config file location.
// Priority: SUPPORT_GATEWAY_CONFIG > XDG_CONFIG_HOME/support-gateway/gateway.yaml > ~/.config/support-gateway/gateway.yaml
func Path() string {
	if envPath := os.Getenv("SUPPORT_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "support-gateway", "gateway.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then
// SUPPORT_GATEWAY_* variables override individual fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	rt := c.Realtime
	if rt.MaxMessageBytes <= 0 {
		return fmt.Errorf("realtime.max_message_bytes must be positive")
	}
	if rt.SendBuffer <= 0 {
		return fmt.Errorf("realtime.send_buffer must be positive")
	}
	if rt.HandlerTimeout <= 0 || rt.WriteTimeout <= 0 || rt.PingInterval <= 0 {
		return fmt.Errorf("realtime timeouts must be positive")
	}
	if rt.PongWait <= rt.PingInterval {
		return fmt.Errorf("realtime.pong_wait (%s) must exceed realtime.ping_interval (%s)", rt.PongWait, rt.PingInterval)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
// Empty strings keep the defaults.
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"realtime.handler_timeout", cfg.Realtime.HandlerTimeoutRaw, &cfg.Realtime.HandlerTimeout},
		{"realtime.ping_interval", cfg.Realtime.PingIntervalRaw, &cfg.Realtime.PingInterval},
		{"realtime.pong_wait", cfg.Realtime.PongWaitRaw, &cfg.Realtime.PongWait},
		{"realtime.write_timeout", cfg.Realtime.WriteTimeoutRaw, &cfg.Realtime.WriteTimeout},
		{"realtime.dedupe_ttl", cfg.Realtime.DedupeTTLRaw, &cfg.Realtime.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
