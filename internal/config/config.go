// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Session source: a directory, file:// URL or http(s):// base URL.
	Source      string
	SourceToken string // Bearer token sent to HTTP sources.

	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64
	UIEnabled           bool
	MCPEnabled          bool

	// Polling.
	PollInterval time.Duration
	FetchTimeout time.Duration

	// Journal construction.
	PairCeiling time.Duration
	AgentOrder  []string // Empty means the built-in order.
	DisplayFile string   // YAML or TOML display overrides.

	// UI state persistence. Empty disables it.
	StateDB string

	// JWT settings. Without a public key auth is disabled.
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiration     time.Duration
	APIKeyHash        string // argon2id PHC string for POST /auth/token.

	// Rate limiting for /auth/token and /v1/refresh.
	RefreshRate  float64
	RefreshBurst int

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	LogLevel string
}

// AuthEnabled reports whether requests must carry a token.
func (c Config) AuthEnabled() bool {
	return c.JWTPublicKeyPath != ""
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values are reported together, each naming its variable.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		Source:            envStr("KANSOKU_SOURCE", "."),
		SourceToken:       envStr("KANSOKU_SOURCE_TOKEN", ""),
		DisplayFile:       envStr("KANSOKU_DISPLAY_FILE", ""),
		StateDB:           envStr("KANSOKU_STATE_DB", ""),
		JWTPrivateKeyPath: envStr("KANSOKU_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:  envStr("KANSOKU_JWT_PUBLIC_KEY", ""),
		APIKeyHash:        envStr("KANSOKU_API_KEY_HASH", ""),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       envStr("OTEL_SERVICE_NAME", "kansoku"),
		LogLevel:          strings.ToLower(envStr("KANSOKU_LOG_LEVEL", "info")),
		AgentOrder:        envList("KANSOKU_AGENT_ORDER"),
	}

	var err error
	cfg.Port, err = envInt("KANSOKU_PORT", 7428)
	collect(err)
	cfg.ReadTimeout, err = envDuration("KANSOKU_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("KANSOKU_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	body, err := envInt("KANSOKU_MAX_REQUEST_BODY_BYTES", 64*1024)
	collect(err)
	cfg.MaxRequestBodyBytes = int64(body)
	cfg.UIEnabled, err = envBool("KANSOKU_UI_ENABLED", true)
	collect(err)
	cfg.MCPEnabled, err = envBool("KANSOKU_MCP_ENABLED", true)
	collect(err)
	cfg.PollInterval, err = envDuration("KANSOKU_POLL_INTERVAL", 3*time.Second)
	collect(err)
	cfg.FetchTimeout, err = envDuration("KANSOKU_FETCH_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.PairCeiling, err = envDuration("KANSOKU_PAIR_CEILING", 60*time.Second)
	collect(err)
	cfg.JWTExpiration, err = envDuration("KANSOKU_JWT_EXPIRATION", 24*time.Hour)
	collect(err)
	cfg.RefreshRate, err = envFloat("KANSOKU_REFRESH_RATE", 1)
	collect(err)
	cfg.RefreshBurst, err = envInt("KANSOKU_REFRESH_BURST", 5)
	collect(err)
	cfg.OTELInsecure, err = envBool("KANSOKU_OTEL_INSECURE", false)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("KANSOKU_PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("KANSOKU_POLL_INTERVAL must be positive"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("KANSOKU_FETCH_TIMEOUT must be positive"))
	}
	if c.PairCeiling < 0 {
		errs = append(errs, errors.New("KANSOKU_PAIR_CEILING must not be negative"))
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, errors.New("KANSOKU_MAX_REQUEST_BODY_BYTES must be positive"))
	}
	if c.RefreshRate <= 0 || c.RefreshBurst <= 0 {
		errs = append(errs, errors.New("KANSOKU_REFRESH_RATE and KANSOKU_REFRESH_BURST must be positive"))
	}
	if c.JWTPrivateKeyPath != "" && c.JWTPublicKeyPath == "" {
		errs = append(errs, errors.New("KANSOKU_JWT_PRIVATE_KEY requires KANSOKU_JWT_PUBLIC_KEY"))
	}
	if c.APIKeyHash != "" && c.JWTPrivateKeyPath == "" {
		errs = append(errs, errors.New("KANSOKU_API_KEY_HASH requires KANSOKU_JWT_PRIVATE_KEY to issue tokens"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("KANSOKU_LOG_LEVEL=%q is not one of debug, info, warn, error", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
