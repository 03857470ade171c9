// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`
	AutoMigrate bool   `koanf:"auto_migrate"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"` // Accepted for validation during rotation

	// Redis (page cache + rate limiting). Optional; in-memory stores are used when unset.
	RedisURL string `koanf:"redis_url"`

	// Object storage (S3-compatible, e.g. Cloudflare R2)
	StorageBucket          string `koanf:"storage_bucket"`
	StorageAccessKeyID     string `koanf:"storage_access_key_id"`
	StorageSecretAccessKey string `koanf:"storage_secret_access_key"`
	StorageEndpoint        string `koanf:"storage_endpoint"`
	StoragePublicBaseURL   string `koanf:"storage_public_base_url"`

	// Upload ceilings
	EventUploadMaxMB     int `koanf:"event_upload_max_mb"`     // Default: 5MB
	CommunityUploadMaxMB int `koanf:"community_upload_max_mb"` // Default: 10MB

	// Rendered page cache
	PageCacheTTLSeconds int `koanf:"page_cache_ttl_seconds"`

	// Dashboard origins allowed to call the API from a browser.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL            = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret              = errors.New("JWT_SECRET is required")
	ErrMissingStorageBucket          = errors.New("STORAGE_BUCKET is required")
	ErrMissingStorageAccessKeyID     = errors.New("STORAGE_ACCESS_KEY_ID is required")
	ErrMissingStorageSecretAccessKey = errors.New("STORAGE_SECRET_ACCESS_KEY is required")
	ErrMissingStorageEndpoint        = errors.New("STORAGE_ENDPOINT is required")
	ErrMissingStoragePublicBaseURL   = errors.New("STORAGE_PUBLIC_BASE_URL is required")
	ErrInvalidPort                   = errors.New("PORT must be a valid integer")
	ErrInvalidInteger                = errors.New("value must be a valid integer")
	ErrInvalidUploadCeiling          = errors.New("upload ceilings must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultPort                 = 8080
	DefaultEnv                  = "development"
	DefaultEventUploadMaxMB     = 5
	DefaultCommunityUploadMaxMB = 10
	DefaultPageCacheTTLSeconds  = 300
	DefaultTracingExporter      = "otlp-http"
	DefaultTracingSamplingRate  = 0.1
)

// Load merges an optional YAML file with the environment, environment first.
// Every problem found is returned so operators can fix them in one pass; a
// file that cannot be read is the only early exit.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}
	src := &source{k: k}

	cfg := &Config{
		// PORT is what most platforms inject; AFISHA_PORT wins when both are set.
		Port:                   src.port("port", "AFISHA_PORT", "PORT"),
		Env:                    src.str("env", DefaultEnv, "AFISHA_ENV", "ENV", "GO_ENV"),
		DatabaseURL:            src.str("database_url", "", "DATABASE_URL"),
		AutoMigrate:            src.flag("auto_migrate", "AUTO_MIGRATE"),
		JWTSecret:              src.str("jwt_secret", "", "JWT_SECRET"),
		JWTPreviousSecret:      src.str("jwt_previous_secret", "", "JWT_PREVIOUS_SECRET"),
		RedisURL:               src.str("redis_url", "", "REDIS_URL"),
		StorageBucket:          src.str("storage_bucket", "", "STORAGE_BUCKET"),
		StorageAccessKeyID:     src.str("storage_access_key_id", "", "STORAGE_ACCESS_KEY_ID"),
		StorageSecretAccessKey: src.str("storage_secret_access_key", "", "STORAGE_SECRET_ACCESS_KEY"),
		StorageEndpoint:        src.str("storage_endpoint", "", "STORAGE_ENDPOINT"),
		StoragePublicBaseURL:   src.str("storage_public_base_url", "", "STORAGE_PUBLIC_BASE_URL"),
		EventUploadMaxMB:       src.integer("event_upload_max_mb", DefaultEventUploadMaxMB, "EVENT_UPLOAD_MAX_MB"),
		CommunityUploadMaxMB:   src.integer("community_upload_max_mb", DefaultCommunityUploadMaxMB, "COMMUNITY_UPLOAD_MAX_MB"),
		PageCacheTTLSeconds:    src.integer("page_cache_ttl_seconds", DefaultPageCacheTTLSeconds, "PAGE_CACHE_TTL_SECONDS"),
		CORSAllowedOrigins:     src.list("cors_allowed_origins", "CORS_ALLOWED_ORIGINS"),
		TracingEnabled:         src.flag("tracing_enabled", "TRACING_ENABLED"),
		TracingExporter:        src.str("tracing_exporter", DefaultTracingExporter, "TRACING_EXPORTER"),
		TracingEndpoint:        src.str("tracing_endpoint", "", "TRACING_ENDPOINT"),
		TracingSamplingRate:    src.float("tracing_sampling_rate", DefaultTracingSamplingRate, "TRACING_SAMPLING_RATE"),
	}

	return cfg, append(src.errs, cfg.Validate()...)
}

// source resolves one setting at a time: the first non-empty env var from
// the list, then the file value, then the default. Parse failures are
// collected in errs and leave the zero value.
type source struct {
	k    *koanf.Koanf
	errs []error
}

func (s *source) env(keys []string) (key, val string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return key, val
		}
	}
	return "", ""
}

func (s *source) str(koanfKey, def string, envKeys ...string) string {
	if _, v := s.env(envKeys); v != "" {
		return v
	}
	if v := s.k.String(koanfKey); v != "" {
		return v
	}
	return def
}

// flag reads a boolean. Unrecognised env values leave the file value in place.
func (s *source) flag(koanfKey string, envKeys ...string) bool {
	_, v := s.env(envKeys)
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return s.k.Bool(koanfKey)
}

func (s *source) integer(koanfKey string, def int, envKeys ...string) int {
	if key, v := s.env(envKeys); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.errs = append(s.errs, fmt.Errorf("%s: %w", key, ErrInvalidInteger))
		}
		return n
	}
	if n := s.k.Int(koanfKey); n != 0 {
		return n
	}
	return def
}

func (s *source) port(koanfKey string, envKeys ...string) int {
	if key, v := s.env(envKeys); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			s.errs = append(s.errs, fmt.Errorf("%s=%q: %w", key, v, ErrInvalidPort))
			return 0
		}
		return n
	}
	if n := s.k.Int(koanfKey); n != 0 {
		return n
	}
	return DefaultPort
}

func (s *source) float(koanfKey string, def float64, envKeys ...string) float64 {
	if key, v := s.env(envKeys); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.errs = append(s.errs, fmt.Errorf("%s must be a valid float: %w", key, err))
		}
		return f
	}
	if f := s.k.Float64(koanfKey); f != 0 {
		return f
	}
	return def
}

// list reads a comma-separated env var or a YAML string list. Blank items are dropped.
func (s *source) list(koanfKey string, envKeys ...string) []string {
	_, v := s.env(envKeys)
	if v == "" {
		return s.k.Strings(koanfKey)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// StorageConfigured reports whether any object storage value is set.
func (c *Config) StorageConfigured() bool {
	return c.StorageBucket != "" || c.StorageAccessKeyID != "" || c.StorageSecretAccessKey != "" ||
		c.StorageEndpoint != "" || c.StoragePublicBaseURL != ""
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.EventUploadMaxMB <= 0 || c.CommunityUploadMaxMB <= 0 {
		errs = append(errs, ErrInvalidUploadCeiling)
	}

	// Storage is optional in development. Once any value is set, all of them are required.
	if c.StorageConfigured() {
		if c.StorageBucket == "" {
			errs = append(errs, ErrMissingStorageBucket)
		}
		if c.StorageAccessKeyID == "" {
			errs = append(errs, ErrMissingStorageAccessKeyID)
		}
		if c.StorageSecretAccessKey == "" {
			errs = append(errs, ErrMissingStorageSecretAccessKey)
		}
		if c.StorageEndpoint == "" {
			errs = append(errs, ErrMissingStorageEndpoint)
		}
		if c.StoragePublicBaseURL == "" {
			errs = append(errs, ErrMissingStoragePublicBaseURL)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                      fmt.Sprintf("%d", c.Port),
		"env":                       c.Env,
		"database_url":              maskDatabaseURL(c.DatabaseURL),
		"auto_migrate":              fmt.Sprintf("%t", c.AutoMigrate),
		"jwt_secret":                maskSecret(c.JWTSecret),
		"jwt_previous_secret":       maskSecret(c.JWTPreviousSecret),
		"redis_url":                 maskDatabaseURL(c.RedisURL),
		"storage_bucket":            c.StorageBucket,
		"storage_access_key_id":     maskSecret(c.StorageAccessKeyID),
		"storage_secret_access_key": maskSecret(c.StorageSecretAccessKey),
		"storage_endpoint":          c.StorageEndpoint,
		"storage_public_base_url":   c.StoragePublicBaseURL,
		"event_upload_max_mb":       fmt.Sprintf("%d", c.EventUploadMaxMB),
		"community_upload_max_mb":   fmt.Sprintf("%d", c.CommunityUploadMaxMB),
		"page_cache_ttl_seconds":    fmt.Sprintf("%d", c.PageCacheTTLSeconds),
		"tracing_enabled":           fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":          c.TracingExporter,
		"cors_allowed_origins":      strings.Join(c.CORSAllowedOrigins, ","),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL hides the password in a connection URL (postgres://, redis://).
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return maskSecret(s)
	}
	if pw, ok := u.User.Password(); !ok || pw == "" {
		return s
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}
