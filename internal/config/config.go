// Package config loads radiolens settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no explicit config path is given and it exists.
const DefaultFile = "radiolens.yaml"

// Validation modes for model replies.
const (
	ValidationLoose  = "loose"
	ValidationStrict = "strict"
)

// Config holds all runtime settings.
type Config struct {
	APIKey             string        `yaml:"api_key"`
	Model              string        `yaml:"model"`
	BaseURL            string        `yaml:"base_url"`
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	Validation         string        `yaml:"validation"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	AnalysisTimeout    time.Duration `yaml:"analysis_timeout"`
	MaxUploadBytes     int64         `yaml:"max_upload_bytes"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	CORSOrigin         string        `yaml:"cors_origin"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	Auth               AuthConfig    `yaml:"auth"`
}

// AuthConfig enables bearer-token verification when Domain is set.
type AuthConfig struct {
	Domain   string `yaml:"domain"`
	Audience string `yaml:"audience"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Model:      "gemini-2.5-flash",
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		Host:       "127.0.0.1",
		Port:       "8080",
		Validation: ValidationLoose,
		SessionTTL: time.Hour,
		LogLevel:   "info",
		LogFormat:  "json",
	}
}

// Load builds the configuration. An explicit path must exist; the default
// file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// API_KEY is accepted for compatibility with the hosted front end.
	c.APIKey = getEnvOrDefault("GOOGLE_API_KEY", getEnvOrDefault("API_KEY", c.APIKey))
	c.Model = getEnvOrDefault("GEMINI_MODEL", c.Model)
	c.BaseURL = getEnvOrDefault("GEMINI_BASE_URL", c.BaseURL)
	c.Host = getEnvOrDefault("HOST", c.Host)
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.Validation = getEnvOrDefault("VALIDATION", c.Validation)
	c.RateLimitPerMinute = int(parseIntOrDefault("RATE_LIMIT_PER_MINUTE", int64(c.RateLimitPerMinute)))
	c.AnalysisTimeout = parseDurationOrDefault("ANALYSIS_TIMEOUT", c.AnalysisTimeout)
	c.MaxUploadBytes = parseIntOrDefault("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.SessionTTL = parseDurationOrDefault("SESSION_TTL", c.SessionTTL)
	c.CORSOrigin = getEnvOrDefault("CORS_ORIGIN", c.CORSOrigin)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.Auth.Domain = getEnvOrDefault("AUTH_DOMAIN", c.Auth.Domain)
	c.Auth.Audience = getEnvOrDefault("AUTH_AUDIENCE", c.Auth.Audience)
}

// Validate checks value ranges. The API key is not checked here: the model
// client refuses to be constructed without one.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port: %q", c.Port)
	}
	switch c.Validation {
	case ValidationLoose, ValidationStrict:
	default:
		return fmt.Errorf("invalid validation mode %q (want %s or %s)", c.Validation, ValidationLoose, ValidationStrict)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must be >= 0 (got %d)", c.RateLimitPerMinute)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("max_upload_bytes must be >= 0 (got %d)", c.MaxUploadBytes)
	}
	if c.AnalysisTimeout < 0 || c.SessionTTL < 0 {
		return fmt.Errorf("durations must be >= 0 (got analysis_timeout=%s, session_ttl=%s)", c.AnalysisTimeout, c.SessionTTL)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// StrictValidation reports whether model replies get range checks.
func (c *Config) StrictValidation() bool {
	return c.Validation == ValidationStrict
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
