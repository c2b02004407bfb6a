// Package config provides configuration management for the Storyblok
// devtools. Settings are layered: built-in defaults, then an optional YAML
// file, then environment variables with the SBDT_ prefix.
//
// Malformed values never abort startup; they leave the previous layer's
// value in place. A YAML file that was explicitly named but cannot be read
// is an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the devtools.
type Config struct {
	Storyblok StoryblokConfig `yaml:"storyblok"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoryblokConfig contains Content Delivery API settings.
type StoryblokConfig struct {
	Token   string        `yaml:"token"`   // Access token (never logged)
	APIURL  string        `yaml:"api_url"` // CDN base URL (default: https://api.storyblok.com)
	Version string        `yaml:"version"` // draft or published (default: draft)
	RPS     float64       `yaml:"rps"`     // Request rate limit (default: 6)
	Burst   int           `yaml:"burst"`   // Rate limiter burst (default: 3)
	Timeout time.Duration `yaml:"timeout"` // Per-request timeout (default: 30s)
}

// CacheConfig contains cache lifetimes.
type CacheConfig struct {
	TTL                 time.Duration `yaml:"ttl"`                    // Relations cache TTL (default: 24h)
	StoryListTTL        time.Duration `yaml:"story_list_ttl"`         // Story list cache TTL (default: 24h)
	WipeOnSubjectChange bool          `yaml:"wipe_on_subject_change"` // Clear relations cache when the subject changes (default: true)
}

// StorageConfig contains key-value backend configuration.
type StorageConfig struct {
	Engine         string `yaml:"engine"`          // memory, sqlite, postgres, badger (default: sqlite)
	DataPath       string `yaml:"data_path"`       // Data directory (default: ./data)
	PostgresDSN    string `yaml:"postgres_dsn"`    // Required for postgres
	MemoryCapacity int    `yaml:"memory_capacity"` // Max keys for memory (default: 256)
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6464)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"security_mode"` // development, production (default: development)
	APIToken     string `yaml:"api_token"`     // API authentication token
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format"` // text, json or auto (default: text)
}

// Defaults returns a Config populated with built-in defaults only.
func Defaults() *Config {
	return &Config{
		Storyblok: StoryblokConfig{
			APIURL:  "https://api.storyblok.com",
			Version: "draft",
			RPS:     6,
			Burst:   3,
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:                 24 * time.Hour,
			StoryListTTL:        24 * time.Hour,
			WipeOnSubjectChange: true,
		},
		Storage: StorageConfig{
			Engine:         "sqlite",
			DataPath:       "./data",
			MemoryCapacity: 256,
		},
		Server: ServerConfig{
			Port: 6464,
			Host: "127.0.0.1",
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from defaults, the YAML file named by
// SBDT_CONFIG (if any), and environment variables.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("SBDT_CONFIG"))
}

// Load is LoadConfig with an explicit YAML path. An empty path skips the
// file layer.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the
// document keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "memory", "sqlite", "badger":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: postgres engine requires SBDT_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return errors.New("config: production mode requires SBDT_API_TOKEN")
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Storyblok.Token = getEnv("SBDT_STORYBLOK_TOKEN", getEnv("STORYBLOK_ACCESS_TOKEN", c.Storyblok.Token))
	c.Storyblok.APIURL = strings.TrimRight(getEnv("SBDT_STORYBLOK_API_URL", c.Storyblok.APIURL), "/")
	c.Storyblok.Version = getEnv("SBDT_STORYBLOK_VERSION", c.Storyblok.Version)
	c.Storyblok.RPS = getEnvFloat("SBDT_STORYBLOK_RPS", c.Storyblok.RPS)
	c.Storyblok.Burst = getEnvInt("SBDT_STORYBLOK_BURST", c.Storyblok.Burst)
	c.Storyblok.Timeout = getEnvDuration("SBDT_STORYBLOK_TIMEOUT", c.Storyblok.Timeout)

	c.Cache.TTL = getEnvDuration("SBDT_CACHE_TTL", c.Cache.TTL)
	c.Cache.StoryListTTL = getEnvDuration("SBDT_STORY_LIST_TTL", c.Cache.StoryListTTL)
	c.Cache.WipeOnSubjectChange = getEnvBool("SBDT_CACHE_WIPE_ON_SUBJECT_CHANGE", c.Cache.WipeOnSubjectChange)

	c.Storage.Engine = getEnv("SBDT_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("SBDT_DATA_PATH", c.Storage.DataPath)
	c.Storage.PostgresDSN = getEnv("SBDT_POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.MemoryCapacity = getEnvInt("SBDT_MEMORY_CAPACITY", c.Storage.MemoryCapacity)

	c.Server.Port = getEnvInt("SBDT_PORT", c.Server.Port)
	c.Server.Host = getEnv("SBDT_HOST", c.Server.Host)

	c.Security.SecurityMode = getEnv("SBDT_SECURITY_MODE", c.Security.SecurityMode)
	c.Security.APIToken = getEnv("SBDT_API_TOKEN", c.Security.APIToken)

	c.Logging.Level = getEnv("SBDT_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("SBDT_LOG_FORMAT", c.Logging.Format)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "24h").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
