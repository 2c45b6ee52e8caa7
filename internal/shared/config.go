package shared

import (
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

var dotenvLoaded sync.Once

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	TMDB     TMDBConfig     `toml:"tmdb"`
	Search   SearchConfig   `toml:"search"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// APIConfig contains settings for the backend API and its request pipeline.
type APIConfig struct {
	BaseURL         string  `toml:"base_url"`
	LoginRoute      string  `toml:"login_route"`
	AccessCookie    string  `toml:"access_cookie"`
	CSRFCookie      string  `toml:"csrf_cookie"`
	CSRFHeader      string  `toml:"csrf_header"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	RateLimit       float64 `toml:"rate_limit"` // requests per second, 0 disables
	CoalesceRefresh bool    `toml:"coalesce_refresh"`
}

// Timeout returns the per-request timeout, defaulting to 15 seconds.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TMDBConfig contains The Movie Database API settings.
type TMDBConfig struct {
	BaseURL      string `toml:"base_url"`
	ImageBaseURL string `toml:"image_base_url"`
	AccessToken  string `toml:"access_token"`
	Language     string `toml:"language"`
	CacheSize    int    `toml:"cache_size"`
}

// SearchConfig contains settings for the debounced search and trending lookups.
type SearchConfig struct {
	DebounceMS      int    `toml:"debounce_ms"`
	PageSize        int    `toml:"page_size"`
	TrendingWindow  string `toml:"trending_window"`
	TrendingLimit   int    `toml:"trending_limit"`
	StudentPageSize int    `toml:"student_page_size"`
}

// Debounce returns the debounce interval for search input.
func (c SearchConfig) Debounce() time.Duration {
	if c.DebounceMS < 0 {
		return 0
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local development backend.
type ServerConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	Secret           string `toml:"secret"`
	AccessTTLSeconds int    `toml:"access_ttl_seconds"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envOverlay holds the values that may be overridden from the environment (or a .env file).
type envOverlay struct {
	APIBaseURL   string `env:"REELX_API_BASE_URL"`
	TMDBToken    string `env:"TMDB_ACCESS_TOKEN"`
	DatabasePath string `env:"REELX_DATABASE_PATH"`
	ServerSecret string `env:"REELX_SERVER_SECRET"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides config values with REELX_* / TMDB_* environment variables.
//
// A .env file in the working directory is loaded once, if present.
func ApplyEnv(config *Config) error {
	dotenvLoaded.Do(func() {
		_ = godotenv.Load()
	})

	var overlay envOverlay
	if err := env.Parse(&overlay); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if overlay.APIBaseURL != "" {
		config.API.BaseURL = overlay.APIBaseURL
	}
	if overlay.TMDBToken != "" {
		config.TMDB.AccessToken = overlay.TMDBToken
	}
	if overlay.DatabasePath != "" {
		config.Database.Path = overlay.DatabasePath
	}
	if overlay.ServerSecret != "" {
		config.Server.Secret = overlay.ServerSecret
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
