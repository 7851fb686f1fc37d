package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source kinds understood by the loader.
const (
	SourceDatabase = "database"
	SourceHTTP     = "http"
)

// Config holds all configuration for the application.
type Config struct {
	App      App      `mapstructure:"app"`
	Feed     Feed     `mapstructure:"feed"`
	Loader   Loader   `mapstructure:"loader"`
	View     View     `mapstructure:"view"`
	Source   Source   `mapstructure:"source"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Catalog  Catalog  `mapstructure:"catalog"`
	Database Database `mapstructure:"database"`
}

// App identifies the running instance in status responses.
type App struct {
	Name string `mapstructure:"name"`
}

// Feed holds the configuration for the simulated price feed.
type Feed struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// Loader holds the configuration for the cached token query.
type Loader struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	StaleTime       time.Duration `mapstructure:"stale_time"`
	// Timeout bounds one fetch; zero disables it.
	Timeout time.Duration `mapstructure:"timeout"`
	// Latency is the artificial delay of the database source.
	Latency time.Duration `mapstructure:"latency"`
}

// View holds the defaults of the projected token view.
type View struct {
	HighlightWindow time.Duration `mapstructure:"highlight_window"`
	DefaultCategory string        `mapstructure:"default_category"`
	DefaultSortKey  string        `mapstructure:"default_sort_key"`
}

// Source selects where the loader fetches tokens from.
type Source struct {
	Kind           string        `mapstructure:"kind"`
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Catalog holds the configuration for the standalone catalog server.
type Catalog struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the token catalog database.
type Database struct {
	DSN  string `mapstructure:"dsn"`
	Seed bool   `mapstructure:"seed"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File enables a rotating log file next to the console output.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LoadConfig reads config.yml from path, layered over defaults and PULSE_* environment variables.
// A missing file is not an error.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("pulse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "token-pulse")

	v.SetDefault("feed.tick_interval", 5*time.Second)

	v.SetDefault("loader.refresh_interval", 30*time.Second)
	v.SetDefault("loader.stale_time", 0)
	v.SetDefault("loader.latency", 800*time.Millisecond)
	v.SetDefault("loader.timeout", 15*time.Second)

	v.SetDefault("view.highlight_window", time.Second)
	v.SetDefault("view.default_category", "new")
	v.SetDefault("view.default_sort_key", "price")

	v.SetDefault("source.kind", SourceDatabase)
	v.SetDefault("source.url", "http://localhost:8090")
	v.SetDefault("source.timeout", 10*time.Second)
	v.SetDefault("source.rate_limit", 5)       // requests per second
	v.SetDefault("source.rate_limit_burst", 2) // burst size

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("server.port", 8080)
	v.SetDefault("catalog.port", 8090)

	v.SetDefault("database.dsn", "file:tokens.db?cache=shared")
	v.SetDefault("database.seed", true)
}

// Validate checks the values that the runtime cannot recover from.
func (c *Config) Validate() error {
	if c.Feed.TickInterval <= 0 {
		return fmt.Errorf("feed.tick_interval must be positive, got %s", c.Feed.TickInterval)
	}
	if c.Loader.RefreshInterval <= 0 {
		return fmt.Errorf("loader.refresh_interval must be positive, got %s", c.Loader.RefreshInterval)
	}
	if c.Loader.Latency < 0 || c.Loader.StaleTime < 0 || c.Loader.Timeout < 0 {
		return fmt.Errorf("loader durations must not be negative")
	}
	if c.View.HighlightWindow <= 0 {
		return fmt.Errorf("view.highlight_window must be positive, got %s", c.View.HighlightWindow)
	}

	switch c.View.DefaultCategory {
	case "new", "final", "migrated":
	default:
		return fmt.Errorf("unknown view.default_category %q", c.View.DefaultCategory)
	}
	switch c.View.DefaultSortKey {
	case "price", "change24h", "volume", "marketCap":
	default:
		return fmt.Errorf("unknown view.default_sort_key %q", c.View.DefaultSortKey)
	}

	switch c.Source.Kind {
	case SourceDatabase:
	case SourceHTTP:
		if !strings.HasPrefix(c.Source.URL, "http://") && !strings.HasPrefix(c.Source.URL, "https://") {
			return fmt.Errorf("invalid source.url: %s", c.Source.URL)
		}
		if c.Source.RateLimit <= 0 || c.Source.RateLimitBurst <= 0 {
			return fmt.Errorf("source rate limit and burst must be positive")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}

	return nil
}
