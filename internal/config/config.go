// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultDatabasePath              = "./data/utadex.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultAPIBaseURL                = "https://holodex.net/"
	defaultMusicBaseURL              = "https://music.holodex.net/"
	defaultHTTPTimeout               = 15 * time.Second
	defaultBrowseTTL                 = time.Hour
	defaultBrowseStaleTTL            = 24 * time.Hour
	defaultSearchTTL                 = 30 * time.Minute
	defaultSearchStaleTTL            = 12 * time.Hour
	defaultDiscoveryTTL              = time.Hour
	defaultStreamURLTTL              = 45 * time.Minute
	defaultStreamURLCapacity         = 50
	defaultSyncInterval              = 30 * time.Minute
	defaultSweepInterval             = time.Hour
	defaultScrapeRatePerSecond       = 2.0
	defaultAudioQuality              = "best"
	envPrefix                        = "UTADEX"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Logging   LoggingConfig
	API       APIConfig
	Cache     CacheConfig
	Sync      SyncConfig
	Extractor ExtractorConfig
	Audio     AudioConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// APIConfig holds first-party API client configuration
type APIConfig struct {
	BaseURL      string
	MusicBaseURL string
	APIKey       string
	JWT          string
	Timeout      time.Duration
}

// CacheConfig holds TTLs for the list caches and the stream URL cache
type CacheConfig struct {
	BrowseTTL         time.Duration
	BrowseStaleTTL    time.Duration
	SearchTTL         time.Duration
	SearchStaleTTL    time.Duration
	DiscoveryTTL      time.Duration
	StreamURLTTL      time.Duration
	StreamURLCapacity int
}

// SyncConfig holds background synchronization configuration
type SyncConfig struct {
	Interval      time.Duration
	SweepInterval time.Duration
}

// ExtractorConfig holds scraping adapter configuration
type ExtractorConfig struct {
	RatePerSecond float64
}

// AudioConfig holds playback stream preferences
type AudioConfig struct {
	Quality string // "saver", "standard" or "best"
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/utadex")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("api.baseurl", defaultAPIBaseURL)
	v.SetDefault("api.musicbaseurl", defaultMusicBaseURL)
	v.SetDefault("api.timeout", defaultHTTPTimeout)

	v.SetDefault("cache.browsettl", defaultBrowseTTL)
	v.SetDefault("cache.browsestalettl", defaultBrowseStaleTTL)
	v.SetDefault("cache.searchttl", defaultSearchTTL)
	v.SetDefault("cache.searchstalettl", defaultSearchStaleTTL)
	v.SetDefault("cache.discoveryttl", defaultDiscoveryTTL)
	v.SetDefault("cache.streamurlttl", defaultStreamURLTTL)
	v.SetDefault("cache.streamurlcapacity", defaultStreamURLCapacity)

	v.SetDefault("sync.interval", defaultSyncInterval)
	v.SetDefault("sync.sweepinterval", defaultSweepInterval)

	v.SetDefault("extractor.ratepersecond", defaultScrapeRatePerSecond)

	v.SetDefault("audio.quality", defaultAudioQuality)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.API.BaseURL == "" || c.API.MusicBaseURL == "" {
		return errors.New("api base URLs must not be empty")
	}

	validQualities := []string{"saver", "standard", "best"}
	if !contains(validQualities, c.Audio.Quality) {
		return fmt.Errorf("invalid audio quality: %s (must be one of: %s)", c.Audio.Quality, strings.Join(validQualities, ", "))
	}

	if c.Cache.StreamURLCapacity <= 0 {
		return fmt.Errorf("invalid stream URL cache capacity: %d (must be > 0)", c.Cache.StreamURLCapacity)
	}

	if c.Extractor.RatePerSecond <= 0 {
		return fmt.Errorf("invalid extractor rate: %f (must be > 0)", c.Extractor.RatePerSecond)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
