package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Player   PlayerConfig   `toml:"player"`
	Waveform WaveformConfig `toml:"waveform"`
	Database DatabaseConfig `toml:"database"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Source   SourceConfig   `toml:"source"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	StaticDir   string `toml:"static_dir"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// PlayerConfig tunes the shared playback engine and scrubbing
type PlayerConfig struct {
	TickIntervalMs   int     `toml:"tick_interval_ms"`
	LoadTimeout      int     `toml:"load_timeout_seconds"`
	ScrubThresholdPx float64 `toml:"scrub_threshold_px"`
}

// WaveformConfig tunes peak extraction and the waveform cache
type WaveformConfig struct {
	Bars           int     `toml:"bars"`
	Workers        int     `toml:"workers"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Stride         int     `toml:"stride"`
	FloorDB        float64 `toml:"floor_db"`
	CeilDB         float64 `toml:"ceil_db"`
	Epsilon        float64 `toml:"epsilon"`
	Persist        bool    `toml:"persist"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// CatalogConfig points at the track list rendered as rows
type CatalogConfig struct {
	Path             string   `toml:"path"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
	SupportedFormats []string `toml:"supported_formats"`
}

// SourceConfig controls how track locators are fetched
type SourceConfig struct {
	BaseDir        string   `toml:"base_dir"`
	BaseURL        string   `toml:"base_url"`
	MaxBytes       int64    `toml:"max_bytes"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	R2             R2Config `toml:"r2"`
}

// R2Config addresses an S3-compatible bucket (Cloudflare R2, MinIO). Keys are
// normally supplied through the environment.
type R2Config struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	MaxSizeMB      int    `toml:"max_size_mb"`
	MaxBackups     int    `toml:"max_backups"`
	MaxAgeDays     int    `toml:"max_age_days"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			StaticDir:   "./static",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Player: PlayerConfig{
			TickIntervalMs:   250,
			LoadTimeout:      20,
			ScrubThresholdPx: 3,
		},
		Waveform: WaveformConfig{
			Bars:           120,
			Workers:        2,
			TimeoutSeconds: 60,
			Stride:         32,
			FloorDB:        -60,
			CeilDB:         0,
			Epsilon:        1e-4,
			Persist:        true,
		},
		Database: DatabaseConfig{
			Path:          "./beatbrowser.db",
			RetentionDays: 90,
		},
		Catalog: CatalogConfig{
			Path:             "./beats.json",
			WatchForChanges:  true,
			SupportedFormats: []string{".mp3", ".wav", ".flac", ".m4a"},
		},
		Source: SourceConfig{
			BaseDir:        "./beats",
			BaseURL:        "",
			MaxBytes:       64 << 20,
			TimeoutSeconds: 30,
			R2: R2Config{
				Enabled: false,
				Region:  "auto",
				UseSSL:  true,
			},
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			MaxSizeMB:      50,
			MaxBackups:     3,
			MaxAgeDays:     28,
			RequestLogging: false,
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies environment
// overrides (a .env file in the working directory is read first, without
// replacing variables already set).
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	_ = godotenv.Load()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides secrets and deployment-specific values from the environment
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("BEATBROWSER_PORT", &c.Server.Port)
	setString("BEATBROWSER_LOG_LEVEL", &c.Logging.Level)
	setString("BEATBROWSER_CATALOG", &c.Catalog.Path)
	setString("BEATBROWSER_BASE_URL", &c.Source.BaseURL)
	setString("R2_ENDPOINT", &c.Source.R2.Endpoint)
	setString("R2_BUCKET", &c.Source.R2.Bucket)
	setString("R2_REGION", &c.Source.R2.Region)
	setString("R2_ACCESS_KEY_ID", &c.Source.R2.AccessKey)
	setString("R2_SECRET_ACCESS_KEY", &c.Source.R2.SecretKey)

	if v, ok := os.LookupEnv("R2_USE_SSL"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Source.R2.UseSSL = b
		}
	}
	if c.Source.R2.Endpoint != "" && c.Source.R2.Bucket != "" {
		c.Source.R2.Enabled = true
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Beat Browser Configuration
# Playback coordination and waveform settings for the storefront preview server.
# R2 credentials are better supplied via R2_ACCESS_KEY_ID / R2_SECRET_ACCESS_KEY.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// Validate player config
	if c.Player.TickIntervalMs < 10 {
		return fmt.Errorf("player tick interval must be at least 10ms")
	}
	if c.Player.LoadTimeout < 0 {
		return fmt.Errorf("player load timeout cannot be negative")
	}
	if c.Player.ScrubThresholdPx < 0 {
		return fmt.Errorf("scrub threshold cannot be negative")
	}

	// Validate waveform config
	if c.Waveform.Bars < 1 {
		return fmt.Errorf("waveform bars must be at least 1")
	}
	if c.Waveform.Workers < 1 {
		return fmt.Errorf("waveform workers must be at least 1")
	}
	if c.Waveform.Stride < 1 {
		return fmt.Errorf("waveform stride must be at least 1")
	}
	if c.Waveform.FloorDB >= c.Waveform.CeilDB {
		return fmt.Errorf("waveform floor_db (%v) must be below ceil_db (%v)", c.Waveform.FloorDB, c.Waveform.CeilDB)
	}
	if c.Waveform.Epsilon <= 0 {
		return fmt.Errorf("waveform epsilon must be positive")
	}

	// Validate database config
	if c.Waveform.Persist && c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty when peaks are persisted")
	}

	// Validate catalog config
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path cannot be empty")
	}
	if len(c.Catalog.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	if c.Source.R2.Enabled && (c.Source.R2.Endpoint == "" || c.Source.R2.Bucket == "") {
		return fmt.Errorf("r2 source requires endpoint and bucket")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// TickInterval returns the engine tick period
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Player.TickIntervalMs) * time.Millisecond
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Catalog.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
