package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if cfg.GetAddress() != "0.0.0.0:8080" {
		t.Errorf("Unexpected address %s", cfg.GetAddress())
	}
	if cfg.TickInterval() != 250*time.Millisecond {
		t.Errorf("Unexpected tick interval %v", cfg.TickInterval())
	}
	if !cfg.IsFormatSupported(".wav") || cfg.IsFormatSupported(".exe") {
		t.Error("Unexpected supported formats")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }, "port"},
		{"tick too fast", func(c *Config) { c.Player.TickIntervalMs = 1 }, "tick interval"},
		{"no bars", func(c *Config) { c.Waveform.Bars = 0 }, "bars"},
		{"floor above ceil", func(c *Config) { c.Waveform.FloorDB = 5 }, "floor_db"},
		{"zero epsilon", func(c *Config) { c.Waveform.Epsilon = 0 }, "epsilon"},
		{"persist without path", func(c *Config) { c.Database.Path = "" }, "database path"},
		{"r2 without bucket", func(c *Config) {
			c.Source.R2.Enabled = true
			c.Source.R2.Endpoint = "example.r2.cloudflarestorage.com"
		}, "r2"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Waveform.Bars != 120 {
		t.Errorf("Expected default bars, got %d", cfg.Waveform.Bars)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected default file to be written: %v", err)
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Waveform.Bars = 64
	cfg.Player.ScrubThresholdPx = 5
	cfg.Catalog.Path = "/srv/beats.json"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Waveform.Bars != 64 || loaded.Player.ScrubThresholdPx != 5 || loaded.Catalog.Path != "/srv/beats.json" {
		t.Errorf("Unexpected loaded config: %+v", loaded)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("R2_ENDPOINT", "acct.r2.cloudflarestorage.com")
	t.Setenv("R2_BUCKET", "beats")
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_USE_SSL", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	r2 := cfg.Source.R2
	if !r2.Enabled || r2.Bucket != "beats" || r2.AccessKey != "key" || r2.SecretKey != "secret" || r2.UseSSL {
		t.Errorf("Unexpected r2 config: %+v", r2)
	}
}

func TestLoadConfigRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\nport = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error")
	}
}
