// Package config loads pmscope settings from a YAML file with environment
// overrides.
//
// Precedence, lowest first: built-in defaults, the YAML file, PMSCOPE_*
// environment variables, then command-line flags (applied by the CLI).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pmscope/internal/wire"
)

// Config is the top-level pmscope configuration.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Registration RegistrationConfig `yaml:"registration"`
	Server       ServerConfig       `yaml:"server"`
	Browser      BrowserConfig      `yaml:"browser"`
	Pages        []PageConfig       `yaml:"pages"`
	Log          LogConfig          `yaml:"log"`
}

// DatabaseConfig locates the capture log.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"PMSCOPE_DB"`
}

// RegistrationConfig controls handshake correlation.
type RegistrationConfig struct {
	Enabled bool   `yaml:"enabled" env:"PMSCOPE_REGISTRATION"`
	Marker  string `yaml:"marker"`
}

// ServerConfig controls the HTTP ingest and inspection server.
type ServerConfig struct {
	Listen       string        `yaml:"listen"        env:"PMSCOPE_LISTEN"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BrowserConfig controls the Chrome instance used by capture.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"             env:"PMSCOPE_BROWSER_REMOTE"`
	Headless          bool          `yaml:"headless"           env:"PMSCOPE_BROWSER_HEADLESS"`
	Stealth           bool          `yaml:"stealth"            env:"PMSCOPE_BROWSER_STEALTH"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`

	// Settle is how long capture keeps listening after a page loads.
	Settle time.Duration `yaml:"settle"`
}

// PageConfig is one page to capture.
type PageConfig struct {
	URL   string `yaml:"url"`
	Label string `yaml:"label"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"  env:"PMSCOPE_LOG_LEVEL"`
	Format string `yaml:"format" env:"PMSCOPE_LOG_FORMAT"` // text | json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "pmscope.db"},
		Registration: RegistrationConfig{
			Enabled: true,
			Marker:  wire.DefaultRegistrationMarker,
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:7420",
			WriteTimeout: 10 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			Settle:            2 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if it exists) over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode rejects unknown keys so a typo does not silently fall back to a
// default.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Registration.Marker == "" {
		return fmt.Errorf("config: registration.marker must not be empty")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("config: server.listen must not be empty")
	}
	for i, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: pages[%d].url must not be empty", i)
		}
	}
	return nil
}

// NewLogger builds the process logger writing to w. verbose forces Debug.
func (l LogConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("config: log.level %q: %w", s, err)
	}
	return level, nil
}
