// Package config handles the optional ~/.codemux/config.yaml file and
// websocket endpoint resolution.
//
// Everything in the file has a working default; flags override file
// values, which override defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codemux/cli/internal/grid"
	"github.com/codemux/cli/internal/transport"
)

const (
	// DefaultHost is used when neither flag nor config names a server.
	DefaultHost = "localhost"

	// DefaultPort is the codemux server's default listen port.
	DefaultPort = 8765
)

// Config is the ~/.codemux/config.yaml file.
type Config struct {
	// Server locates the codemux server.
	Server ServerConfig `yaml:"server,omitempty"`

	// Reconnect tunes the transport's retry behavior.
	Reconnect ReconnectConfig `yaml:"reconnect,omitempty"`

	// Theme overrides viewer colors. All fields are hex strings.
	Theme ThemeConfig `yaml:"theme,omitempty"`
}

// ServerConfig locates the codemux server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	TLS  bool   `yaml:"tls,omitempty"`
}

// ReconnectConfig tunes retry behavior. Zero values fall back to the
// transport defaults.
type ReconnectConfig struct {
	MaxAttempts int `yaml:"max_attempts,omitempty"`
	BaseDelayMs int `yaml:"base_delay_ms,omitempty"`
	MaxDelayMs  int `yaml:"max_delay_ms,omitempty"`
}

// ThemeConfig overrides viewer colors with hex strings ("#1e1e2e").
// ANSI lists up to 16 colors, normal 0..7 then bright 8..15.
type ThemeConfig struct {
	Background string   `yaml:"background,omitempty"`
	Foreground string   `yaml:"foreground,omitempty"`
	Cursor     string   `yaml:"cursor,omitempty"`
	ANSI       []string `yaml:"ansi,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
	}
}

// Path returns the config file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".codemux", "config.yaml"), nil
}

// Load reads the config file, returning defaults when it does not
// exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a config file from an explicit path. A missing file is
// not an error; defaults are returned.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	return cfg, nil
}

// TransportConfig merges the reconnect section onto the transport
// defaults.
func (c *Config) TransportConfig() transport.Config {
	tc := transport.DefaultConfig()
	if c.Reconnect.MaxAttempts > 0 {
		tc.MaxAttempts = c.Reconnect.MaxAttempts
	}
	if c.Reconnect.BaseDelayMs > 0 {
		tc.BaseDelay = time.Duration(c.Reconnect.BaseDelayMs) * time.Millisecond
	}
	if c.Reconnect.MaxDelayMs > 0 {
		tc.MaxDelay = time.Duration(c.Reconnect.MaxDelayMs) * time.Millisecond
	}
	return tc
}

// BuildTheme merges the theme section onto the default theme. Invalid
// hex values are reported rather than silently skipped.
func (c *Config) BuildTheme() (*grid.Theme, error) {
	theme := grid.DefaultTheme()
	set := func(dst *grid.RGBColor, hex, field string) error {
		if hex == "" {
			return nil
		}
		color, err := grid.ParseHex(hex)
		if err != nil {
			return fmt.Errorf("theme.%s: %w", field, err)
		}
		*dst = color
		return nil
	}
	if err := set(&theme.Background, c.Theme.Background, "background"); err != nil {
		return nil, err
	}
	if err := set(&theme.Foreground, c.Theme.Foreground, "foreground"); err != nil {
		return nil, err
	}
	if err := set(&theme.CursorColor, c.Theme.Cursor, "cursor"); err != nil {
		return nil, err
	}
	if len(c.Theme.ANSI) > 16 {
		return nil, fmt.Errorf("theme.ansi: %d colors, want at most 16", len(c.Theme.ANSI))
	}
	for i, hex := range c.Theme.ANSI {
		if err := set(&theme.ANSI[i], hex, fmt.Sprintf("ansi[%d]", i)); err != nil {
			return nil, err
		}
	}
	return theme, nil
}
