// Package config loads the shake-timer TOML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	// Client side.
	Server         string   `toml:"server"`
	Username       string   `toml:"username"`
	Broker         string   `toml:"broker"`
	SensorTopic    string   `toml:"sensor_topic"`
	Threshold      float64  `toml:"threshold"`
	Debounce       Duration `toml:"debounce"`
	FPS            int      `toml:"fps"`
	Poll           Duration `toml:"poll"`
	ButtonPin      int      `toml:"button_pin"`
	HTTP           string   `toml:"http"`
	Heartbeat      Duration `toml:"heartbeat"`
	RequestTimeout Duration `toml:"request_timeout"`

	// Reference server.
	DBPath string `toml:"db_path"`
	Listen string `toml:"listen"`
}

// Default returns the built-in configuration. home is used for db_path.
func Default(home string) *Config {
	return &Config{
		Server:      "http://localhost:8000",
		SensorTopic: "shake-timer/sensor/accel",
		Threshold:   0.5,
		Debounce:    Duration{250 * time.Millisecond},
		FPS:         60,
		Poll:        Duration{20 * time.Millisecond},
		ButtonPin:   -1,
		HTTP:        ":8080",
		Heartbeat:   Duration{15 * time.Minute},
		DBPath:      filepath.Join(home, ".config", "shake-timer", "shake-timer.db"),
		Listen:      ":8000",
	}
}

// DefaultPath returns ~/.config/shake-timer/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "shake-timer", "config.toml"), nil
}

// Load reads the config at path over the defaults. A missing file is not an
// error; an empty path means DefaultPath.
func Load(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := Default(home)

	if path == "" {
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	path = expandHome(path, home)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// expand ~ in paths
	cfg.DBPath = expandHome(cfg.DBPath, home)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would make the daemon misbehave.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server must be set")
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %v", c.Threshold)
	}
	if c.Debounce.Duration < 0 {
		return fmt.Errorf("debounce must not be negative, got %v", c.Debounce.Duration)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.Poll.Duration <= 0 {
		return fmt.Errorf("poll must be positive, got %v", c.Poll.Duration)
	}
	if c.Heartbeat.Duration < 0 || c.RequestTimeout.Duration < 0 {
		return fmt.Errorf("heartbeat and request_timeout must not be negative")
	}
	return nil
}

// FrameInterval is the time between frames while the timer runs.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
