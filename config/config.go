package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

//go:embed cerelog.toml
var defaultConfigData []byte

// Config is the entire TOML configuration structure.
type Config struct {
	Port         string   `toml:"port"`
	Baud         int      `toml:"baud"`
	TimeoutScale float64  `toml:"timeout_scale"`
	BufferFrames int      `toml:"buffer_frames"`
	Generation   string   `toml:"generation"`
	LogEvery     int      `toml:"log_every"`
	Channels     Channels `toml:"channels"`
}

// Channels is the channel-layout descriptor: where each decoded value
// lands in a sample row.
type Channels struct {
	NumRows   int   `toml:"num_rows"`
	EEG       []int `toml:"eeg"`
	Timestamp int   `toml:"timestamp"`
	Marker    int   `toml:"marker"`
}

// configPath determines the config file path based on the operating system
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		// Use AppData directory for Windows
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "cerelog")
	default:
		// Linux/macOS: use home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".cerelog"), nil
}

// Load reads and validates the configuration file. If the config file
// doesn't exist, it is created from the embedded default first.
func Load() (Config, error) {
	var conf Config

	path, err := configPath()
	if err != nil {
		return conf, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Create parent directory if needed (for Windows)
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return conf, fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
		if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
			return conf, fmt.Errorf("failed to create default config file at %s: %w", path, err)
		}
	}

	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return conf, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
	}

	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return conf, nil
}

// Parse decodes and validates configuration from raw TOML bytes.
func Parse(data []byte) (Config, error) {
	var conf Config
	if err := toml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

// Validate checks every field a session depends on. Channel-layout
// index range checks belong to the decoder; only structural presence
// is enforced here.
func (c Config) Validate() error {
	switch c.Baud {
	case 115200, 230400, 460800, 921600:
	default:
		return fmt.Errorf("baud %d is not a supported streaming rate", c.Baud)
	}
	if c.TimeoutScale <= 0 {
		return fmt.Errorf("timeout_scale %g must be positive", c.TimeoutScale)
	}
	if c.BufferFrames < 2 {
		return fmt.Errorf("buffer_frames %d must be at least 2", c.BufferFrames)
	}
	if c.Generation != "v1" && c.Generation != "v2" {
		return fmt.Errorf("generation %q must be \"v1\" or \"v2\"", c.Generation)
	}
	if c.LogEvery <= 0 {
		return fmt.Errorf("log_every %d must be positive", c.LogEvery)
	}
	if c.Channels.NumRows <= 0 {
		return fmt.Errorf("channels.num_rows %d must be positive", c.Channels.NumRows)
	}
	if len(c.Channels.EEG) == 0 {
		return fmt.Errorf("channels.eeg list is missing or empty")
	}
	return nil
}
