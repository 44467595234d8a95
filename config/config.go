package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	EnvPrefix      = "OTPVAULT_"
	DefaultDirName = ".otpvault"
	StoreFileName  = "secrets.dat"
	DotEnvFile     = ".env"
)

// Config holds runtime settings for the otpvault CLI.
//
// Units: IdleTimeout and ClipboardClear are time.Duration; zero disables
// the feature.
type Config struct {
	StorePath      string        `env:"STORE_PATH"`
	DataDir        string        `env:"DATA_DIR"`
	DeviceID       string        `env:"DEVICE_ID"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT"`
	ClipboardClear time.Duration `env:"CLIPBOARD_CLEAR"`
	LogLevel       string        `env:"LOG_LEVEL"`
	LogFile        string        `env:"LOG_FILE"`
	QueueSize      int           `env:"QUEUE_SIZE"`
	TUI            bool          `env:"TUI"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = defaultDataDir()
	c.StorePath = ""
	c.IdleTimeout = 3 * time.Minute
	c.ClipboardClear = 30 * time.Second
	c.LogLevel = "warn"
	c.QueueSize = 8
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// LoadConfig builds a Config from defaults, the JSON file, the environment
// and then args (os.Args[1:] in production).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseEnv(cfg, DotEnvFile); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish fills derived fields and rejects values no component can use.
func (c *Config) finish() error {
	if c.DataDir == "" {
		return errors.New("config: empty data dir")
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(c.DataDir, StoreFileName)
	}
	if c.IdleTimeout < 0 || c.ClipboardClear < 0 {
		return errors.New("config: negative duration")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("config: queue size %d", c.QueueSize)
	}
	return nil
}
