package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration accepts "3m"-style strings or integer nanoseconds in JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		d.Duration = time.Duration(x)
	case string:
		p, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		d.Duration = p
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

// jsonConfig is the file DTO. Pointers tell absent keys from zero values.
type jsonConfig struct {
	StorePath      *string   `json:"store_path"`
	DataDir        *string   `json:"data_dir"`
	DeviceID       *string   `json:"device_id"`
	IdleTimeout    *Duration `json:"idle_timeout"`
	ClipboardClear *Duration `json:"clipboard_clear"`
	LogLevel       *string   `json:"log_level"`
	LogFile        *string   `json:"log_file"`
	QueueSize      *int      `json:"queue_size"`
	TUI            *bool     `json:"tui"`
}

// parseJSON overlays cfg with the file named by -c or -config in args, if
// any.
func parseJSON(cfg *Config, args []string) error {
	path := configFlag(args)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}

func (jc *jsonConfig) apply(cfg *Config) {
	setIf(&cfg.StorePath, jc.StorePath)
	setIf(&cfg.DataDir, jc.DataDir)
	setIf(&cfg.DeviceID, jc.DeviceID)
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.LogFile, jc.LogFile)
	setIf(&cfg.QueueSize, jc.QueueSize)
	setIf(&cfg.TUI, jc.TUI)
	if jc.IdleTimeout != nil {
		cfg.IdleTimeout = jc.IdleTimeout.Duration
	}
	if jc.ClipboardClear != nil {
		cfg.ClipboardClear = jc.ClipboardClear.Duration
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
