package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv loads dotenv (when present) into the process environment and
// overlays cfg with OTPVAULT_* variables. Variables already set win over
// the file; unset variables leave cfg untouched.
func parseEnv(cfg *Config, dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}
