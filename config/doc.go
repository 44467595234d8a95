// Package config loads runtime settings for the otpvault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. A .env file in the working directory, then OTPVAULT_* environment
//     variables.
//  4. Command-line flags.
//
// Later sources override earlier ones.
//
// Supported flags
//
//	-s string       store file (default <data dir>/secrets.dat)
//	-d string       data directory (default ~/.otpvault)
//	-device string  device id used to salt the store
//	-idle duration  auto-lock after this long without input
//	-clip duration  clear the clipboard this long after a copy
//	-l string       log level: debug, info, warn, error
//	-log string     log file (default stderr)
//	-q int          pending operation queue size
//	-tui            start the full-screen interface
//
// # JSON schema
//
// Durations are strings like "3m" or integer nanoseconds:
//
//	{
//	  "store_path": "/home/me/.otpvault/secrets.dat",
//	  "idle_timeout": "3m",
//	  "clipboard_clear": "30s",
//	  "log_level": "info"
//	}
package config
