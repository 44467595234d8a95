package config

import (
	"flag"
	"io"
	"strings"
)

// configFlag extracts the -c / -config value from args, ignoring every
// other argument.
func configFlag(args []string) string {
	var path string
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--c", "--config"}))
	return path
}

// parseFlags overlays cfg with command-line flags.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("otpvault", flag.ContinueOnError)

	var ignored string
	fs.StringVar(&ignored, "config", "", "path to JSON config file")
	fs.StringVar(&ignored, "c", "", "path to JSON config file (short)")

	fs.StringVar(&cfg.StorePath, "s", cfg.StorePath, "store file")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.DeviceID, "device", cfg.DeviceID, "device id used to salt the store")
	fs.DurationVar(&cfg.IdleTimeout, "idle", cfg.IdleTimeout, "auto-lock after this long without input (0 disables)")
	fs.DurationVar(&cfg.ClipboardClear, "clip", cfg.ClipboardClear, "clear the clipboard this long after a copy (0 disables)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file (default stderr)")
	fs.IntVar(&cfg.QueueSize, "q", cfg.QueueSize, "pending operation queue size")
	fs.BoolVar(&cfg.TUI, "tui", cfg.TUI, "start the full-screen interface")

	return fs.Parse(args)
}

// FilterArgs keeps only the allowed flags and their values.
//
// Supported formats:
//
//	-c conf.json
//	--config=conf.json
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}
