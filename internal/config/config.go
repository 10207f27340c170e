// Package config reads SAFE's environment-derived defaults once at
// startup into an immutable Config, threaded down the pipeline rather
// than re-read per component (SPEC_FULL.md §4.I).
package config

import "github.com/xyproto/env/v2"

// Config is SAFE's resolved runtime configuration. Command-line flags
// (-v) always take precedence over the environment defaults captured
// here; see SPEC_FULL.md §8's "Config override" property.
type Config struct {
	// LogDir is where the optional verbose debug log (safe.log, see
	// internal/diagnostics) is written. Defaults to "logs", matching
	// spec.md §6's example paths.
	LogDir string
	// Verbose enables per-function throw/catch table output and the
	// optional debug log files, independent of the CLI's -v flag.
	Verbose bool
	// NoMmap forces the object reader down the buffered-read path even
	// when mmap is available, for environments where mmap is
	// unavailable or undesirable (tmpfs-backed CI sandboxes, for
	// example).
	NoMmap bool
}

// Load reads SAFE_LOG_DIR, SAFE_VERBOSE, and SAFE_NO_MMAP from the
// environment, falling back to defaults for anything unset.
func Load() Config {
	return Config{
		LogDir:  env.Str("SAFE_LOG_DIR", "logs"),
		Verbose: env.Bool("SAFE_VERBOSE"),
		NoMmap:  env.Bool("SAFE_NO_MMAP"),
	}
}
