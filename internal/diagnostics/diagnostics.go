// Package diagnostics builds SAFE's structured logger: always to stderr,
// and additionally fanned out to an optional debug log file under the
// configured log directory when verbose mode is on (SPEC_FULL.md §4.H).
// Warnings from every downstream component (truncated action chains,
// missing callgraph referents, unresolved call-graph edges) flow through
// this logger rather than failing their stage (spec.md §7).
package diagnostics

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// New builds the process-wide logger. verbose enables debug-level
// messages and, when logDir is non-empty, a second handler writing
// "safe.log" under logDir alongside stderr output. The returned closer
// must be called once the run completes to flush the log file; it is a
// no-op when no file was opened.
func New(verbose bool, logDir string) (*slog.Logger, func() error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if !verbose || logDir == "" {
		return slog.New(stderrHandler), func() error { return nil }
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		// Logging setup must never abort the run: fall back to stderr
		// only, and say why.
		logger := slog.New(stderrHandler)
		logger.Warn("diagnostics: could not create log directory, file logging disabled",
			slog.String("dir", logDir), slog.Any("error", err))
		return logger, func() error { return nil }
	}

	f, err := os.Create(filepath.Join(logDir, "safe.log"))
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Warn("diagnostics: could not open log file, file logging disabled",
			slog.String("dir", logDir), slog.Any("error", err))
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	fanout := slogmulti.Fanout(stderrHandler, fileHandler)

	return slog.New(fanout), f.Close
}

// Discard returns a logger that drops everything, for tests and contexts
// that need a *slog.Logger without caring about its output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
