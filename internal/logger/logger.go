// Package logger configures the global zerolog logger used by both
// webmonitor programs.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"webmonitor/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger from the log section of the config.
//
// Output goes to w; a nil writer means stderr. When pretty output is
// requested the human-readable console writer is used.
func Init(cfg config.LogConfig, w io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if w == nil {
		w = os.Stderr
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// InitFile is Init with output appended to the named file. The TUI uses
// it so log lines never reach the terminal it draws on. The caller
// closes the returned file.
func InitFile(cfg config.LogConfig, path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	// colour codes are noise in a file
	cfg.Pretty = false
	if err := Init(cfg, f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
