// Package logging builds the process logger: a console handler plus an
// optional rotating file sink.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

const logFileName = "blogd.log"

// Config controls the logger sinks.
type Config struct {
	// Format selects the console encoding, "json" or "text". Empty means
	// JSON.
	Format string `yaml:"format"`
	// File, when enabled, adds a size-rotated file sink.
	File FileConfig `yaml:"file"`
}

// FileConfig holds the rotating-file sink settings.
type FileConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Validate validates the logging configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.In(FormatJSON, FormatText)),
	); err != nil {
		return err
	}
	if c.File.Enabled && c.File.Dir == "" {
		return fmt.Errorf("logging: file sink enabled but dir is empty")
	}
	return nil
}

// New builds a slog.Logger writing to stdout and, when configured, to a
// rotating file under cfg.File.Dir. The returned close function releases the
// file sink; it is a no-op for console-only loggers.
func New(level slog.Level, cfg Config) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: level}

	console := newHandler(os.Stdout, cfg.Format, opts)
	if !cfg.File.Enabled {
		return slog.New(console), func() error { return nil }, nil
	}

	if err := os.MkdirAll(cfg.File.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.File.Dir, logFileName),
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	}
	// Rotated files stay JSON regardless of the console format so they
	// remain machine readable.
	fileHandler := slog.NewJSONHandler(file, opts)

	return slog.New(newMultiHandler(console, fileHandler)), file.Close, nil
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == FormatText {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
