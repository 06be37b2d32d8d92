// Package logging builds the application's *slog.Logger from settings:
// text or JSON records, written to the console or to a size-rotated file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/natefinch/lumberjack"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	OutputConsole = "console"
	OutputFile    = "file"
)

// Settings controls where and how log records are written. MaxSizeMB,
// MaxBackups and MaxAgeDays only apply to file output.
type Settings struct {
	Level      string `yaml:"level"       validate:"oneof=debug info warn error"`
	Format     string `yaml:"format"      validate:"oneof=text json"`
	Output     string `yaml:"output"      validate:"oneof=console file"`
	File       string `yaml:"file"        validate:"required_if=Output file"`
	MaxSizeMB  int    `yaml:"max_size"    validate:"min=1,max=1024"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0,max=100"`
	MaxAgeDays int    `yaml:"max_age"     validate:"min=0,max=3650"`
}

// DefaultSettings logs info and above as text on stdout.
func DefaultSettings() Settings {
	return Settings{
		Level:      "info",
		Format:     FormatText,
		Output:     OutputConsole,
		File:       "data/logs/snipshare.log",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}
}

var validate = validator.New()

// Validate checks the settings and names the first bad field.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("logging: invalid %s %q (%s %s)", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// ParseLevel maps debug|info|warn|error (case-insensitive, "warning" is
// accepted) to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", level)
}

// New builds a logger from s. The returned Closer flushes and closes the
// log file; for console output it is a no-op.
func New(s Settings) (*slog.Logger, io.Closer, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if s.Output == OutputFile {
		lj := &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    s.MaxSizeMB,
			MaxBackups: s.MaxBackups,
			MaxAge:     s.MaxAgeDays,
			Compress:   true,
		}
		w, closer = lj, lj
	}

	logger, err := NewWithWriter(w, s)
	if err != nil {
		return nil, nil, err
	}
	return logger, closer, nil
}

// NewWithWriter builds a logger that writes to w, ignoring s.Output.
func NewWithWriter(w io.Writer, s Settings) (*slog.Logger, error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch s.Format {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case FormatText, "":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", s.Format)
	}
	return slog.New(h), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
