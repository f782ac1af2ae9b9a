// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a logger writing to f. FormatText gives human-readable,
// colorized lines when f is a terminal; anything else gives JSON.
func New(f *os.File, format string, level slog.Leveler) *slog.Logger {
	if format == FormatText {
		return slog.New(tint.NewHandler(colorable.NewColorable(f), &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    !isatty.IsTerminal(f.Fd()),
		}))
	}
	return NewJSON(f, level)
}

// NewJSON returns a JSON logger writing to w.
func NewJSON(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Since is a duration attribute rounded for log output.
func Since(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start).Round(time.Millisecond))
}
