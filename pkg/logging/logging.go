// Package logging provides the colored console logger used across the
// fuzzer. Records render as single lines in the style
// "[INFO] message key=value", with the label colored per level.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// LevelSuccess sits between Info and Warn and renders with a green label.
// Used for successful compiles and confirmed issue reports.
const LevelSuccess = slog.Level(2)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

// New returns a logger backed by a console Handler.
func New(out io.Writer, level slog.Level, color bool) *slog.Logger {
	return slog.New(NewHandler(out, level, color))
}

// Handler is a minimal slog.Handler for human-readable console output.
type Handler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Level
	color bool
	attrs []slog.Attr
}

func NewHandler(out io.Writer, level slog.Level, color bool) *Handler {
	return &Handler{mu: &sync.Mutex{}, out: out, level: level, color: color}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(h.label(record.Level))
	b.WriteByte(' ')
	b.WriteString(record.Message)

	writeAttr := func(attr slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
		return true
	}
	for _, attr := range h.attrs {
		writeAttr(attr)
	}
	record.Attrs(writeAttr)
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup is a no-op; the fuzzer does not use attribute groups.
func (h *Handler) WithGroup(string) slog.Handler { return h }

func (h *Handler) label(level slog.Level) string {
	var text, color string
	switch {
	case level >= slog.LevelError:
		text, color = "[ERROR]", colorRed
	case level >= slog.LevelWarn:
		text, color = "[WARN]", colorYellow
	case level >= LevelSuccess:
		text, color = "[OK]", colorGreen
	case level >= slog.LevelInfo:
		text, color = "[INFO]", colorBlue
	default:
		text, color = "[DEBUG]", colorDim
	}
	if !h.color {
		return text
	}
	return color + text + colorReset
}
