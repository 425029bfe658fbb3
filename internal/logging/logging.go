// Package logging provides the slog setup shared by the CLI and the server.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
)

// CLIHandler writes one line per record: "[group] message: k=v k=v".
// Errors are red and everything else green when color is enabled.
type CLIHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  slog.Leveler
	color  bool
	prefix string
	attrs  []slog.Attr
}

// NewCLIHandler returns a handler writing to w. Color is enabled when w is
// a terminal.
func NewCLIHandler(w io.Writer, level slog.Leveler) *CLIHandler {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return &CLIHandler{
		mu:     &sync.Mutex{},
		writer: w,
		level:  level,
		color:  color,
	}
}

// WithColor forces color on or off.
func (h *CLIHandler) WithColor(on bool) *CLIHandler {
	c := h.clone()
	c.color = on
	return c
}

func (h *CLIHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CLIHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	if h.prefix != "" {
		msg = "[" + h.prefix + "] " + msg
	}

	attrs := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})
	if len(attrs) > 0 {
		msg = msg + ": " + strings.Join(attrs, " ")
	}

	if h.color {
		if r.Level >= slog.LevelError {
			msg = colorRed + msg + colorReset
		} else {
			msg = colorGreen + msg + colorReset
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.writer, msg)
	return err
}

func (h *CLIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)
	return c
}

// WithGroup nests name under the current prefix, so "scheduler" inside
// "daemon" prints as [daemon.scheduler].
func (h *CLIHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if c.prefix != "" {
		name = c.prefix + "." + name
	}
	c.prefix = name
	return c
}

func (h *CLIHandler) clone() *CLIHandler {
	return &CLIHandler{
		mu:     h.mu,
		writer: h.writer,
		level:  h.level,
		color:  h.color,
		prefix: h.prefix,
		attrs:  append([]slog.Attr(nil), h.attrs...),
	}
}

// New returns a CLI logger on stderr at the given level.
func New(level string) *slog.Logger {
	return slog.New(NewCLIHandler(os.Stderr, ParseLevel(level)))
}

// SetDefault installs a CLI logger as the slog default and returns it.
func SetDefault(level string) *slog.Logger {
	l := New(level)
	slog.SetDefault(l)
	return l
}

// ParseLevel converts a string log level to slog.Level.
// Defaults to slog.LevelInfo for unrecognized strings.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
