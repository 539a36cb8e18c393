package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
)

// ColorHandler writes one line per record for a terminal watching a cleanup run.
//
// Messages are red for errors and yellow for warnings. Info messages that
// announce a deletion are green. Independently of the level, the tallies a
// bulk run reports are highlighted: a non-zero deleted count in green, a
// non-zero failed count in red, and the run id in cyan so it can be copied
// into `zepsync history --run`.
type ColorHandler struct {
	w      io.Writer
	level  slog.Leveler
	prefix string // pre-rendered handler attributes
	group  string // dotted group prefix for record attributes
	mu     *sync.Mutex
}

// NewColorHandler creates a new colored handler that writes directly to w
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &ColorHandler{w: w, level: level, mu: &sync.Mutex{}}
}

// Enabled implements slog.Handler
func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler
func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf strings.Builder

	if !r.Time.IsZero() {
		buf.WriteString(r.Time.Format(time.DateTime))
		buf.WriteByte(' ')
	}
	buf.WriteString(r.Level.String())
	buf.WriteByte(' ')
	writeColored(&buf, messageColor(r), r.Message)

	buf.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.group, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

// WithAttrs implements slog.Handler
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var buf strings.Builder
	buf.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&buf, h.group, a)
	}
	clone := *h
	clone.prefix = buf.String()
	return &clone
}

// WithGroup implements slog.Handler
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.group + name + "."
	return &clone
}

func messageColor(r slog.Record) string {
	switch {
	case r.Level >= slog.LevelError:
		return colorRed
	case r.Level >= slog.LevelWarn:
		return colorYellow
	case r.Level >= slog.LevelInfo && isDeletion(r.Message):
		return colorGreen
	}
	return ""
}

// appendAttr writes " key=value", flattening groups and coloring the
// attributes a deletion run reports.
func appendAttr(buf *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		prefix := group
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(buf, prefix, ga)
		}
		return
	}

	buf.WriteByte(' ')
	buf.WriteString(group)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	writeColored(buf, attrColor(a), formatValue(a.Value))
}

func attrColor(a slog.Attr) string {
	switch a.Key {
	case "run_id":
		return colorCyan
	case "deleted":
		if positive(a.Value) {
			return colorGreen
		}
	case "failed":
		if positive(a.Value) {
			return colorRed
		}
	}
	return ""
}

func positive(v slog.Value) bool {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64() > 0
	case slog.KindUint64:
		return v.Uint64() > 0
	}
	return false
}

// formatValue quotes strings that would break the key=value layout.
func formatValue(v slog.Value) string {
	s := v.String()
	if strings.ContainsAny(s, " =\"\t\n") || (s == "" && v.Kind() == slog.KindString) {
		return strconv.Quote(s)
	}
	return s
}

func writeColored(buf *strings.Builder, color, s string) {
	if color == "" {
		buf.WriteString(s)
		return
	}
	buf.WriteString(color)
	buf.WriteString(s)
	buf.WriteString(colorReset)
}

// isDeletion reports whether msg announces a successful deletion.
func isDeletion(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "deleted") && !strings.Contains(lower, "failed")
}
