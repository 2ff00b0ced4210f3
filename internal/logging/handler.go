package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiBlue   = "\033[34m"

	padding = "  " // aligns with the TUI header

	// Job IDs are UUIDs; the first block is enough to follow one in a log.
	shortJobLen = 8
	// Longer prompts are cut so a single request cannot flood the log.
	maxBlockLines = 6
)

// Block attributes are free text, often multi-line, and are rendered
// indented below the log line.
var blockKeys = map[string]bool{
	"prompt": true,
	"reason": true,
}

// Options configures a Handler.
type Options struct {
	Level slog.Level
	Color bool
}

// Handler is a compact slog handler for the bot. The identity and job a
// record concerns are pulled out of the attributes into a tag after the
// level, so lines about one user or one job line up:
//
//	12:00:01 INF [100 3f2a9c1e] Job launched kind=TEXT_TO_VIDEO
type Handler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Level
	color bool
	group string
	attrs []slog.Attr
}

// NewHandler creates a new log handler.
func NewHandler(w io.Writer, opts *Options) *Handler {
	if opts == nil {
		opts = &Options{}
	}
	return &Handler{
		w:     w,
		mu:    &sync.Mutex{},
		level: opts.Level,
		color: opts.Color,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// record is one log entry split into its rendered parts.
type record struct {
	identity string
	job      string
	inline   strings.Builder
	blocks   []string
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var rec record
	for _, a := range h.attrs {
		h.collect(&rec, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = joinGroup(h.group, a.Key)
		h.collect(&rec, a)
		return true
	})

	var sb strings.Builder
	sb.WriteString(padding)
	if h.color {
		sb.WriteString(ansiGray + r.Time.Format("15:04:05") + ansiReset)
		sb.WriteString(" " + colorLevel(r.Level))
	} else {
		sb.WriteString(r.Time.Format("2006-01-02 15:04:05"))
		sb.WriteString(" " + levelLabel(r.Level))
	}
	if tag := rec.tag(); tag != "" {
		sb.WriteString(" " + h.paint(ansiBlue, tag))
	}
	sb.WriteString(" " + r.Message)
	sb.WriteString(rec.inline.String())
	sb.WriteString("\n")

	for _, text := range rec.blocks {
		h.writeBlock(&sb, text)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *Handler) collect(rec *record, a slog.Attr) {
	switch {
	case a.Key == "identity":
		rec.identity = a.Value.String()
	case a.Key == "job":
		rec.job = shortJob(a.Value.String())
	case blockKeys[a.Key]:
		if s := strings.TrimSpace(a.Value.String()); s != "" {
			rec.blocks = append(rec.blocks, s)
		}
	default:
		rec.inline.WriteString(" " + h.paint(ansiGray, a.Key) + "=" + a.Value.String())
	}
}

func (rec *record) tag() string {
	switch {
	case rec.identity != "" && rec.job != "":
		return "[" + rec.identity + " " + rec.job + "]"
	case rec.identity != "":
		return "[" + rec.identity + "]"
	case rec.job != "":
		return "[" + rec.job + "]"
	}
	return ""
}

func (h *Handler) writeBlock(sb *strings.Builder, text string) {
	bar := "| "
	if h.color {
		bar = ansiGray + "│" + ansiReset + " "
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxBlockLines {
		lines = append(lines[:maxBlockLines], "…")
	}
	for _, line := range lines {
		sb.WriteString(padding + "  " + bar + line + "\n")
	}
}

func (h *Handler) paint(color, s string) string {
	if !h.color {
		return s
	}
	return color + s + ansiReset
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(combined, h.attrs)
	for _, a := range attrs {
		a.Key = joinGroup(h.group, a.Key)
		combined = append(combined, a)
	}
	g := *h
	g.attrs = combined
	return &g
}

// WithGroup prefixes subsequent attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	g := *h
	g.group = joinGroup(h.group, name)
	return &g
}

func shortJob(id string) string {
	if len(id) > shortJobLen {
		return id[:shortJobLen]
	}
	return id
}

func joinGroup(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERR"
	case level >= slog.LevelWarn:
		return "WRN"
	case level >= slog.LevelInfo:
		return "INF"
	default:
		return "DBG"
	}
}

func colorLevel(level slog.Level) string {
	label := levelLabel(level)
	switch {
	case level >= slog.LevelError:
		return ansiRed + label + ansiReset
	case level >= slog.LevelWarn:
		return ansiYellow + label + ansiReset
	case level >= slog.LevelInfo:
		return ansiCyan + label + ansiReset
	default:
		return ansiGray + label + ansiReset
	}
}
