package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerInlineAndBlockAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, &Options{Level: slog.LevelInfo}))

	log.Info("Job launched", "kind", "TEXT_TO_VIDEO", "prompt", "a cat\non a skateboard")
	log.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "INF Job launched kind=TEXT_TO_VIDEO\n") {
		t.Fatalf("missing inline line:\n%s", out)
	}
	if !strings.Contains(out, "  | a cat\n") || !strings.Contains(out, "  | on a skateboard\n") {
		t.Fatalf("prompt not rendered as block:\n%s", out)
	}
	if strings.Contains(out, "prompt=") || strings.Contains(out, "hidden") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestHandlerTagsIdentityAndJob(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil)).With("identity", 100)

	log.Info("Credit refunded", "job", "3f2a9c1e-77aa-4b1e-9c55-0123456789ab", "balance", 2)
	log.Info("Credits added", "balance", 5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "INF [100 3f2a9c1e] Credit refunded balance=2") {
		t.Errorf("job line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "INF [100] Credits added balance=5") {
		t.Errorf("identity line = %q", lines[1])
	}
}

func TestHandlerTruncatesLongBlocks(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil))

	log.Warn("Job failed", "reason", strings.Repeat("line\n", 20)+"last")

	out := buf.String()
	if got := strings.Count(out, "| line"); got != maxBlockLines {
		t.Errorf("block lines = %d, want %d", got, maxBlockLines)
	}
	if strings.Contains(out, "last") || !strings.Contains(out, "| …") {
		t.Errorf("block not truncated:\n%s", out)
	}
}

func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, nil)).With("channel", "discord").WithGroup("job")

	log.Info("Settled", "id", "j1")

	out := buf.String()
	if !strings.Contains(out, "channel=discord") || !strings.Contains(out, "job.id=j1") {
		t.Fatalf("got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFanoutRespectsLevels(t *testing.T) {
	var debug, warn bytes.Buffer
	log := slog.New(fanout{
		NewHandler(&debug, &Options{Level: slog.LevelDebug}),
		NewHandler(&warn, &Options{Level: slog.LevelWarn}),
	})

	log.Debug("poll")
	log.Warn("refund")

	if !strings.Contains(debug.String(), "poll") || !strings.Contains(debug.String(), "refund") {
		t.Fatalf("debug handler = %q", debug.String())
	}
	if strings.Contains(warn.String(), "poll") || !strings.Contains(warn.String(), "refund") {
		t.Fatalf("warn handler = %q", warn.String())
	}
}
