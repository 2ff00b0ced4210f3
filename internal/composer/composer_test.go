package composer

import (
	"strings"
	"testing"

	"github.com/joebot/clipbot/internal/bus"
)

func actions(kb bus.Keyboard) []string {
	var out []string
	for _, row := range kb {
		for _, b := range row {
			out = append(out, b.Action)
		}
	}
	return out
}

func TestClassifyReason(t *testing.T) {
	tests := []struct {
		reason string
		want   Category
	}{
		{"Prohibited content detected", CategoryPolicyBlocked},
		{"contains HARASSMENT", CategoryPolicyBlocked},
		{"bullying", CategoryPolicyBlocked},
		{"We cannot animate photorealistic people", CategoryRealPerson},
		{"internal error", CategoryUnavailable},
		{"", CategoryUnavailable},
	}
	for _, tt := range tests {
		if got := ClassifyReason(tt.reason); got != tt.want {
			t.Errorf("ClassifyReason(%q) = %v, want %v", tt.reason, got, tt.want)
		}
	}
}

func TestPackageKeyboardHidesGift(t *testing.T) {
	c := New(nil)
	got := actions(c.Welcome().Keyboard)
	want := []string{ActionPackage1, ActionPackage5, ActionPackage50}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("package actions = %v, want %v", got, want)
	}
	if p, ok := c.Package(ActionPackageGift); !ok || p.Credits != 1 || !p.Gift {
		t.Fatalf("gift package = %+v, %v", p, ok)
	}
}

func TestFormatKeyboardMapping(t *testing.T) {
	kb := New(nil).FormatSelection().Keyboard
	if kb[0][0].Action != ActionFormat16x9 || !strings.Contains(kb[0][0].Label, "Landscape") {
		t.Fatalf("first button = %+v", kb[0][0])
	}
	if kb[0][1].Action != ActionFormat9x16 || !strings.Contains(kb[0][1].Label, "Portrait") {
		t.Fatalf("second button = %+v", kb[0][1])
	}
	if kb[1][0].Action != ActionFormatBack {
		t.Fatalf("back button = %+v", kb[1][0])
	}
}

func TestBalanceNoteAndQuote(t *testing.T) {
	c := New(nil, WithExamplesURL("https://example.org/tips"))
	m := c.GenerationStarted(4)
	if !strings.Contains(m.Text, "Generations left: 4") || !strings.Contains(m.Text, "https://example.org/tips") {
		t.Fatalf("text = %q", m.Text)
	}

	ready := c.VideoReady("a cat\non a roof")
	if !strings.Contains(ready.Text, "> a cat\n> on a roof") {
		t.Fatalf("text = %q", ready.Text)
	}
}

func TestFailureMessagesDiffer(t *testing.T) {
	c := New(nil, WithSupportContact("@helpdesk"))
	seen := map[string]Category{}
	for _, cat := range []Category{CategoryUnavailable, CategoryPolicyBlocked, CategoryRealPerson, CategoryRetryLater} {
		text := c.Failure(cat).Text
		if prev, dup := seen[text]; dup {
			t.Fatalf("%v and %v share text", prev, cat)
		}
		seen[text] = cat
	}
	if !strings.Contains(c.Failure(CategoryUnavailable).Text, "@helpdesk") {
		t.Fatal("support contact missing")
	}
}

func TestMainMenuDefaultText(t *testing.T) {
	m := New(nil).MainMenu("")
	if m.Text != "Main menu" {
		t.Fatalf("text = %q", m.Text)
	}
	if got := actions(m.Keyboard); len(got) != 3 || got[2] != ActionRecharge {
		t.Fatalf("actions = %v", got)
	}
}
