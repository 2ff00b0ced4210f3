package cli

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joebot/clipbot/internal/bus"
)

var testKeyboard = bus.Keyboard{
	{{Label: "Landscape", Action: "format_16_9"}, {Label: "Portrait", Action: "format_9_16"}},
	{{Label: "Back", Action: "format_back"}},
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		kb     bus.Keyboard
		kind   bus.EventKind
		action string
		text   string
		image  string
		cap    string
	}{
		{name: "start", line: "/start", kind: bus.EventStart},
		{name: "press by number", line: "/press 3", kb: testKeyboard, kind: bus.EventButton, action: "format_back"},
		{name: "press by action", line: "/press package_5", kind: bus.EventButton, action: "package_5"},
		{name: "bare number", line: "2", kb: testKeyboard, kind: bus.EventButton, action: "format_9_16"},
		{name: "number without keyboard is text", line: "42", kind: bus.EventText, text: "42"},
		{name: "image with caption", line: "/image https://x/cat.png make it dance", kind: bus.EventImage, image: "https://x/cat.png", cap: "make it dance"},
		{name: "image without caption", line: "/image https://x/cat.png", kind: bus.EventImage, image: "https://x/cat.png"},
		{name: "text", line: "a fox in the snow", kind: bus.EventText, text: "a fox in the snow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := parseInput(tt.line, tt.kb)
			if err != nil {
				t.Fatal(err)
			}
			if ev.Kind != tt.kind || ev.ActionID != tt.action || ev.Text != tt.text || ev.ImageURL != tt.image || ev.Caption != tt.cap {
				t.Fatalf("got %+v", ev)
			}
		})
	}
}

func TestParseInputErrors(t *testing.T) {
	for _, line := range []string{"/press", "/press 9", "/image"} {
		if _, err := parseInput(line, testKeyboard); err == nil {
			t.Errorf("parseInput(%q) expected error", line)
		}
	}
}

func TestRenderKeyboardNumbersButtons(t *testing.T) {
	out := renderKeyboard(testKeyboard)
	for _, want := range []string{"[1] Landscape", "[2] Portrait", "[3] Back"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestConsoleModelRoundTrip(t *testing.T) {
	b := bus.NewMessageBus(4)
	var model tea.Model = newConsoleModel(b, 7)
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	model, _ = model.Update(botReplyMsg{msg: &bus.OutboundMessage{Text: "Choose a format", Keyboard: testKeyboard}})

	m := model.(consoleModel)
	m.input.SetValue("2")
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected publish command")
	}
	runCmd(cmd)

	select {
	case ev := <-b.Inbound:
		if ev.Kind != bus.EventButton || ev.ActionID != "format_9_16" || ev.Identity != 7 || ev.Channel != ConsoleChannel || ev.ChatID != "7" {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("no inbound event published")
	}

	if !model.(consoleModel).waiting {
		t.Fatal("expected waiting after send")
	}
	model, _ = model.Update(botReplyMsg{msg: &bus.OutboundMessage{Text: "https://v/1.mp4", VideoURL: "https://v/1.mp4"}})
	if model.(consoleModel).waiting {
		t.Fatal("reply should clear waiting")
	}
	if !strings.Contains(model.(consoleModel).renderHistory(), "🎬 https://v/1.mp4") {
		t.Fatal("video not rendered")
	}
}

func TestConsoleSendBeforeStart(t *testing.T) {
	c := NewConsole(bus.NewMessageBus(1), 1)
	if err := c.Send(context.Background(), &bus.OutboundMessage{Text: "hi"}); err != ErrConsoleNotRunning {
		t.Fatalf("err = %v", err)
	}
}

// runCmd executes cmd and any batched commands it expands to.
func runCmd(cmd tea.Cmd) {
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c != nil {
				c()
			}
		}
	}
}
