package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/clipbot/internal/bus"
)

// ConsoleChannel is the channel name used by the terminal client.
const ConsoleChannel = "console"

// ErrConsoleNotRunning is returned by Send before Start or after the UI exits.
var ErrConsoleNotRunning = errors.New("console is not running")

// --- message types ---

type botReplyMsg struct {
	msg *bus.OutboundMessage
}

// --- chat entry ---

type chatEntry struct {
	role     string // "user", "bot", "error"
	content  string
	video    string
	keyboard bus.Keyboard
}

// Console is a local terminal channel: one fixed identity talks to the
// dispatcher through a bubbletea UI. Buttons are pressed by number.
type Console struct {
	bus      *bus.MessageBus
	identity bus.Identity

	mu      sync.Mutex
	program *tea.Program
}

// NewConsole creates a console channel for the given identity.
func NewConsole(b *bus.MessageBus, identity bus.Identity) *Console {
	return &Console{bus: b, identity: identity}
}

func (c *Console) Name() string { return ConsoleChannel }

// Start runs the terminal UI until the user quits or ctx is cancelled.
func (c *Console) Start(ctx context.Context) error {
	m := newConsoleModel(c.bus, c.identity)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	c.mu.Lock()
	c.program = p
	c.mu.Unlock()

	_, err := p.Run()

	c.mu.Lock()
	c.program = nil
	c.mu.Unlock()

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Console) Stop() error {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p != nil {
		p.Quit()
	}
	return nil
}

// Send hands an outbound message to the UI.
func (c *Console) Send(_ context.Context, msg *bus.OutboundMessage) error {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p == nil {
		return ErrConsoleNotRunning
	}
	p.Send(botReplyMsg{msg: msg})
	return nil
}

// --- console model ---

type consoleModel struct {
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	bus      *bus.MessageBus
	identity bus.Identity

	history  []chatEntry
	keyboard bus.Keyboard
	waiting  bool

	ready  bool
	width  int
	height int
}

func newConsoleModel(b *bus.MessageBus, identity bus.Identity) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "Type /start, a button number, or a description..."
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Accent)

	return consoleModel{
		input:    ti,
		spinner:  sp,
		bus:      b,
		identity: identity,
	}
}

func (m consoleModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// header(1) + divider(1) + viewport + divider(1) + input(1) + status(1)
		vpHeight := msg.Height - 5
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			if isExitCmd(line) {
				return m, tea.Quit
			}
			m.input.SetValue("")
			m.history = append(m.history, chatEntry{role: "user", content: line})

			ev, err := parseInput(line, m.keyboard)
			if err != nil {
				m.history = append(m.history, chatEntry{role: "error", content: err.Error()})
			} else {
				ev.Channel = ConsoleChannel
				ev.Identity = m.identity
				ev.ChatID = m.identity.String()
				ev.Timestamp = time.Now()
				m.waiting = true
				m.refresh()
				return m, tea.Batch(publishCmd(m.bus, ev), m.spinner.Tick)
			}
			m.refresh()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case botReplyMsg:
		m.waiting = false
		entry := chatEntry{role: "bot", content: msg.msg.Text, keyboard: msg.msg.Keyboard}
		if msg.msg.HasVideo() {
			entry.content = ""
			entry.video = msg.msg.VideoURL
		}
		if len(msg.msg.Keyboard) > 0 {
			m.keyboard = msg.msg.Keyboard
		}
		m.history = append(m.history, entry)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func publishCmd(b *bus.MessageBus, ev *bus.InboundEvent) tea.Cmd {
	return func() tea.Msg {
		b.PublishInbound(ev)
		return nil
	}
}

func (m consoleModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := TitleStyle.Render(fmt.Sprintf(" %s clipbot", Logo))
	divider := DimStyle.Render(strings.Repeat("─", m.width))

	return header + "\n" +
		divider + "\n" +
		m.viewport.View() + "\n" +
		divider + "\n" +
		" " + m.input.View() + "\n" +
		m.renderStatusBar()
}

func (m consoleModel) renderHistory() string {
	if len(m.history) == 0 {
		return m.renderWelcome()
	}

	var sb strings.Builder
	for _, entry := range m.history {
		sb.WriteString("\n")
		switch entry.role {
		case "user":
			sb.WriteString("  " + UserLabel.Render("You") + "\n")
			writeIndented(&sb, entry.content)
		case "bot":
			sb.WriteString("  " + BotLabel.Render("clipbot") + "\n")
			if entry.video != "" {
				sb.WriteString("  " + OkStyle.Render("🎬 "+entry.video) + "\n")
			}
			if entry.content != "" {
				writeIndented(&sb, entry.content)
			}
			sb.WriteString(renderKeyboard(entry.keyboard))
		case "error":
			sb.WriteString("  " + ErrStyle.Render("Error: "+entry.content) + "\n")
		}
	}
	return sb.String()
}

func writeIndented(sb *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString("  " + line + "\n")
	}
}

// renderKeyboard numbers buttons left to right, top to bottom, matching
// the numbering parseInput accepts.
func renderKeyboard(kb bus.Keyboard) string {
	var sb strings.Builder
	n := 0
	for _, row := range kb {
		var cells []string
		for _, b := range row {
			n++
			cells = append(cells, ButtonStyle.Render(fmt.Sprintf("[%d] %s", n, b.Label)))
		}
		if len(cells) > 0 {
			sb.WriteString("  " + strings.Join(cells, "  ") + "\n")
		}
	}
	return sb.String()
}

func (m consoleModel) renderWelcome() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(RenderBanner())
	sb.WriteString("\n")
	sb.WriteString("  " + BoldStyle.Render("Commands:") + "\n")
	sb.WriteString(DimStyle.Render("  /start                 open the welcome screen") + "\n")
	sb.WriteString(DimStyle.Render("  1, 2, ...              press a button from the last reply") + "\n")
	sb.WriteString(DimStyle.Render("  /press <action>        press a button by action id") + "\n")
	sb.WriteString(DimStyle.Render("  /image <url> [caption] send a reference image") + "\n")
	sb.WriteString(DimStyle.Render("  anything else          send a video description") + "\n")
	return sb.String()
}

func (m consoleModel) renderStatusBar() string {
	left := DimStyle.Render(fmt.Sprintf(" identity %s", m.identity))
	right := DimStyle.Render("ctrl+c to quit ")
	if m.waiting {
		right = m.spinner.View() + DimStyle.Render(" waiting for reply ")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// parseInput turns one line of console input into an inbound event.
// Channel, identity, and timestamp are filled in by the caller.
func parseInput(line string, kb bus.Keyboard) (*bus.InboundEvent, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "/start":
		return &bus.InboundEvent{Kind: bus.EventStart}, nil
	case "/press":
		if rest == "" {
			return nil, errors.New("usage: /press <action or number>")
		}
		return pressEvent(rest, kb)
	case "/image":
		url, caption, _ := strings.Cut(rest, " ")
		if url == "" {
			return nil, errors.New("usage: /image <url> [caption]")
		}
		return &bus.InboundEvent{Kind: bus.EventImage, ImageURL: url, Caption: strings.TrimSpace(caption)}, nil
	}

	if _, err := strconv.Atoi(line); err == nil && len(kb) > 0 {
		return pressEvent(line, kb)
	}
	return &bus.InboundEvent{Kind: bus.EventText, Text: line}, nil
}

func pressEvent(arg string, kb bus.Keyboard) (*bus.InboundEvent, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return &bus.InboundEvent{Kind: bus.EventButton, ActionID: arg}, nil
	}
	i := 0
	for _, row := range kb {
		for _, b := range row {
			i++
			if i == n {
				return &bus.InboundEvent{Kind: bus.EventButton, ActionID: b.Action}, nil
			}
		}
	}
	return nil, fmt.Errorf("no button %d on the last keyboard", n)
}

func isExitCmd(s string) bool {
	s = strings.ToLower(s)
	return s == "exit" || s == "quit" || s == "/exit" || s == "/quit" || s == ":q"
}
