package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/clipbot/internal/config"
)

type onboardChoice int

const (
	choiceUpgrade onboardChoice = iota
	choiceOverwrite
	choiceSkip
)

type onboardStep int

const (
	stepExisting onboardStep = iota
	stepAPIKey
	stepDriver
	stepStoreTarget
	stepDiscord
	stepDone
)

var storeDrivers = []string{"memory", "sqlite", "postgres", "dynamodb"}

// onboardAnswers is what the wizard collected. Blank fields keep the
// current config value.
type onboardAnswers struct {
	existing     onboardChoice
	apiKey       string
	driver       string
	storeTarget  string
	discordToken string
	cancelled    bool
}

type onboardModel struct {
	step    onboardStep
	cursor  int
	input   textinput.Model
	answers onboardAnswers
	cfgPath string
}

func newOnboardModel(cfgPath string, exists bool) onboardModel {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)
	ti.CharLimit = 0

	m := onboardModel{input: ti, cfgPath: cfgPath, step: stepExisting}
	if !exists {
		m.enter(stepAPIKey)
	}
	return m
}

func (m onboardModel) Init() tea.Cmd { return nil }

func (m onboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if key.Type == tea.KeyCtrlC {
		m.answers.cancelled = true
		m.step = stepDone
		return m, tea.Quit
	}

	switch m.step {
	case stepExisting, stepDriver:
		switch key.Type {
		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(m.options())-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.choose()
		}
	default:
		if key.Type == tea.KeyEnter {
			m.submit(strings.TrimSpace(m.input.Value()))
		} else {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	if m.step == stepDone {
		return m, tea.Quit
	}
	return m, nil
}

func (m *onboardModel) options() []string {
	if m.step == stepDriver {
		return storeDrivers
	}
	return []string{
		"Upgrade: add new fields, keep existing values",
		"Overwrite: replace with fresh defaults",
		"Skip: do not modify config",
	}
}

func (m *onboardModel) choose() {
	switch m.step {
	case stepExisting:
		m.answers.existing = onboardChoice(m.cursor)
		if m.answers.existing == choiceSkip {
			m.step = stepDone
			return
		}
		m.enter(stepAPIKey)
	case stepDriver:
		m.answers.driver = storeDrivers[m.cursor]
		if m.answers.driver == "memory" {
			m.enter(stepDiscord)
		} else {
			m.enter(stepStoreTarget)
		}
	}
}

func (m *onboardModel) submit(v string) {
	switch m.step {
	case stepAPIKey:
		m.answers.apiKey = v
		m.enter(stepDriver)
	case stepStoreTarget:
		m.answers.storeTarget = v
		m.enter(stepDiscord)
	case stepDiscord:
		m.answers.discordToken = v
		m.step = stepDone
	}
}

// enter moves to step and resets the input for it.
func (m *onboardModel) enter(step onboardStep) {
	m.step = step
	m.cursor = 0
	m.input.SetValue("")
	m.input.EchoMode = textinput.EchoNormal
	switch step {
	case stepAPIKey:
		m.input.Placeholder = "provider API key or ssm:/path (enter to keep)"
		m.input.EchoMode = textinput.EchoPassword
	case stepStoreTarget:
		switch m.answers.driver {
		case "sqlite":
			m.input.Placeholder = "database file (enter for " + defaultSQLitePath() + ")"
		case "postgres":
			m.input.Placeholder = "postgres connection string"
			m.input.EchoMode = textinput.EchoPassword
		case "dynamodb":
			m.input.Placeholder = "DynamoDB table (enter to keep)"
		}
	case stepDiscord:
		m.input.Placeholder = "Discord bot token (enter to skip)"
		m.input.EchoMode = textinput.EchoPassword
	}
	m.input.Focus()
}

func (m onboardModel) View() string {
	if m.step == stepDone {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	switch m.step {
	case stepExisting:
		sb.WriteString(fmt.Sprintf("  Config already exists at %s\n\n", DimStyle.Render(m.cfgPath)))
	case stepAPIKey:
		sb.WriteString("  " + BoldStyle.Render("Video provider API key") + "\n\n")
	case stepDriver:
		sb.WriteString("  " + BoldStyle.Render("Where should credit balances be stored?") + "\n\n")
	case stepStoreTarget:
		sb.WriteString("  " + BoldStyle.Render("Store location ("+m.answers.driver+")") + "\n\n")
	case stepDiscord:
		sb.WriteString("  " + BoldStyle.Render("Discord") + "\n\n")
	}

	if m.step == stepExisting || m.step == stepDriver {
		for i, opt := range m.options() {
			cursor := "  "
			if i == m.cursor {
				cursor = BotLabel.Render("❯ ")
			}
			sb.WriteString("  " + cursor + opt + "\n")
		}
		sb.WriteString("\n" + DimStyle.Render("  ↑/↓ navigate · enter select · ctrl+c cancel") + "\n")
		return sb.String()
	}

	sb.WriteString("  " + m.input.View() + "\n")
	sb.WriteString("\n" + DimStyle.Render("  enter confirm · ctrl+c cancel") + "\n")
	return sb.String()
}

// applyAnswers writes the wizard's answers onto cfg.
func applyAnswers(cfg *config.Config, a onboardAnswers) {
	if a.apiKey != "" {
		cfg.Provider.APIKey = a.apiKey
	}
	if a.driver != "" {
		cfg.Store.Driver = a.driver
	}
	switch a.driver {
	case "memory":
		cfg.Store.DSN = ""
	case "sqlite":
		cfg.Store.DSN = a.storeTarget
		if cfg.Store.DSN == "" {
			cfg.Store.DSN = defaultSQLitePath()
		}
	case "postgres":
		if a.storeTarget != "" {
			cfg.Store.DSN = a.storeTarget
		}
	case "dynamodb":
		if a.storeTarget != "" {
			cfg.Store.Table = a.storeTarget
		}
	}
	if a.discordToken != "" {
		cfg.Channels.Discord.Enabled = true
		cfg.Channels.Discord.Token = a.discordToken
	}
}

func defaultSQLitePath() string {
	return filepath.Join(config.DataDir(), "clipbot.db")
}

// RunOnboard runs the setup wizard and writes the config file.
func RunOnboard() {
	cfgPath := config.ConfigPath()
	_, statErr := os.Stat(cfgPath)
	exists := statErr == nil

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s clipbot Onboard", Logo)))

	final, err := tea.NewProgram(newOnboardModel(cfgPath, exists)).Run()
	if err != nil {
		fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
	answers := final.(onboardModel).answers

	fmt.Println()
	if answers.cancelled || (exists && answers.existing == choiceSkip) {
		fmt.Println("  " + DimStyle.Render("Config unchanged"))
		fmt.Println()
		return
	}

	cfg := config.DefaultConfig()
	if exists && answers.existing == choiceUpgrade {
		if cfg, err = config.Upgrade(); err != nil {
			fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
			os.Exit(1)
		}
	}
	applyAnswers(cfg, answers)
	if err := config.Save(cfg); err != nil {
		fmt.Println("  " + ErrStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
	fmt.Println("  " + OkStyle.Render("✓") + " Wrote config to " + DimStyle.Render(cfgPath))
	fmt.Printf("    %-10s %s\n", "Provider", StatusBadge(cfg.Provider.APIKey != ""))
	fmt.Printf("    %-10s %s\n", "Store", cfg.Store.Driver)
	fmt.Printf("    %-10s %s\n", "Discord", StatusBadge(cfg.Channels.Discord.Enabled))
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		fmt.Println("  " + ErrStyle.Render(err.Error()))
		fmt.Println()
		return
	}
	fmt.Println(OkStyle.Render("  clipbot is ready!"))
	fmt.Println()
	fmt.Println(DimStyle.Render("  Try it locally: clipbot console"))
	if cfg.Channels.Discord.Enabled {
		fmt.Println(DimStyle.Render("  Go live:        clipbot gateway"))
	}
	fmt.Println()
}
