package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joebot/clipbot/internal/config"
)

func typeLine(t *testing.T, m tea.Model, s string) tea.Model {
	t.Helper()
	if s != "" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return m
}

func TestOnboardWizardNewConfig(t *testing.T) {
	var m tea.Model = newOnboardModel("/tmp/config.json", false)
	if m.(onboardModel).step != stepAPIKey {
		t.Fatalf("step = %v, want API key first", m.(onboardModel).step)
	}

	m = typeLine(t, m, "key-123")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown}) // sqlite
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.(onboardModel).step != stepStoreTarget {
		t.Fatalf("step = %v, want store target", m.(onboardModel).step)
	}
	m = typeLine(t, m, "/data/bot.db")
	m = typeLine(t, m, "discord-token")

	got := m.(onboardModel)
	if got.step != stepDone {
		t.Fatalf("step = %v, want done", got.step)
	}
	want := onboardAnswers{apiKey: "key-123", driver: "sqlite", storeTarget: "/data/bot.db", discordToken: "discord-token"}
	if got.answers != want {
		t.Fatalf("answers = %+v, want %+v", got.answers, want)
	}
}

func TestOnboardMemorySkipsStoreTarget(t *testing.T) {
	var m tea.Model = newOnboardModel("/tmp/config.json", false)
	m = typeLine(t, m, "")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter}) // memory
	if m.(onboardModel).step != stepDiscord {
		t.Fatalf("step = %v, want discord", m.(onboardModel).step)
	}
}

func TestOnboardExistingSkip(t *testing.T) {
	var m tea.Model = newOnboardModel("/tmp/config.json", true)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := m.(onboardModel)
	if got.step != stepDone || got.answers.existing != choiceSkip || cmd == nil {
		t.Fatalf("step = %v choice = %v", got.step, got.answers.existing)
	}
}

func TestOnboardCtrlCCancels(t *testing.T) {
	var m tea.Model = newOnboardModel("/tmp/config.json", false)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.(onboardModel).answers.cancelled {
		t.Fatal("expected cancelled")
	}
}

func TestApplyAnswers(t *testing.T) {
	tests := []struct {
		name  string
		a     onboardAnswers
		check func(t *testing.T, c *config.Config)
	}{
		{
			name: "blank keeps values",
			a:    onboardAnswers{},
			check: func(t *testing.T, c *config.Config) {
				if c.Provider.APIKey != "old" || c.Store.Driver != "memory" || c.Channels.Discord.Enabled {
					t.Fatalf("cfg changed: %+v", c)
				}
			},
		},
		{
			name: "sqlite default path",
			a:    onboardAnswers{driver: "sqlite"},
			check: func(t *testing.T, c *config.Config) {
				if c.Store.Driver != "sqlite" || c.Store.DSN != defaultSQLitePath() {
					t.Fatalf("store = %+v", c.Store)
				}
			},
		},
		{
			name: "dynamodb table and discord",
			a:    onboardAnswers{apiKey: "new", driver: "dynamodb", storeTarget: "credits", discordToken: "tok"},
			check: func(t *testing.T, c *config.Config) {
				if c.Provider.APIKey != "new" || c.Store.Table != "credits" {
					t.Fatalf("cfg = %+v", c)
				}
				if !c.Channels.Discord.Enabled || c.Channels.Discord.Token != "tok" {
					t.Fatalf("discord = %+v", c.Channels.Discord)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Provider.APIKey = "old"
			applyAnswers(cfg, tt.a)
			tt.check(t, cfg)
		})
	}
}
