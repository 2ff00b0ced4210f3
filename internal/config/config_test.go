package config_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/joebot/clipbot/internal/config"
)

type fakeGetter map[string]string

func (f fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	return f[name], nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Limits.Capacity != 5 || cfg.Limits.RefillSeconds != 60 || cfg.Limits.MaxPromptLength != 9999 {
		t.Fatalf("limits = %+v", cfg.Limits)
	}
	if cfg.Provider.InitialDelaySeconds != 120 || cfg.Provider.PollIntervalSeconds != 30 || cfg.Provider.MaxWaitMinutes != 0 {
		t.Fatalf("provider = %+v", cfg.Provider)
	}
	if cfg.Store.Driver != "memory" || cfg.Sessions.IdleTTLMinutes != 0 {
		t.Fatalf("store = %+v sessions = %+v", cfg.Store, cfg.Sessions)
	}
	if len(cfg.Packages) != 4 {
		t.Fatalf("packages = %d", len(cfg.Packages))
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `{"limits":{"capacity":10},"provider":{"apiKey":"k"}}`)
	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Limits.Capacity != 10 || cfg.Limits.RefillSeconds != 60 {
		t.Fatalf("limits = %+v", cfg.Limits)
	}
	if cfg.Provider.APIKey != "k" || cfg.Provider.TextModel != "sora-2-text-to-video" {
		t.Fatalf("provider = %+v", cfg.Provider)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvDiscordToken, "env-token")
	t.Setenv(config.EnvProviderAPIKey, "env-key")
	t.Setenv(config.EnvStoreDSN, "/tmp/x.db")

	path := writeConfig(t, `{"channels":{"discord":{"enabled":true,"token":"file-token"}},"store":{"driver":"sqlite"}}`)
	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Discord.Token != "env-token" || cfg.Provider.APIKey != "env-key" || cfg.Store.DSN != "/tmp/x.db" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestValidateRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `{
		"limits":{"capacity":-1},
		"channels":{"discord":{"enabled":true,"token":""}},
		"store":{"driver":"mysql"},
		"packages":[{"id":"gold","credits":0}]
	}`)

	_, err := config.LoadFrom(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"limits.capacity", "channels.discord.token", "store.driver", "packages[0].id", "packages[0].credits"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestCheckUnknownFields(t *testing.T) {
	raw := map[string]any{
		"provider":     map[string]any{"apiKey": "k", "model": "x"},
		"packages":     []any{map[string]any{"id": "package_1", "price": 5}},
		"unknownField": true,
	}
	got := config.CheckUnknownFields(raw)
	want := []string{"packages[0].price", "provider.model", "unknownField"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unknown = %v, want %v", got, want)
	}
}

func TestResolveSecrets(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.APIKey = "ssm:/clipbot/provider"
	cfg.Channels.Discord.Token = "plain"

	if !cfg.NeedsParamStore() {
		t.Fatal("expected ssm reference to be detected")
	}
	if err := cfg.ResolveSecrets(context.Background(), fakeGetter{"/clipbot/provider": "resolved"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "resolved" || cfg.Channels.Discord.Token != "plain" {
		t.Fatalf("provider = %q discord = %q", cfg.Provider.APIKey, cfg.Channels.Discord.Token)
	}
	if cfg.NeedsParamStore() {
		t.Fatal("no references should remain")
	}
}

func TestSaveAndUpgrade(t *testing.T) {
	path := writeConfig(t, `{"provider":{"apiKey":"keep-me"},"limits":{"capacity":7}}`)

	cfg, err := config.UpgradeAt(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.APIKey != "keep-me" || cfg.Limits.Capacity != 7 || cfg.Limits.RefillSeconds != 60 {
		t.Fatalf("upgraded = %+v", cfg)
	}

	reloaded, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Provider.TextModel != "sora-2-text-to-video" || reloaded.Limits.Capacity != 7 {
		t.Fatalf("reloaded = %+v", reloaded)
	}
}

func TestRedact(t *testing.T) {
	if got := config.Redact("abcdefghijkl"); got != "abcd****ijkl" {
		t.Fatalf("got %q", got)
	}
	if got := config.Redact("short"); got != "*****" {
		t.Fatalf("got %q", got)
	}
	if got := config.Redact("ssm:/x"); got != "ssm:/x" {
		t.Fatalf("got %q", got)
	}
}
