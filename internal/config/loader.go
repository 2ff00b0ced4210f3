package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joebot/clipbot/internal/paramstore"
)

// Environment variables that override secrets from the config file.
const (
	EnvDiscordToken   = "CLIPBOT_DISCORD_TOKEN"
	EnvProviderAPIKey = "CLIPBOT_PROVIDER_API_KEY"
	EnvStoreDSN       = "CLIPBOT_STORE_DSN"
)

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".clipbot", "config.json")
}

// DataDir returns the clipbot data directory, creating it if needed.
func DataDir() string {
	dir := filepath.Join(homeDir(), ".clipbot")
	os.MkdirAll(dir, 0o755)
	return dir
}

// Load reads configuration from disk, falling back to defaults.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads configuration from a specific path, applies defaults and
// environment overrides, and validates the result.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		for _, field := range CheckUnknownFields(raw) {
			slog.Warn("Unknown config field ignored", "field", field, "path", path)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("apply config: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	d := DefaultConfig()
	p := &cfg.Provider
	if p.APIBase == "" {
		p.APIBase = d.Provider.APIBase
	}
	if p.TextModel == "" {
		p.TextModel = d.Provider.TextModel
	}
	if p.ImageModel == "" {
		p.ImageModel = d.Provider.ImageModel
	}
	if p.InitialDelaySeconds == 0 {
		p.InitialDelaySeconds = d.Provider.InitialDelaySeconds
	}
	if p.PollIntervalSeconds == 0 {
		p.PollIntervalSeconds = d.Provider.PollIntervalSeconds
	}
	if p.RequestsPerSecond == 0 {
		p.RequestsPerSecond = d.Provider.RequestsPerSecond
	}
	if p.Burst == 0 {
		p.Burst = d.Provider.Burst
	}
	if cfg.Limits.Capacity == 0 {
		cfg.Limits.Capacity = d.Limits.Capacity
	}
	if cfg.Limits.RefillSeconds == 0 {
		cfg.Limits.RefillSeconds = d.Limits.RefillSeconds
	}
	if cfg.Limits.MaxPromptLength == 0 {
		cfg.Limits.MaxPromptLength = d.Limits.MaxPromptLength
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = d.Dispatcher.Workers
	}
	if cfg.Dispatcher.QueueSize == 0 {
		cfg.Dispatcher.QueueSize = d.Dispatcher.QueueSize
	}
	if cfg.Sessions.HistorySize == 0 {
		cfg.Sessions.HistorySize = d.Sessions.HistorySize
	}
	if cfg.Sessions.SweepIntervalMinutes == 0 {
		cfg.Sessions.SweepIntervalMinutes = d.Sessions.SweepIntervalMinutes
	}
	if len(cfg.Packages) == 0 {
		cfg.Packages = d.Packages
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = d.Store.Driver
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = d.Store.Table
	}
	if cfg.Telemetry.IntervalSeconds == 0 {
		cfg.Telemetry.IntervalSeconds = d.Telemetry.IntervalSeconds
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Channels.Console.Identity == 0 {
		cfg.Channels.Console.Identity = d.Channels.Console.Identity
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDiscordToken); v != "" {
		cfg.Channels.Discord.Token = v
	}
	if v := os.Getenv(EnvProviderAPIKey); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		cfg.Store.DSN = v
	}
}

// secrets returns pointers to every value that may hold an "ssm:" reference.
func (c *Config) secrets() map[string]*string {
	return map[string]*string{
		"channels.discord.token": &c.Channels.Discord.Token,
		"provider.apiKey":        &c.Provider.APIKey,
		"store.dsn":              &c.Store.DSN,
	}
}

// NeedsParamStore reports whether any secret is an "ssm:<name>" reference.
func (c *Config) NeedsParamStore() bool {
	for _, v := range c.secrets() {
		if paramstore.IsReference(*v) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces "ssm:<name>" references with their parameter values.
func (c *Config) ResolveSecrets(ctx context.Context, g paramstore.Getter) error {
	for field, v := range c.secrets() {
		if !paramstore.IsReference(*v) {
			continue
		}
		resolved, err := paramstore.Resolve(ctx, g, *v)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", field, err)
		}
		*v = resolved
	}
	return nil
}

// Save writes configuration to disk.
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo writes configuration to a specific path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Upgrade reads the existing config file, deep-merges it on top of
// DefaultConfig (local values win), and saves the result.
func Upgrade() (*Config, error) {
	return UpgradeAt(ConfigPath())
}

// UpgradeAt is Upgrade for a specific path.
func UpgradeAt(path string) (*Config, error) {
	defaultData, _ := json.Marshal(DefaultConfig())
	var defaultMap map[string]any
	json.Unmarshal(defaultData, &defaultMap)

	localData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var localMap map[string]any
	if err := json.Unmarshal(localData, &localMap); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	merged := deepMerge(defaultMap, localMap)

	cfg := DefaultConfig()
	reData, _ := json.Marshal(merged)
	if err := json.Unmarshal(reData, cfg); err != nil {
		return nil, fmt.Errorf("apply merged config: %w", err)
	}
	applyDefaults(cfg)

	if err := SaveTo(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deepMerge recursively merges src into dst. Values from src take priority.
// For nested maps, merge recursively. For all other types, src wins.
func deepMerge(dst, src map[string]any) map[string]any {
	result := make(map[string]any, len(dst))
	for k, v := range dst {
		result[k] = v
	}
	for k, srcVal := range src {
		dstVal, exists := result[k]
		if !exists {
			result[k] = srcVal
			continue
		}
		dstMap, dstOK := dstVal.(map[string]any)
		srcMap, srcOK := srcVal.(map[string]any)
		if dstOK && srcOK {
			result[k] = deepMerge(dstMap, srcMap)
		} else {
			result[k] = srcVal
		}
	}
	return result
}

// Redact masks a secret for display.
func Redact(s string) string {
	if paramstore.IsReference(s) {
		return s
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 4) + s[len(s)-4:]
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return home
}
