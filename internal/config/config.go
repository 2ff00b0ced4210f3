package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration for clipbot.
type Config struct {
	Channels   ChannelsConfig   `json:"channels"`
	Provider   ProviderConfig   `json:"provider"`
	Limits     LimitsConfig     `json:"limits"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Sessions   SessionsConfig   `json:"sessions"`
	Packages   []PackageConfig  `json:"packages"`
	Messages   MessagesConfig   `json:"messages"`
	Store      StoreConfig      `json:"store"`
	AWS        AWSConfig        `json:"aws"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Log        LogConfig        `json:"log"`
}

// ChannelsConfig holds all channel configurations.
type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
	Console ConsoleConfig `json:"console"`
}

// DiscordConfig holds Discord channel settings.
type DiscordConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
}

// ConsoleConfig holds the local terminal channel settings.
type ConsoleConfig struct {
	Identity int64 `json:"identity"`
}

// ProviderConfig holds the video provider settings.
type ProviderConfig struct {
	APIKey              string  `json:"apiKey"`
	APIBase             string  `json:"apiBase,omitempty"`
	TextModel           string  `json:"textModel"`
	ImageModel          string  `json:"imageModel"`
	InitialDelaySeconds int     `json:"initialDelaySeconds"`
	PollIntervalSeconds int     `json:"pollIntervalSeconds"`
	MaxWaitMinutes      int     `json:"maxWaitMinutes"`
	RequestsPerSecond   float64 `json:"requestsPerSecond"`
	Burst               int     `json:"burst"`
}

// InitialDelay is the wait before the first status poll.
func (p ProviderConfig) InitialDelay() time.Duration {
	return time.Duration(p.InitialDelaySeconds) * time.Second
}

// PollInterval is the wait between status polls.
func (p ProviderConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

// MaxWait bounds a job's total polling time; 0 means unbounded.
func (p ProviderConfig) MaxWait() time.Duration {
	return time.Duration(p.MaxWaitMinutes) * time.Minute
}

// LimitsConfig holds per-user request limits.
type LimitsConfig struct {
	Capacity        int `json:"capacity"`
	RefillSeconds   int `json:"refillSeconds"`
	MaxPromptLength int `json:"maxPromptLength"`
}

// RefillPeriod is the token bucket refill period.
func (l LimitsConfig) RefillPeriod() time.Duration {
	return time.Duration(l.RefillSeconds) * time.Second
}

// DispatcherConfig holds worker pool settings.
type DispatcherConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queueSize"`
}

// SessionsConfig holds conversation retention settings.
type SessionsConfig struct {
	HistorySize          int `json:"historySize"`
	IdleTTLMinutes       int `json:"idleTtlMinutes"`
	SweepIntervalMinutes int `json:"sweepIntervalMinutes"`
}

// IdleTTL is how long an idle conversation is kept; 0 keeps it forever.
func (s SessionsConfig) IdleTTL() time.Duration {
	return time.Duration(s.IdleTTLMinutes) * time.Minute
}

// SweepInterval is how often idle conversations are swept.
func (s SessionsConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}

// PackageConfig is one entry of the credit package catalogue.
type PackageConfig struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Credits int    `json:"credits"`
	Gift    bool   `json:"gift,omitempty"`
	Hidden  bool   `json:"hidden,omitempty"`
}

// MessagesConfig holds optional text shown to users.
type MessagesConfig struct {
	ExamplesURL    string `json:"examplesUrl,omitempty"`
	SupportContact string `json:"supportContact,omitempty"`
}

// StoreConfig selects the account store backend.
type StoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn,omitempty"`
	Table  string `json:"table,omitempty"`
}

// AWSConfig holds settings shared by the DynamoDB store and SSM lookups.
type AWSConfig struct {
	Region string `json:"region,omitempty"`
}

// TelemetryConfig holds OpenTelemetry metrics export settings.
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled"`
	Endpoint        string `json:"endpoint,omitempty"`
	Insecure        bool   `json:"insecure,omitempty"`
	IntervalSeconds int    `json:"intervalSeconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file,omitempty"`
}

// LogPath returns the expanded log file path, or "" to log to stderr only.
func (c *Config) LogPath() string {
	return expandHome(c.Log.File)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Console: ConsoleConfig{Identity: 1},
		},
		Provider: ProviderConfig{
			APIBase:             "https://api.kie.ai/api/v1",
			TextModel:           "sora-2-text-to-video",
			ImageModel:          "sora-2-image-to-video",
			InitialDelaySeconds: 120,
			PollIntervalSeconds: 30,
			RequestsPerSecond:   2,
			Burst:               4,
		},
		Limits: LimitsConfig{
			Capacity:        5,
			RefillSeconds:   60,
			MaxPromptLength: 9999,
		},
		Dispatcher: DispatcherConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Sessions: SessionsConfig{
			HistorySize:          5,
			SweepIntervalMinutes: 10,
		},
		Packages: DefaultPackages(),
		Store: StoreConfig{
			Driver: "memory",
			Table:  "clipbot-accounts",
		},
		Telemetry: TelemetryConfig{
			IntervalSeconds: 30,
		},
		Log: LogConfig{
			Level: "info",
			File:  "~/.clipbot/clipbot.log",
		},
	}
}

// DefaultPackages is the built-in credit package catalogue.
func DefaultPackages() []PackageConfig {
	return []PackageConfig{
		{ID: "package_1", Label: "1 video (10 seconds)", Credits: 1},
		{ID: "package_5", Label: "5 videos (10 seconds)", Credits: 5},
		{ID: "package_50", Label: "50 videos (10 seconds)", Credits: 50},
		{ID: "package_gift", Label: "Claim a free video", Credits: 1, Gift: true, Hidden: true},
	}
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		home := homeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
