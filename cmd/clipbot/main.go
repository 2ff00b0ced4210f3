package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joebot/clipbot/internal/account"
	"github.com/joebot/clipbot/internal/bus"
	"github.com/joebot/clipbot/internal/channel"
	"github.com/joebot/clipbot/internal/cli"
	"github.com/joebot/clipbot/internal/composer"
	"github.com/joebot/clipbot/internal/config"
	"github.com/joebot/clipbot/internal/conversation"
	"github.com/joebot/clipbot/internal/dispatcher"
	"github.com/joebot/clipbot/internal/generation"
	"github.com/joebot/clipbot/internal/logging"
	"github.com/joebot/clipbot/internal/paramstore"
	"github.com/joebot/clipbot/internal/ratelimit"
	"github.com/joebot/clipbot/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "gateway":
		cmdGateway()
	case "console":
		cmdConsole()
	case "status":
		cmdStatus()
	case "onboard":
		cli.RunOnboard()
	case "version", "--version", "-v":
		fmt.Println(cli.TitleStyle.Render(
			fmt.Sprintf("  %s clipbot v%s", cli.Logo, cli.Version),
		))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	dim := cli.DimStyle.Render
	fmt.Println()
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s clipbot", cli.Logo)) + dim(" · text and image to video bot"))
	fmt.Println()
	fmt.Println("  " + cli.BoldStyle.Render("Usage"))
	fmt.Println()
	fmt.Printf("    clipbot %-10s %s\n", "gateway", dim("Run the Discord gateway"))
	fmt.Printf("    clipbot %-10s %s\n", "console", dim("Talk to the bot in the terminal"))
	fmt.Printf("    clipbot %-10s %s\n", "status", dim("Show configuration"))
	fmt.Printf("    clipbot %-10s %s\n", "onboard", dim("Initialize setup"))
	fmt.Printf("    clipbot %-10s %s\n", "version", dim("Show version"))
	fmt.Println()
}

// --- gateway command ---

func cmdGateway() {
	cfg := mustLoadConfig()
	closeLog := mustSetupLogging(cfg, true)
	defer closeLog.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := mustBuildApp(ctx, cfg)
	defer app.close()

	fmt.Println()
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s clipbot Gateway", cli.Logo)))
	fmt.Println()

	var channels []channel.Channel
	if cfg.Channels.Discord.Enabled {
		discord, err := channel.NewDiscord(cfg.Channels.Discord, app.bus)
		if err != nil {
			fatal("Discord setup failed", err)
		}
		channels = append(channels, discord)
		fmt.Println("  " + cli.OkStyle.Render("✓") + " Discord")
	} else {
		fmt.Println("  " + cli.DimStyle.Render("✗") + " Discord " + cli.DimStyle.Render("(not enabled)"))
	}
	fmt.Println()

	if len(channels) == 0 {
		fatal("No channel enabled", fmt.Errorf("enable channels.discord or use `clipbot console`"))
	}

	app.run(ctx, channels)
	fmt.Println(cli.DimStyle.Render("  Press Ctrl+C to stop"))
	<-ctx.Done()
	fmt.Println("\n  Shutting down...")
	app.shutdown(channels)
}

// --- console command ---

func cmdConsole() {
	cfg := mustLoadConfig()
	// The TUI owns the terminal, so logs only go to the file.
	closeLog := mustSetupLogging(cfg, false)
	defer closeLog.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := mustBuildApp(ctx, cfg)
	defer app.close()

	console := cli.NewConsole(app.bus, bus.Identity(cfg.Channels.Console.Identity))
	channel.Register(app.bus, console)
	app.run(ctx, nil)

	if err := console.Start(ctx); err != nil {
		slog.Error("Console error", "err", err)
	}
	cancel()
	app.shutdown(nil)
}

// --- status command ---

func cmdStatus() {
	cfg, _ := config.Load()
	cli.RunStatus(cfg)
}

// --- wiring ---

type app struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	store      account.Store
	dispatcher *dispatcher.Dispatcher
	sweeper    *conversation.Sweeper
	telemetry  *telemetry.Provider

	stopOutbound context.CancelFunc
	outboundDone chan struct{}
}

func mustBuildApp(ctx context.Context, cfg *config.Config) *app {
	if cfg.NeedsParamStore() {
		ps, err := paramstore.NewFromEnv(ctx, cfg.AWS.Region)
		if err != nil {
			fatal("Parameter store unavailable", err)
		}
		if err := cfg.ResolveSecrets(ctx, ps); err != nil {
			fatal("Resolving secrets failed", err)
		}
	}
	if cfg.Provider.APIKey == "" {
		fmt.Println()
		fmt.Println(cli.ErrStyle.Render("  Error: No provider API key configured"))
		fmt.Println(cli.DimStyle.Render("  Set provider.apiKey in " + config.ConfigPath() + " or " + config.EnvProviderAPIKey))
		fmt.Println()
		os.Exit(1)
	}

	tp, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Interval:       time.Duration(cfg.Telemetry.IntervalSeconds) * time.Second,
		ServiceVersion: cli.Version,
	})
	if err != nil {
		fatal("Telemetry setup failed", err)
	}
	metrics, err := telemetry.NewJobInstruments(tp.Meter)
	if err != nil {
		fatal("Telemetry instruments failed", err)
	}

	store, err := account.New(ctx, account.Options{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
		Table:  cfg.Store.Table,
		Region: cfg.AWS.Region,
	})
	if err != nil {
		fatal("Account store unavailable", err)
	}

	client, err := generation.NewClient(cfg.Provider.APIKey,
		generation.WithBaseURL(cfg.Provider.APIBase),
		generation.WithModels(cfg.Provider.TextModel, cfg.Provider.ImageModel),
		generation.WithRateLimit(cfg.Provider.RequestsPerSecond, cfg.Provider.Burst),
	)
	if err != nil {
		fatal("Provider client setup failed", err)
	}
	orchestrator := generation.NewOrchestrator(client,
		generation.WithDelays(cfg.Provider.InitialDelay(), cfg.Provider.PollInterval()),
		generation.WithMaxWait(cfg.Provider.MaxWait()),
	)

	limiter := ratelimit.New[bus.Identity](cfg.Limits.Capacity, cfg.Limits.RefillPeriod())
	conversations := conversation.NewManager(cfg.Sessions.HistorySize)
	sweeper := conversation.NewSweeper(conversations, cfg.Sessions.IdleTTL(), cfg.Sessions.SweepInterval(), limiter.Sweep)

	packages := make([]composer.Package, 0, len(cfg.Packages))
	for _, p := range cfg.Packages {
		packages = append(packages, composer.Package{ID: p.ID, Label: p.Label, Credits: p.Credits, Gift: p.Gift, Hidden: p.Hidden})
	}
	comp := composer.New(packages,
		composer.WithExamplesURL(cfg.Messages.ExamplesURL),
		composer.WithSupportContact(cfg.Messages.SupportContact),
	)

	msgBus := bus.NewMessageBus(cfg.Dispatcher.QueueSize)
	d := dispatcher.New(dispatcher.Config{
		Bus:             msgBus,
		Store:           store,
		Generator:       orchestrator,
		Conversations:   conversations,
		Limiter:         limiter,
		Composer:        comp,
		Metrics:         metrics,
		Workers:         cfg.Dispatcher.Workers,
		MaxPromptLength: cfg.Limits.MaxPromptLength,
	})

	slog.Info("clipbot starting", "version", cli.Version, "store", cfg.Store.Driver, "workers", cfg.Dispatcher.Workers)
	return &app{cfg: cfg, bus: msgBus, store: store, dispatcher: d, sweeper: sweeper, telemetry: tp}
}

// run starts the outbound dispatcher, the sweeper, the dispatcher, and the
// given channels. Outbound delivery outlives ctx so jobs settled during
// shutdown still reach their users.
func (a *app) run(ctx context.Context, channels []channel.Channel) {
	outCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	a.stopOutbound = stop
	a.outboundDone = make(chan struct{})
	go func() {
		defer close(a.outboundDone)
		a.bus.DispatchOutbound(outCtx)
	}()

	go a.sweeper.Run(ctx)
	go func() {
		if err := a.dispatcher.Run(ctx); err != nil {
			slog.Error("Dispatcher error", "err", err)
		}
	}()

	for _, ch := range channels {
		channel.Register(a.bus, ch)
		go func(ch channel.Channel) {
			if err := ch.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Channel error", "channel", ch.Name(), "err", err)
			}
		}(ch)
	}
}

// shutdown waits for in-flight jobs to settle, then stops delivery.
func (a *app) shutdown(channels []channel.Channel) {
	done := make(chan struct{})
	go func() {
		a.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		slog.Warn("Timed out waiting for jobs to settle")
	}

	deadline := time.Now().Add(shutdownTimeout)
	for len(a.bus.Outbound) > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	for _, ch := range channels {
		if err := ch.Stop(); err != nil {
			slog.Warn("Channel stop failed", "channel", ch.Name(), "err", err)
		}
	}
	if a.stopOutbound != nil {
		a.stopOutbound()
		<-a.outboundDone
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Closing account store failed", "err", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		slog.Warn("Telemetry shutdown failed", "err", err)
	}
}

// --- helpers ---

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

func mustSetupLogging(cfg *config.Config, console bool) io.Closer {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fatal("Invalid log level", err)
	}
	closer, err := logging.Setup(level, cfg.LogPath(), console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", err)
	}
	return closer
}

func fatal(msg string, err error) {
	fmt.Println()
	fmt.Println(cli.ErrStyle.Render("  Error: " + msg))
	fmt.Println(cli.DimStyle.Render("  " + err.Error()))
	fmt.Println()
	os.Exit(1)
}
