package cli

import (
	"fmt"
	"os"

	"github.com/joebot/clipbot/internal/config"
)

// RunStatus displays the current configuration status with styled output.
func RunStatus(cfg *config.Config) {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s clipbot Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-12s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))
	fmt.Printf("  %-12s %s  %s\n", "Log", StatusBadge(fileExists(cfg.LogPath())), DimStyle.Render(cfg.LogPath()))
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Provider"))
	p := cfg.Provider
	fmt.Printf("    %s  API key %s\n", StatusBadge(p.APIKey != ""), DimStyle.Render(config.Redact(p.APIKey)))
	fmt.Printf("    %-10s %s\n", "Base", p.APIBase)
	fmt.Printf("    %-10s %s\n", "Text", p.TextModel)
	fmt.Printf("    %-10s %s\n", "Image", p.ImageModel)
	fmt.Printf("    %-10s %s first, then every %s\n", "Polling", p.InitialDelay(), p.PollInterval())
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Store"))
	fmt.Printf("    %-10s %s\n", "Driver", cfg.Store.Driver)
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
		fmt.Printf("    %-10s %s\n", "DSN", DimStyle.Render(config.Redact(cfg.Store.DSN)))
	case "dynamodb":
		fmt.Printf("    %-10s %s %s\n", "Table", cfg.Store.Table, DimStyle.Render(cfg.AWS.Region))
	}
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Limits"))
	fmt.Printf("    %d requests per %s, prompts up to %d characters\n",
		cfg.Limits.Capacity, cfg.Limits.RefillPeriod(), cfg.Limits.MaxPromptLength)
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Packages"))
	for _, pkg := range cfg.Packages {
		label := pkg.Label
		if pkg.Hidden {
			label += DimStyle.Render(" (hidden)")
		}
		fmt.Printf("    %-14s %3d  %s\n", pkg.ID, pkg.Credits, label)
	}
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Channels"))
	fmt.Printf("    %s  Discord\n", StatusBadge(cfg.Channels.Discord.Enabled))
	fmt.Printf("    %s  Telemetry %s\n", StatusBadge(cfg.Telemetry.Enabled), DimStyle.Render(cfg.Telemetry.Endpoint))
	fmt.Println()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
