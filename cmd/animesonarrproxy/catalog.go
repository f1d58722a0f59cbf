package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/catalog"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the anime-offline-database catalog",
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a catalog re-download and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		}))

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		cat := catalog.New(
			cfg.AnimeDBURL,
			filepath.Join(cfg.DataDir, "anime-offline-database.json"),
			0, // a zero update interval makes Initialize treat any existing file as stale
			catalog.WithLogger(log),
		)

		if err := cat.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("catalog refresh: %w", err)
		}
		log.Info("catalog refreshed")
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogRefreshCmd)
	rootCmd.AddCommand(catalogCmd)
}
