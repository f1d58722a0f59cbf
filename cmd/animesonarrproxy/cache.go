package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/config"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/indexer"
	"github.com/WarheadTaylor/AnimeSonarrProxy/pkg/nyaaclient"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the indexer result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear this process's in-memory indexer result cache and exit (a running server's cache is not affected)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		}))

		httpClient := &http.Client{Timeout: 30 * time.Second}
		raw := nyaaclient.New("nyaa", cfg.NyaaURL, httpClient)
		idx := indexer.New(raw, indexer.WithLogger(log))

		idx.Clear()
		log.Info("indexer cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
