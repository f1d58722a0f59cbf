package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "animesonarrproxy",
	Short: "Torznab-compatible anime-indexer proxy for Sonarr",
	Long: `animesonarrproxy translates Sonarr's TV-search requests into anime-aware
indexer queries: resolving the televised-series id to its anime titles and
absolute episode numbering, then querying Nyaa on Sonarr's behalf.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("animesonarrproxy %s\n", version)
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("animesonarrproxy {{.Version}}\n")
	rootCmd.AddCommand(versionCmd)
}
