package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"trip-planner/internal/handlers"
)

const appName = "trip-planner"

// Version is set at build time
var Version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Trip planning service",
		Long: `trip-planner builds day-by-day travel itineraries from a routing graph
of places, hotels and events.

Requests are planned synchronously over HTTP or queued for a worker, with
results pushed to connected clients over websockets.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(workerCmd(&configPath))
	cmd.AddCommand(importCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	handlers.Version = Version
	return cmd
}
