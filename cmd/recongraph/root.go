package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hakim/recongraph/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "recongraph",
	Short: "Event-driven OSINT collection engine",
	Long: `R.Graph runs automated reconnaissance scans against a target and builds a
graph of discovered facts.

A scan starts from a single seed (a domain, host, IP address, netblock, email
address, phone number or name) and fans out through a set of collectors. Each
collector watches for fact types it understands, gathers related data over DNS,
WHOIS, TLS and HTTP, and publishes new facts back onto the shared bus for other
collectors to pick up. Results are persisted with full provenance so every fact
can be traced back to the seed that produced it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands that only print static information run without config.
		skipConfig := map[string]bool{
			"collectors": true,
			"init":       true,
			"help":       true,
			"version":    true,
		}
		if skipConfig[cmd.Name()] {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debug {
			cfg.Debug = true
		}

		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: recongraph.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.Version = "0.1.0-dev"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
