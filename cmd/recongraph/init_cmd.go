package main

import (
	"fmt"
	"os"

	"github.com/hakim/recongraph/internal/config"
	"github.com/hakim/recongraph/internal/storage"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize recongraph with default configuration",
	Long: `Creates a default configuration file (recongraph.yaml) and sets up the
database for storing scans and their events.

This is typically the first command you run when setting up recongraph.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = "recongraph.yaml"
		}

		if _, err := os.Stat(configPath); err == nil && !initForce {
			return fmt.Errorf("config file already exists at %s. Use --force to overwrite", configPath)
		}

		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Printf("Created %s with default configuration\n", configPath)

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		store, err := storage.NewStore(loaded.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		fmt.Printf("Initialized database: %s\n", loaded.DBPath)

		fmt.Println("\nNext: recongraph scan -t <target>")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}
