package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hakim/recongraph/internal/models"
	"github.com/hakim/recongraph/internal/storage"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events <scan-id>",
	Short: "Dump the events recorded for a scan",
	Long: `Print every fact recorded for a scan, in discovery order.

The default table output shows type, producing collector and data. Use --type
to filter by fact type and --json to emit the full records, one JSON object
per line, suitable for piping into jq or another tool.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scanID := args[0]
		typeFilter, _ := cmd.Flags().GetString("type")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		var events []*models.StoredEvent
		if typeFilter != "" {
			events, err = store.EventsByType(scanID, typeFilter)
		} else {
			events, err = store.ScanEvents(scanID)
		}
		if err != nil {
			return fmt.Errorf("loading events for %s: %w", scanID, err)
		}
		if len(events) == 0 {
			fmt.Printf("No events recorded for scan %s\n", scanID)
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		}

		for _, e := range events {
			module := e.Module
			if module == "" {
				module = "seed"
			}
			data := e.Data
			if len(data) > 100 {
				data = data[:100] + "..."
			}
			fmt.Printf("  %-28s %-12s %s\n", e.Type, module, data)
		}
		fmt.Printf("\nTotal: %d event(s)\n", len(events))
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("type", "", "Only show events of this fact type")
	eventsCmd.Flags().Bool("json", false, "Emit full records as JSON lines")
	rootCmd.AddCommand(eventsCmd)
}
