package main

import (
	"fmt"
	"strings"

	"github.com/hakim/recongraph/internal/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show scan history for a target",
	Long: `Display a formatted table of past scans for a target.

Scans are listed newest-first. Each row shows the scan ID (truncated), start
time, final status, and the collectors that were enabled.

Use --limit to cap the number of rows shown (default: 10).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetValue, _ := cmd.Flags().GetString("target")
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		scans, err := store.ListScans(targetValue)
		if err != nil {
			return fmt.Errorf("listing scans for %s: %w", targetValue, err)
		}
		if len(scans) == 0 {
			fmt.Printf("No scan history found for %s\n", targetValue)
			return nil
		}

		if limit > 0 && len(scans) > limit {
			scans = scans[:limit]
		}

		const separator = "────────────────────────────────────────────────────────────────────────"

		fmt.Printf("\nScan History for %s\n", targetValue)
		fmt.Println(separator)
		fmt.Printf("  %-3s  %-12s  %-20s  %-16s  %s\n", "#", "Scan ID", "Started", "Status", "Collectors")
		fmt.Println(separator)

		for i, meta := range scans {
			started := meta.StartedAt.UTC().Format("2006-01-02 15:04")
			fmt.Printf("  %-3d  %-12s  %-20s  %-16s  %s\n",
				i+1, shortScanID(meta.ID), started, meta.Status, formatCollectors(meta.Collectors))
		}

		fmt.Println(separator)
		fmt.Printf("Total: %d scan(s)\n\n", len(scans))
		return nil
	},
}

// shortScanID returns the first 8 characters of a UUID followed by "..." for
// compact table display. Falls back to the full ID when shorter than 8 chars.
func shortScanID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// formatCollectors joins the enabled collector ids into a comma-separated
// string. Returns "-" when none are recorded.
func formatCollectors(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

func init() {
	historyCmd.Flags().StringP("target", "t", "", "Target value (required)")
	historyCmd.Flags().Int("limit", 10, "Maximum number of scans to display")
	historyCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(historyCmd)
}
