package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hakim/recongraph/internal/diff"
	"github.com/hakim/recongraph/internal/models"
	"github.com/hakim/recongraph/internal/storage"
)

var diffCmd = &cobra.Command{
	Use:   "diff <previous-scan-id> <current-scan-id>",
	Short: "Compare the results of two scans",
	Long: `Compare the stored results of two scans of the same target and show what
appeared and what disappeared between the runs.

Facts are matched by type and data, so the same discovery reached through a
different chain of collectors counts as unchanged. Use --json to emit the
structured delta instead of the table output.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		prevMeta, prevEvents, err := loadScan(store, args[0])
		if err != nil {
			return err
		}
		currMeta, currEvents, err := loadScan(store, args[1])
		if err != nil {
			return err
		}
		if prevMeta.Target != currMeta.Target {
			fmt.Fprintf(os.Stderr, "warning: comparing scans of different targets (%s vs %s)\n",
				prevMeta.Target, currMeta.Target)
		}

		res := diff.Compare(prevEvents, currEvents)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Printf("Comparing %s -> %s (%s)\n", shortScanID(prevMeta.ID), shortScanID(currMeta.ID), currMeta.Target)
		fmt.Printf("Unique results: %d previously, %d now\n\n", res.PreviousTotal, res.CurrentTotal)

		if res.Unchanged() {
			fmt.Println("No changes between the two scans.")
			return nil
		}

		for _, c := range res.Appeared {
			printChange(addedColor, "+", c)
		}
		for _, c := range res.Disappeared {
			printChange(removedColor, "-", c)
		}

		fmt.Printf("\n%d new, %d removed\n", len(res.Appeared), len(res.Disappeared))
		return nil
	},
}

var (
	addedColor   = color.New(color.FgGreen)
	removedColor = color.New(color.FgRed)
)

func printChange(c *color.Color, sign string, ch diff.Change) {
	data := ch.Data
	if len(data) > 100 {
		data = data[:100] + "..."
	}
	fmt.Printf("  %s %-28s %-12s %s\n", c.Sprint(sign), ch.Type, ch.Module, data)
}

// loadScan fetches a scan's metadata and events, erroring on unknown ids.
func loadScan(store *storage.Store, scanID string) (*models.ScanMeta, []*models.StoredEvent, error) {
	meta, err := store.GetScan(scanID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading scan %s: %w", scanID, err)
	}
	if meta == nil {
		return nil, nil, fmt.Errorf("no scan with id %s", scanID)
	}
	events, err := store.ScanEvents(scanID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading events for %s: %w", scanID, err)
	}
	return meta, events, nil
}

func init() {
	diffCmd.Flags().Bool("json", false, "Emit the structured delta as JSON")
	rootCmd.AddCommand(diffCmd)
}
