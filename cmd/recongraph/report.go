package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hakim/recongraph/internal/diff"
	"github.com/hakim/recongraph/internal/report"
	"github.com/hakim/recongraph/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report <scan-id>",
	Short: "Render a scan's results as a markdown report",
	Long: `Render the stored results of a scan as a markdown report, grouped by fact
type with blocklist and malicious findings surfaced up front.

Pass --compare with a second scan id to append a comparison section showing
what changed since that run. Output goes to stdout unless --output names a
file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath, _ := cmd.Flags().GetString("output")
		compareID, _ := cmd.Flags().GetString("compare")

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		meta, events, err := loadScan(store, args[0])
		if err != nil {
			return err
		}

		out := report.ScanMarkdown(meta, events)

		if compareID != "" {
			prevMeta, prevEvents, err := loadScan(store, compareID)
			if err != nil {
				return err
			}
			res := diff.Compare(prevEvents, events)
			out += "\n" + report.DiffMarkdown(prevMeta, meta, res)
		}

		if outputPath == "" {
			fmt.Print(out)
			return nil
		}
		if err := os.WriteFile(outputPath, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing report to %s: %w", outputPath, err)
		}
		fmt.Printf("Report written to %s\n", outputPath)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	reportCmd.Flags().String("compare", "", "Append a comparison against this earlier scan id")
	rootCmd.AddCommand(reportCmd)
}
