package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hakim/recongraph/internal/collectors"
	"github.com/spf13/cobra"
)

var collectorsCmd = &cobra.Command{
	Use:   "collectors",
	Short: "List the available collectors",
	Long: `Display every built-in collector with its purpose and the fact types it
watches and produces, followed by the named presets the scan command accepts.
Use --verbose to also show each collector's options with their defaults and
descriptions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		ids := collectors.IDs()
		fmt.Printf("Available collectors (%d):\n\n", len(ids))

		for _, id := range ids {
			col, err := collectors.Create(id)
			if err != nil {
				return err
			}
			meta := col.Meta()

			fmt.Printf("  %-12s %s\n", id, meta.Summary)
			fmt.Printf("  %-12s watches:  %s\n", "", strings.Join(col.WatchedEvents(), ", "))
			fmt.Printf("  %-12s produces: %s\n", "", strings.Join(col.ProducedEvents(), ", "))

			if verbose {
				opts := col.Opts()
				descs := col.OptDescs()
				names := make([]string, 0, len(opts))
				for name := range opts {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Printf("  %-12s   %s=%v  %s\n", "", name, opts[name], descs[name])
				}
			}
			fmt.Println()
		}

		fmt.Println("Presets:")
		for _, name := range collectors.Presets() {
			p, err := collectors.GetPreset(name)
			if err != nil {
				return err
			}
			fmt.Printf("  %-12s %s\n", name, p.Description)
		}
		return nil
	},
}

func init() {
	collectorsCmd.Flags().BoolP("verbose", "v", false, "Show collector options")
	rootCmd.AddCommand(collectorsCmd)
}
