package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hakim/recongraph/internal/cache"
	"github.com/hakim/recongraph/internal/collectors"
	"github.com/hakim/recongraph/internal/config"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/scan"
	"github.com/hakim/recongraph/internal/storage"
	"github.com/hakim/recongraph/internal/target"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scan against a target",
	Long: `Run a reconnaissance scan against a single target.

The target type is inferred from the seed value: domains and hostnames, IPv4
and IPv6 addresses, CIDR netblocks, e-mail addresses and international phone
numbers are recognized automatically. Quote the value to force name or
username treatment ("John Smith" is a person, "jsmith" a username), or pass
--type to override detection entirely.

Collectors default to the config file's enabled_collectors list, or the full
built-in set when that is empty; use --collectors to restrict the run or
--preset to pick a named selection. Discovered facts stream to the terminal
as they are found and are persisted to the configured database with full
provenance.

Examples:
  recongraph scan -t example.com
  recongraph scan -t 192.0.2.0/24 --collectors dnsresolve,whois
  recongraph scan -t example.com --preset passive
  recongraph scan -t '"John Smith"' --timeout 10m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetValue, _ := cmd.Flags().GetString("target")
		targetType, _ := cmd.Flags().GetString("type")
		collectorsFlag, _ := cmd.Flags().GetString("collectors")
		presetFlag, _ := cmd.Flags().GetString("preset")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		quiet, _ := cmd.Flags().GetBool("quiet")

		if targetType == "" {
			targetType = target.GuessType(targetValue)
			if targetType == "" {
				return fmt.Errorf("could not determine target type for %q; pass --type", targetValue)
			}
		}
		// Quotes only force type detection; the stored value is bare.
		targetValue = strings.Trim(strings.TrimSpace(targetValue), `"`)

		ids, err := selectCollectors(collectorsFlag, presetFlag, cfg)
		if err != nil {
			return err
		}
		cols, err := collectors.CreateSet(ids)
		if err != nil {
			return err
		}

		store, err := storage.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		ca, err := cache.New(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("initializing cache: %w", err)
		}

		var sink func(*event.Event)
		if !quiet {
			sink = printEvent
		}

		ctrl, err := scan.NewController(cfg, store, ca, scan.Params{
			Name:        targetValue,
			TargetValue: targetValue,
			TargetType:  targetType,
			Collectors:  cols,
			Sink:        sink,
		})
		if err != nil {
			return err
		}

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stopSignals()

		fmt.Printf("[*] Scan %s started against %s (%s)\n", ctrl.ID(), targetValue, targetType)
		started := time.Now()

		status, err := ctrl.Run(ctx)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		events, _ := store.ScanEvents(ctrl.ID())
		fmt.Println()
		fmt.Printf("[+] Scan %s\n", status)
		fmt.Printf("    Target:   %s\n", targetValue)
		fmt.Printf("    Scan ID:  %s\n", ctrl.ID())
		fmt.Printf("    Events:   %d\n", len(events))
		fmt.Printf("    Elapsed:  %s\n", time.Since(started).Round(time.Second))
		return nil
	},
}

var (
	typeColor   = color.New(color.FgCyan)
	moduleColor = color.New(color.FgYellow)
)

// printMu serializes sink output: the bus invokes the sink from whichever
// worker goroutine published the event, concurrently across workers.
var printMu sync.Mutex

// printEvent streams one discovered fact to the terminal.
func printEvent(e *event.Event) {
	if e.Type == event.TypeRoot {
		return
	}
	module := e.Module
	if module == "" {
		module = "seed"
	}
	printMu.Lock()
	defer printMu.Unlock()
	fmt.Printf("  %-28s %-12s %s\n",
		typeColor.Sprint(e.Type), moduleColor.Sprint(module), e.String())
}

// selectCollectors resolves the enabled collector ids: the --collectors flag
// wins, then --preset, then the config file's enabled_collectors list. An
// empty result means every registered collector.
func selectCollectors(collectorsFlag, presetFlag string, cfg *config.Config) ([]string, error) {
	ids := splitCSV(collectorsFlag)
	if presetFlag != "" {
		if len(ids) > 0 {
			return nil, fmt.Errorf("--preset and --collectors are mutually exclusive")
		}
		preset, err := collectors.GetPreset(presetFlag)
		if err != nil {
			return nil, err
		}
		return preset.Collectors, nil
	}
	if len(ids) == 0 {
		return cfg.EnabledCollectors, nil
	}
	return ids, nil
}

// splitCSV splits a comma-separated string into a trimmed, non-empty slice.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func init() {
	scanCmd.Flags().StringP("target", "t", "", "Target seed value (required)")
	scanCmd.Flags().String("type", "", "Force target type instead of inferring it")
	scanCmd.Flags().String("collectors", "", "Comma-separated collector ids to enable (default: all)")
	scanCmd.Flags().String("preset", "", "Named collector preset (all, passive, footprint, investigate)")
	scanCmd.Flags().Duration("timeout", 0, "Abort the scan after this duration (0 = no limit)")
	scanCmd.Flags().BoolP("quiet", "q", false, "Suppress live event output")

	scanCmd.MarkFlagRequired("target")

	rootCmd.AddCommand(scanCmd)
}
