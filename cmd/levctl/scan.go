package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/levctl/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for lever controllers",
	Long: `Scan for lever controllers advertising the configuration service.

By default only controllers are listed; use --all to show every BLE device
in range.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAll       bool
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Show all BLE devices, not only controllers")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", scanFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := commandContext()
	defer stop()

	s, err := scanner.NewScanner(logger)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	opts := scanner.DefaultScanOptions()
	opts.Duration = scanDuration
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList
	if scanAll {
		opts.ServiceUUIDs = nil
	}

	progress := NewCountdownProgressPrinter("Scanning for controllers", "Scanning", scanDuration, "Processing results")
	progress.Start()
	defer progress.Stop()

	devices, err := s.Scan(ctx, opts, progress.Callback())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	progress.Stop()

	return displayDevices(devices)
}

func displayDevices(devices map[string]scanner.DeviceInfo) error {
	if len(devices) == 0 {
		fmt.Println("No controllers discovered")
		return nil
	}

	list := make([]scanner.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		list = append(list, d)
	}
	// Strongest signal first
	sort.Slice(list, func(i, j int) bool {
		return list[i].RSSI > list[j].RSSI
	})

	if scanFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSERVICES\tLAST SEEN")

	for _, d := range list {
		name := d.Name
		if name == "" {
			name = color.New(color.Faint).Sprint("(unnamed)")
		}

		services := strings.Join(d.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s ago\n",
			name, d.Address, d.RSSI, services, time.Since(d.LastSeen).Truncate(time.Second))
	}

	return w.Flush()
}
