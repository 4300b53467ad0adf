package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/levctl/controller"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <device-address>",
	Short: "Inspect a controller's capabilities and state",
	Long: `Connects to a controller and reports its capabilities, current settings
and preset directory.

Example:
  levctl inspect AA:BB:CC:DD:EE:FF
  levctl inspect AA:BB:CC:DD:EE:FF --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var inspectFormat string

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "table", "Output format (table, json)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectFormat != "table" && inspectFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", inspectFormat)
	}

	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		settings, err := ctrl.ReadSettings(ctx)
		if err != nil {
			logger.WithField("error", err).Warn("Settings read failed during inspect")
		}

		if inspectFormat == "json" {
			return printInspectJSON(ctrl, args[0], err == nil, settings)
		}
		return printInspectTable(ctrl, args[0], err == nil)
	})
}

func printInspectJSON(ctrl *controller.Controller, address string, haveSettings bool, settings interface{}) error {
	report := orderedmap.New[string, interface{}]()
	report.Set("address", address)

	deviceCaps := ctrl.Capabilities()
	caps := orderedmap.New[string, bool]()
	caps.Set("device_presets", deviceCaps.DevicePresets)
	caps.Set("notifications", deviceCaps.Notifications)
	caps.Set("realtime_control", deviceCaps.RealtimeControl)
	report.Set("capabilities", caps)

	if haveSettings {
		report.Set("settings", settings)
	}
	if ctrl.HasDevicePresetSupport() {
		report.Set("presets", ctrl.Presets())
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func printInspectTable(ctrl *controller.Controller, address string, haveSettings bool) error {
	bold := color.New(color.Bold)
	yes := color.New(color.FgGreen).Sprint("yes")
	no := color.New(color.FgRed).Sprint("no")

	boolStr := func(b bool) string {
		if b {
			return yes
		}
		return no
	}

	caps := ctrl.Capabilities()
	bold.Printf("Controller %s\n\n", address)
	fmt.Printf("  device presets:   %s\n", boolStr(caps.DevicePresets))
	fmt.Printf("  notifications:    %s\n", boolStr(caps.Notifications))
	fmt.Printf("  realtime control: %s\n", boolStr(caps.RealtimeControl))
	fmt.Printf("  settings read:    %s\n", boolStr(haveSettings))

	if ctrl.HasDevicePresetSupport() {
		fmt.Println()
		bold.Println("Presets")
		for _, p := range ctrl.Presets() {
			marker := " "
			if p.Valid {
				marker = "*"
			}
			fmt.Printf("  %s %d  %s\n", marker, p.Slot, p.Name)
		}
	}

	return nil
}
