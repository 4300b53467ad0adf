package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/srg/levctl/controller"
	"github.com/srg/levctl/internal/wire"
)

// presetCmd represents the preset command group
var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage device-side preset slots",
	Long: `Manage the controller's on-device preset slots.

Example:
  levctl preset list AA:BB:CC:DD:EE:FF
  levctl preset save AA:BB:CC:DD:EE:FF 2 "Cello Swells"
  levctl preset load AA:BB:CC:DD:EE:FF 2
  levctl preset delete AA:BB:CC:DD:EE:FF 2`,
}

var presetListCmd = &cobra.Command{
	Use:   "list <device-address>",
	Short: "List the device's preset slots",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetList,
}

var presetSaveCmd = &cobra.Command{
	Use:   "save <device-address> <slot> <name>",
	Short: "Save the device's active settings into a slot",
	Args:  cobra.ExactArgs(3),
	RunE:  runPresetSave,
}

var presetLoadCmd = &cobra.Command{
	Use:   "load <device-address> <slot>",
	Short: "Recall a preset slot on the device",
	Args:  cobra.ExactArgs(2),
	RunE:  runPresetLoad,
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete <device-address> <slot>",
	Short: "Clear a preset slot",
	Args:  cobra.ExactArgs(2),
	RunE:  runPresetDelete,
}

func init() {
	presetCmd.AddCommand(presetListCmd, presetSaveCmd, presetLoadCmd, presetDeleteCmd)
}

// parseSlot validates a slot argument against the device's slot range.
func parseSlot(arg string) (int, error) {
	slot, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: must be a number", arg)
	}
	if slot < 0 || slot >= wire.PresetSlotCount {
		return 0, fmt.Errorf("invalid slot %d: must be 0 to %d", slot, wire.PresetSlotCount-1)
	}
	return slot, nil
}

func runPresetList(cmd *cobra.Command, args []string) error {
	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		presets, err := ctrl.ListDevicePresets(ctx)
		if err != nil {
			return err
		}
		return displayPresets(os.Stdout, presets)
	})
}

func displayPresets(out io.Writer, presets []wire.PresetMetadata) error {
	faint := color.New(color.Faint)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tNAME\tSAVED")

	for _, p := range presets {
		name := p.Name
		saved := "-"
		if !p.Valid {
			name = faint.Sprint(name)
		} else if p.Timestamp != 0 {
			saved = time.Unix(int64(p.Timestamp), 0).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.Slot, name, saved)
	}

	return w.Flush()
}

func runPresetSave(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[1])
	if err != nil {
		return err
	}
	name := args[2]

	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		if err := ctrl.SaveDevicePreset(ctx, slot, name); err != nil {
			return err
		}
		fmt.Printf("Saved active settings to slot %d as %q\n", slot, name)
		return nil
	})
}

func runPresetLoad(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[1])
	if err != nil {
		return err
	}

	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		settings, err := ctrl.LoadDevicePreset(ctx, slot)
		if err != nil {
			return err
		}

		fmt.Printf("Loaded preset slot %d, device now runs:\n\n", slot)
		out, err := yaml.Marshal(settings)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	})
}

func runPresetDelete(cmd *cobra.Command, args []string) error {
	slot, err := parseSlot(args[1])
	if err != nil {
		return err
	}

	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		if err := ctrl.DeleteDevicePreset(ctx, slot); err != nil {
			return err
		}
		fmt.Printf("Cleared preset slot %d\n", slot)
		return nil
	})
}
