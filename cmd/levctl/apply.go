package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/srg/levctl/controller"
	"github.com/srg/levctl/internal/wire"
)

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply <device-address> <settings.yaml>",
	Short: "Apply a settings file to the controller",
	Long: `Loads a YAML settings file, validates it and writes the full settings
model to the controller. Fields missing from the file fall back to their
defaults, so a file only needs the values it wants to change.

Example:
  levctl apply AA:BB:CC:DD:EE:FF rig.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	settings, err := loadSettingsFile(args[1])
	if err != nil {
		return err
	}

	// Validate up front so an invalid file fails before any radio work.
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		if err := ctrl.ApplySettings(ctx, settings); err != nil {
			return err
		}

		fmt.Println("Settings applied")
		return nil
	})
}

// loadSettingsFile reads a YAML settings file over a defaulted model, so
// unspecified fields keep their documented defaults.
func loadSettingsFile(path string) (wire.Settings, error) {
	var settings wire.Settings
	defaults.SetDefaults(&settings)

	data, err := os.ReadFile(path)
	if err != nil {
		return wire.Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return wire.Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return settings, nil
}
