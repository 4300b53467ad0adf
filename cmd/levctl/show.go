package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/srg/levctl/controller"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <device-address>",
	Short: "Show the controller's current settings as YAML",
	Long: `Reads the full settings model from the controller and prints it as YAML,
in the same format 'levctl apply' consumes.

Example:
  levctl show AA:BB:CC:DD:EE:FF > rig.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showOutput string

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Write YAML to file instead of stdout")
}

func runShow(cmd *cobra.Command, args []string) error {
	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		settings, err := ctrl.ReadSettings(ctx)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}

		if showOutput != "" {
			if err := os.WriteFile(showOutput, out, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", showOutput, err)
			}
			fmt.Printf("Settings written to %s\n", showOutput)
			return nil
		}

		fmt.Print(string(out))
		return nil
	})
}
