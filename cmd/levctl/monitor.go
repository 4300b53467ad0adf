package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
	"gopkg.in/yaml.v3"

	"github.com/srg/levctl/controller"
	"github.com/srg/levctl/internal/wire"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <device-address>",
	Short: "Watch settings changes pushed by the controller",
	Long: `Stays connected and prints every settings change the controller pushes,
for example after a front-panel preset recall. By default only the changed
fields are shown as a diff; use --full to print the whole model each time.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

var monitorFull bool

func init() {
	monitorCmd.Flags().BoolVar(&monitorFull, "full", false, "Print the full settings model on every update")
}

// settingsUpdate is one observed change, timestamped at arrival.
type settingsUpdate struct {
	at       time.Time
	settings wire.Settings
}

const monitorBufferSize = 64

func runMonitor(cmd *cobra.Command, args []string) error {
	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		if !ctrl.Capabilities().Notifications {
			return fmt.Errorf("controller does not support settings notifications")
		}

		// Updates land on the transport's notification goroutine; the
		// overlapped ring keeps that path non-blocking and drops the oldest
		// update when the printer falls behind.
		buffer := mpmc.NewOverlappedRingBuffer[settingsUpdate](monitorBufferSize)
		updated := make(chan struct{}, 1)

		ctrl.SetOnSettingsChange(func(s wire.Settings) {
			if _, err := buffer.EnqueueM(settingsUpdate{at: time.Now(), settings: s}); err != nil {
				logger.WithField("error", err).Warn("Dropped a settings update")
				return
			}
			select {
			case updated <- struct{}{}:
			default:
			}
		})
		defer ctrl.SetOnSettingsChange(nil)

		previous, err := ctrl.ReadSettings(ctx)
		if err != nil {
			return err
		}
		// The initial read lands in the buffer via the change callback;
		// drain it so the loop starts from a clean baseline.
		for !buffer.IsEmpty() {
			if _, err := buffer.Dequeue(); err != nil {
				break
			}
		}

		fmt.Printf("Monitoring %s, Ctrl+C to stop\n\n", args[0])
		printSettingsYAML(previous)

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-updated:
			}

			for !buffer.IsEmpty() {
				update, err := buffer.Dequeue()
				if err != nil {
					break
				}

				fmt.Printf("--- %s\n", update.at.Format(time.RFC3339))
				if monitorFull {
					printSettingsYAML(update.settings)
				} else if err := printSettingsDiff(previous, update.settings); err != nil {
					logger.WithField("error", err).Warn("Failed to render settings diff")
					printSettingsYAML(update.settings)
				}
				previous = update.settings
			}
		}
	})
}

func printSettingsYAML(settings wire.Settings) {
	out, err := yaml.Marshal(settings)
	if err != nil {
		fmt.Printf("failed to render settings: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

// printSettingsDiff prints only the fields that changed between two models.
func printSettingsDiff(before, after wire.Settings) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return err
	}

	diff, err := gojsondiff.New().Compare(beforeJSON, afterJSON)
	if err != nil {
		return err
	}
	if !diff.Modified() {
		fmt.Println("(no field changes)")
		return nil
	}

	var left map[string]interface{}
	if err := json.Unmarshal(beforeJSON, &left); err != nil {
		return err
	}

	rendered, err := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: false,
		Coloring:       true,
	}).Format(diff)
	if err != nil {
		return err
	}

	fmt.Print(rendered)
	return nil
}
