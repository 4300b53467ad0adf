package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/levctl/controller"
	"github.com/srg/levctl/internal/activity"
	"github.com/srg/levctl/internal/wire"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <device-address> <controller-id> [value]",
	Short: "Send a control change to the controller",
	Long: `Sends a single control change value, or drives the controller
interactively from the keyboard.

In interactive mode the up/down arrows (or k/j) nudge the value by 1,
K/J by 10, and q quits. Keystrokes count as user activity, so the
keep-alive link stays warm while you play.

Example:
  levctl send AA:BB:CC:DD:EE:FF 7 64
  levctl send AA:BB:CC:DD:EE:FF 1 --interactive`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSend,
}

var sendInteractive bool

func init() {
	sendCmd.Flags().BoolVarP(&sendInteractive, "interactive", "i", false, "Drive the value from the keyboard")
}

func runSend(cmd *cobra.Command, args []string) error {
	controllerID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid controller id %q: must be a number", args[1])
	}

	if sendInteractive {
		if len(args) > 2 {
			return fmt.Errorf("interactive mode takes no value argument")
		}
		return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
			return runInteractiveSend(ctx, ctrl, controllerID)
		})
	}

	if len(args) < 3 {
		return fmt.Errorf("value argument required unless --interactive is set")
	}
	value, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid value %q: must be a number", args[2])
	}

	return withController(cmd, args[0], func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error {
		if err := ctrl.Control().Send(ctx, controllerID, value); err != nil {
			return err
		}
		fmt.Printf("Sent CC %d = %d\n", controllerID, value)
		return nil
	})
}

// runInteractiveSend drives one controller from raw-mode stdin. Each keystroke
// feeds the activity tracker, so an actively played session never hits the
// idle cutoff.
func runInteractiveSend(ctx context.Context, ctrl *controller.Controller, controllerID int) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("interactive mode requires a terminal")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	var notifyActivity func()
	src := &activity.FuncSource{
		StartFn: func(notify func()) error {
			notifyActivity = notify
			return nil
		},
		StopFn: func() { notifyActivity = nil },
	}
	if err := ctrl.Tracker().AddSource(src); err != nil {
		return err
	}

	keyCh := make(chan byte, 16)
	go func() {
		defer close(keyCh)
		buf := make([]byte, 8)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			for _, b := range buf[:n] {
				keyCh <- b
			}
		}
	}()

	value := 64
	fmt.Printf("Driving CC %d, up/down or k/j to nudge, K/J for 10, q to quit\r\n", controllerID)
	printValue := func() {
		fmt.Printf("\rCC %d: %3d  ", controllerID, value)
	}
	printValue()

	// escState tracks a partially received arrow key sequence.
	escState := 0
	for {
		var key byte
		select {
		case <-ctx.Done():
			fmt.Print("\r\n")
			return ctx.Err()
		case b, ok := <-keyCh:
			if !ok {
				fmt.Print("\r\n")
				return nil
			}
			key = b
		}

		delta := 0
		switch escState {
		case 1:
			if key == '[' {
				escState = 2
				continue
			}
			escState = 0
		case 2:
			escState = 0
			switch key {
			case 'A':
				delta = 1
			case 'B':
				delta = -1
			}
		default:
			switch key {
			case 0x1b:
				escState = 1
				continue
			case 'k', '+', '=':
				delta = 1
			case 'j', '-':
				delta = -1
			case 'K':
				delta = 10
			case 'J':
				delta = -10
			case 'q', 0x03, 0x04:
				fmt.Print("\r\n")
				return nil
			}
		}

		if delta == 0 {
			continue
		}

		next := value + delta
		if next < 0 {
			next = 0
		}
		if next > wire.MaxControlValue {
			next = wire.MaxControlValue
		}
		value = next

		if notifyActivity != nil {
			notifyActivity()
		}
		if err := ctrl.Control().Send(ctx, controllerID, value); err != nil {
			fmt.Print("\r\n")
			return err
		}
		printValue()
	}
}
