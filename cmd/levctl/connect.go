package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/levctl/controller"
	"github.com/srg/levctl/internal/config"
	"github.com/srg/levctl/internal/transport/goble"
)

// loadConfig resolves the --config flag and loads the config file, falling
// back to defaults when no file exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// commandContext returns a context cancelled on Ctrl+C or SIGTERM. The
// returned stop function releases the signal handler.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nInterrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// withController runs fn against a connected controller, handling logger
// setup, connection progress, and teardown. It is the shared skeleton of
// every command that talks to a device.
func withController(cmd *cobra.Command, address string, fn func(ctx context.Context, ctrl *controller.Controller, logger *logrus.Logger) error) error {
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

	progress := NewProgressPrinter(fmt.Sprintf("Connecting to %s", address), "Connecting")
	progress.Start()

	session := goble.NewSession(logger)
	ctrl := controller.New(logger, session, controller.Options{
		Connect:   cfg.Connect,
		KeepAlive: cfg.KeepAlive,
	})

	err = ctrl.Connect(ctx, address)
	progress.Stop()
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Disconnect(); err != nil {
			logger.WithField("error", err).Warn("Disconnect reported an error")
		}
	}()

	return fn(ctx, ctrl, logger)
}
