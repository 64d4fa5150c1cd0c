// Command routerproxy runs the fan-out API proxy and durable command
// dispatcher for a fleet of RouterOS-speaking devices: one local TCP
// listener and one durable command queue per enabled device, each backed
// by a single serialized upstream session.
//
// Usage:
//
//	routerproxy [--config routerproxy.yaml]
//
// The device list and per-device settings (host, port, credentials,
// proxy_port, enabled) are read from the YAML file named by devices_file
// in the daemon config (see config.go), not from flags: a real deployment
// points this at the external device inventory's export instead.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikrotik-fleet/routerproxy/pkg/config"
	"github.com/mikrotik-fleet/routerproxy/pkg/log"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/supervisor"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "routerproxy",
		Short: "Fan-out RouterOS API proxy and durable command dispatcher",
		RunE:  run,
	}
	root.Flags().StringVar(&configFile, "config", "", "path to routerproxy.yaml (default: search ./ then /etc/routerproxy/)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadDaemonConfig(configFile)
	if err != nil {
		return err
	}

	logger, closeLogger, err := buildLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLogger()

	devices, err := config.NewYAMLStore(cfg.DevicesFile)
	if err != nil {
		return fmt.Errorf("routerproxy: load devices: %w", err)
	}

	store, err := queue.NewStore(cfg.QueueDB)
	if err != nil {
		return fmt.Errorf("routerproxy: open queue store: %w", err)
	}
	defer store.Close()

	sup := supervisor.New(store, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	all, err := devices.Devices(ctx)
	if err != nil {
		return fmt.Errorf("routerproxy: list devices: %w", err)
	}
	if err := sup.StartAll(ctx, all); err != nil {
		slog.Error("one or more devices failed to start", "error", err)
	}
	defer sup.StopAll()

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// buildLogger wires a CBOR FileLogger (when logFile is set) and an slog
// console adapter into one log.MultiLogger, matching SPEC_FULL.md's
// ambient logging stack.
func buildLogger(logFile string) (log.Logger, func(), error) {
	console := log.NewSlogAdapter(slog.Default())
	if logFile == "" {
		return console, func() {}, nil
	}

	fileLogger, err := log.NewFileLogger(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("routerproxy: open log file: %w", err)
	}
	multi := log.NewMultiLogger(console, fileLogger)
	return multi, func() { fileLogger.Close() }, nil
}
