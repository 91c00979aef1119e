package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wareline/wareline/internal/config"
	"github.com/wareline/wareline/internal/connectivity"
	"github.com/wareline/wareline/internal/remote"
	"github.com/wareline/wareline/internal/store"
	"github.com/wareline/wareline/internal/syncer"
)

// NewRunCommand creates the run command: the long-lived sync daemon.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the sync daemon",
		Long: `Start the wareline sync daemon.

The daemon watches broker connectivity, drains the pending-operation
queue whenever the device comes back online, and sweeps the queue on a
cron cadence to retry operations whose first replay failed.

Example:
  wareline run --config /etc/wareline/wareline.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, cmd)
		},
	}
}

func runDaemon(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Info("opening database", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	client := remote.NewClient(cfg.Server.BaseURL, cfg.Device.ID, cfg.Server.Timeout.Std())
	sig := connectivity.NewSignal()
	watcher := connectivity.NewWatcher(cfg.Broker.URL, sig)
	rec := syncer.New(st, client, sig, syncer.WithMaxRetries(cfg.Sync.MaxRetries))

	sched, err := syncer.NewScheduler(cfg.Sync.Sweep, rec, sig)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sweep spec", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case s := <-sigChan:
			slog.Info("received signal, shutting down", "signal", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("connectivity watcher stopped", "error", err)
		}
	}()
	go func() {
		if err := rec.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("reconciler stopped", "error", err)
		}
	}()
	sched.Start()

	slog.Info("daemon started", "device", cfg.Device.ID, "server", cfg.Server.BaseURL)
	fmt.Fprintln(cmd.OutOrStdout(), "Sync daemon started. Press Ctrl-C to stop.")

	<-ctx.Done()
	<-sched.Stop().Done()
	slog.Info("daemon stopped gracefully")
	return nil
}
