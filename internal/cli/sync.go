package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wareline/wareline/internal/config"
	"github.com/wareline/wareline/internal/connectivity"
	"github.com/wareline/wareline/internal/remote"
	"github.com/wareline/wareline/internal/store"
	"github.com/wareline/wareline/internal/syncer"
)

// syncReport is the JSON shape of a manual drain result.
type syncReport struct {
	Synced       int `json:"synced"`
	StillPending int `json:"still_pending"`
	Skipped      int `json:"skipped"`
}

func (r syncReport) String() string {
	return fmt.Sprintf("synced %d, still pending %d, skipped %d",
		r.Synced, r.StillPending, r.Skipped)
}

// NewSyncCommand creates the sync command: a one-shot manual drain.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the pending-operation queue now",
		Long: `Replay all queued offline writes against the server immediately.

Unlike the daemon, this command assumes the network is reachable and
attempts the drain unconditionally; operations that still fail stay
queued with their retry count bumped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	client := remote.NewClient(cfg.Server.BaseURL, cfg.Device.ID, cfg.Server.Timeout.Std())
	sig := connectivity.NewSignal()
	sig.Set(true)
	rec := syncer.New(st, client, sig, syncer.WithMaxRetries(cfg.Sync.MaxRetries))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rep, err := rec.Drain(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "drain failed", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := f.Success(syncReport{Synced: rep.Synced, StillPending: rep.StillPending, Skipped: rep.Skipped}); err != nil {
		return err
	}
	if rep.StillPending > 0 {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("%d operations still pending", rep.StillPending), nil)
	}
	return nil
}
