package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wareline/wareline/internal/config"
	"github.com/wareline/wareline/internal/store"
)

// queueStatus is the JSON shape of the status command output.
type queueStatus struct {
	Device         string `json:"device"`
	Pending        int    `json:"pending"`
	OldestEnqueued string `json:"oldest_enqueued,omitempty"`
	MaxRetrySeen   int    `json:"max_retry_seen"`
}

func (s queueStatus) String() string {
	if s.Pending == 0 {
		return fmt.Sprintf("device %s: queue empty", s.Device)
	}
	return fmt.Sprintf("device %s: %d pending (oldest %s, max retries %d)",
		s.Device, s.Pending, s.OldestEnqueued, s.MaxRetrySeen)
}

// NewStatusCommand creates the status command: a local queue inspection.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the pending-operation queue state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ops, err := st.Operations(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}

	status := queueStatus{Device: cfg.Device.ID, Pending: len(ops)}
	for i, op := range ops {
		if i == 0 {
			status.OldestEnqueued = op.EnqueuedAt.Format(time.RFC3339)
		}
		if op.RetryCount > status.MaxRetrySeen {
			status.MaxRetrySeen = op.RetryCount
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(status)
}
