package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wareline/wareline/internal/basket"
	"github.com/wareline/wareline/internal/config"
	"github.com/wareline/wareline/internal/store"
)

// basketView is the JSON shape of one basket in CLI output.
type basketView struct {
	Tag        string `json:"tag"`
	Status     string `json:"status"`
	ProductRef string `json:"product_ref,omitempty"`
	BatchRef   string `json:"batch_ref,omitempty"`
	Warehouse  string `json:"warehouse,omitempty"`
	Quantity   int    `json:"quantity"`
	UpdatedBy  string `json:"updated_by"`
}

func viewOf(b basket.Basket) basketView {
	v := basketView{
		Tag:       b.Tag,
		Status:    b.Status.String(),
		Quantity:  b.Quantity,
		UpdatedBy: b.UpdatedBy,
	}
	if b.ProductRef != nil {
		v.ProductRef = *b.ProductRef
	}
	if b.BatchRef != nil {
		v.BatchRef = *b.BatchRef
	}
	if b.Warehouse != nil {
		v.Warehouse = *b.Warehouse
	}
	return v
}

func (v basketView) String() string {
	parts := []string{v.Tag, v.Status}
	if v.ProductRef != "" {
		parts = append(parts, fmt.Sprintf("product=%s qty=%d", v.ProductRef, v.Quantity))
	}
	if v.Warehouse != "" {
		parts = append(parts, "warehouse="+v.Warehouse)
	}
	return strings.Join(parts, "  ")
}

type basketList []basketView

func (l basketList) String() string {
	if len(l) == 0 {
		return "no baskets in local store"
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// NewBasketsCommand creates the baskets command group for inspecting the
// local store snapshot.
func NewBasketsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baskets",
		Short: "Inspect locally known baskets",
	}
	cmd.AddCommand(newBasketsListCommand(rootOpts))
	cmd.AddCommand(newBasketsShowCommand(rootOpts))
	return cmd
}

func newBasketsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all baskets in the local store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, st *store.Store) error {
				baskets, err := st.ListBaskets(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list baskets", err)
				}
				views := make(basketList, len(baskets))
				for i, b := range baskets {
					views[i] = viewOf(b)
				}
				f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return f.Success(views)
			})
		},
	}
}

func newBasketsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <tag>",
		Short:         "Show one basket's local snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, st *store.Store) error {
				b, err := st.GetBasket(ctx, args[0])
				if errors.Is(err, store.ErrBasketNotFound) {
					return WrapExitError(ExitFailure, fmt.Sprintf("basket %s not known locally", args[0]), nil)
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read basket", err)
				}
				f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return f.Success(viewOf(b))
			})
		},
	}
}

// withStore opens the configured database around a command body.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, *store.Store) error) error {
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
	return fn(ctx, st)
}
