package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/appetiteclub/reconciler/internal/app"
	"github.com/appetiteclub/reconciler/internal/catalog"
	"github.com/appetiteclub/reconciler/internal/order"
	"github.com/appetiteclub/reconciler/internal/reconciler"
)

// NewSweepCommand reconciles every open order once and prints the outcome
// counts. Settlements still wait for the configured delay.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile all open orders once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cfg, logger, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			sink, err := app.OpenSink(cfg, logger)
			if err != nil {
				return err
			}
			deps := reconciler.Deps{
				Store:   store,
				Menu:    catalog.NewReader(store, logger),
				Settler: reconciler.NewDelaySettler(cfg.Reconcile.SettleDelay),
			}
			if sink != nil {
				defer sink.Close()
				deps.Publisher = sink
			}
			rec := reconciler.New(deps, reconciler.Options{
				ConditionalWrites: cfg.Reconcile.ConditionalWrites,
				StrictOptions:     cfg.Reconcile.StrictOptions,
			}, logger)

			if workers <= 0 {
				workers = cfg.Reconcile.SweepWorkers
			}
			sweeper := reconciler.NewSweeper(order.NewDocumentRepo(store, logger), rec, workers, logger)
			report, err := sweeper.Sweep(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "orders: %d\n", report.Orders)
			outcomes := make([]string, 0, len(report.Outcomes))
			for outcome := range report.Outcomes {
				outcomes = append(outcomes, string(outcome))
			}
			sort.Strings(outcomes)
			for _, outcome := range outcomes {
				fmt.Fprintf(out, "%s: %d\n", outcome, report.Outcomes[reconciler.Outcome(outcome)])
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d orders failed to reconcile", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent passes (defaults to reconcile.sweep_workers)")
	return cmd
}
