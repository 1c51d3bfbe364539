package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/appetiteclub/reconciler/internal/catalog"
)

func NewPricesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Print the current price sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, _, logger, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			sheet, err := catalog.NewReader(store, logger).LoadPriceSheet(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range sheet.Names() {
				fmt.Fprintf(w, "%s\t%.2f\n", name, sheet[name])
			}
			return w.Flush()
		},
	}
}
