package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/appetiteclub/reconciler/internal/app"
)

// NewSeedDemoCommand writes the dishes and ingredient groups of a catalog
// file into the document store.
func NewSeedDemoCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Write the demo catalog into the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cfg, logger, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			if file == "" {
				file = cfg.Seeding.CatalogFile
			}
			if err := app.SeedCatalog(ctx, store, file, logger); err != nil {
				return fmt.Errorf("demo seeding failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog seeded from %s\n", file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "catalog", "", "catalog yaml file (defaults to seeding.catalog)")
	return cmd
}
