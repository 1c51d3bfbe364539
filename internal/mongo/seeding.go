package mongo

import (
	"context"
	"errors"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/appetiteclub/reconciler/internal/catalog"
	"github.com/appetiteclub/reconciler/internal/docstore"
	"go.mongodb.org/mongo-driver/mongo"
)

const catalogSeedApplication = "reconciler_catalog"

// ApplyCatalogSeeds writes the demo menu once per database. The seed tracker
// records applied seeds so restarts do not rewrite the catalog.
func ApplyCatalogSeeds(ctx context.Context, db *mongo.Database, store docstore.Store, menu catalog.Menu, logger apt.Logger) error {
	if db == nil {
		return errors.New("database is required for catalog seeding")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	seeds := []seed.Seed{
		{
			ID:          "2026-10-01_demo_catalog_v1",
			Description: "Create the demo dishes and their ingredient groups",
			Run: func(ctx context.Context) error {
				return catalog.Save(ctx, store, menu)
			},
		},
	}

	tracker := seed.NewMongoTracker(db)

	logger.Info("Applying catalog seeds", "dishes", len(menu.Dishes))
	if err := seed.Apply(ctx, tracker, seeds, catalogSeedApplication); err != nil {
		return err
	}
	logger.Info("Catalog seeds applied successfully")
	return nil
}
