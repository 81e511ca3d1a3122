package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot when auto-migrate is on.
// Model-derived SQLite stores are always prepared; Postgres only in dev.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	m, err := New(client, cfg.DB, DefaultDir)
	if err != nil {
		return err
	}
	if m.UsesGoose() && !cfg.App.IsDev() {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver, "goose": m.UsesGoose()})
	logg.Info(ctx, "preparing schema on boot")
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("auto-migrating: %w", err)
	}
	logg.Info(ctx, "schema ready")
	return nil
}
