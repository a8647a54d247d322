package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pixmock-backend/pkg/config"
	"github.com/angelmondragon/pixmock-backend/pkg/db"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
)

// MaybeRun applies the embedded migrations on boot when auto-migrate is enabled.
// Postgres is only auto-migrated in dev; sqlite files are always local so they
// migrate in any environment.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if client.Driver() == config.StoreDriverPostgres && !cfg.App.IsDev() {
		return nil
	}

	dialect, err := Dialect(client.Driver())
	if err != nil {
		return err
	}
	if err := ValidateEmbedded(); err != nil {
		return err
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": dialect})
	logg.Info(ctx, "running Goose migrations (auto-run)")

	if err := RunEmbedded(ctx, sqlDB, dialect, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
