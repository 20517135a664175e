package migrate

import (
	"context"
	"fmt"

	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at startup when the dev
// environment enables OPENBILLING_AUTO_MIGRATE. SQLite keeps the schema
// created by dbtest and is skipped.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service": cfg.Service.Name})
	if cfg.DB.IsSQLite() {
		logg.Warn(ctx, "auto-migrate skipped on sqlite")
		return nil
	}
	if err := ValidateEmbedded(); err != nil {
		return fmt.Errorf("embedded migrations invalid: %w", err)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	logg.Info(ctx, "auto-migrate starting")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	logg.Info(ctx, "auto-migrate finished")
	return nil
}
