package db

import (
	"context"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hackid/internal/config"
)

var Module = fx.Module("database",
	fx.Provide(
		Dialect,
		New,
	),
	fx.Invoke(RegisterLifecycle),
)

// Dialect resolves the gorm dialector from configuration. SQLite is the
// default store; postgres and mysql are supported for shared deployments.
func Dialect(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DB.Type {
	case "", "sqlite":
		return sqlite.Open(cfg.DB.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DB.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DB.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DB.Type)
	}
}

func New(cfg *config.Config, dialector gorm.Dialector) (*gorm.DB, error) {
	logLevel := logger.Warn
	showSQL := false
	if cfg.AppEnv != "production" {
		logLevel = logger.Info
		showSQL = true
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewZapGormLogger(zap.L(), logLevel, showSQL),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		zap.L().Warn("[DB] failed to register db telemetry", zap.Error(err))
	}

	zap.L().Info("[DB] Database connection successfully configured.", zap.String("type", cfg.DB.Type))
	return db, nil
}

// RegisterLifecycle closes the underlying pool on shutdown.
func RegisterLifecycle(lc fx.Lifecycle, db *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}
