package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"hackid/internal/config"
)

var Module = fx.Module("logger",
	fx.Provide(Provide),
	fx.Invoke(ReplaceGlobals),
)

// Provide returns a zap logger appropriate for the configured environment.
func Provide(cfg *config.Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ReplaceGlobals installs the logger as the process-wide default so packages
// can log through zap.L().
func ReplaceGlobals(logger *zap.Logger) {
	zap.ReplaceGlobals(logger)
}
