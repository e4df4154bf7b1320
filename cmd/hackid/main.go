package main

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"hackid/internal/config"
	hackidhttp "hackid/internal/http"
	"hackid/internal/logger"
	"hackid/internal/ratelimit"
	"hackid/internal/server"
	"hackid/internal/session"
	"hackid/internal/telemetry"
	"hackid/pkg/db"
	"hackid/pkg/gen"
	"hackid/pkg/health"
	"hackid/pkg/redis"
	"hackid/services/admin"
	"hackid/services/apikey"
	"hackid/services/app"
	"hackid/services/event"
	"hackid/services/oauth"
	"hackid/services/user"
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&app.App{},
		&user.User{},
		&admin.Admin{},
		&admin.AppPermission{},
		&apikey.APIKey{},
		&apikey.UsageLog{},
		&oauth.AuthorizationCode{},
		&oauth.AccessToken{},
		&oauth.LegacyToken{},
		&oauth.VerificationToken{},
		&event.TemporaryInfo{},
	)
}

func main() {
	fx.New(
		config.Module,
		logger.Module,
		telemetry.Module,
		db.Module,
		redis.Module,
		ratelimit.Module,
		session.Module,
		health.Module,

		gen.Module,
		fx.Invoke(migrate),

		app.Module,
		user.Module,
		admin.Module,
		apikey.Module,
		oauth.Module,
		event.Module,

		hackidhttp.Module,
		server.Module,
	).Run()
}
