package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"hackid/internal/config"
	"hackid/internal/http/handler"
	"hackid/internal/http/middleware"
	"hackid/pkg/health"
	"hackid/services/apikey"
)

var Module = fx.Module("http",
	fx.Provide(
		handler.NewOAuthHandler,
		handler.NewAPIHandler,
		handler.NewAdminHandler,
		middleware.NewSessionAuth,
		middleware.NewAPIKeyAuth,
		NewRouter,
	),
)

type RouterParams struct {
	fx.In
	Config  *config.Config
	Logger  *zap.Logger
	Health  health.HealthService
	OAuth   *handler.OAuthHandler
	API     *handler.APIHandler
	Admin   *handler.AdminHandler
	Session *middleware.SessionAuth
	Keys    *middleware.APIKeyAuth
}

// NewRouter builds the full route table.
func NewRouter(p RouterParams) http.Handler {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(p.Logger))

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)

	// OAuth 2.0 authorization-code flow.
	r.GET("/oauth/authorize", p.Session.RequireSession(), p.OAuth.Authorize)
	r.POST("/oauth/authorize", p.Session.RequireSession(), p.OAuth.AuthorizeConsent)
	r.POST("/oauth/token", p.OAuth.Token)
	r.POST("/oauth/revoke", p.OAuth.Revoke)

	// Deprecated redirect flow.
	r.GET("/oauth", p.Session.RequireSession(), p.OAuth.LegacyAuthorize)

	api := r.Group("/api")
	{
		api.GET("/oauth/user-info", p.OAuth.UserInfo)
		api.POST("/oauth/user-info",
			p.Keys.Require(apikey.PermissionOAuth, "oauth_user_info"), p.OAuth.LegacyUserInfo)

		api.POST("/register-event",
			p.Keys.Require(apikey.PermissionEventsRegister, "register_event"), p.API.RegisterEvent)
		api.POST("/submit-temporary-info",
			p.Keys.Require(apikey.PermissionEventsSubmitInfo, "submit_temporary_info"), p.API.SubmitTemporaryInfo)
		api.GET("/user-status",
			p.Keys.Require(apikey.PermissionUsersRead, "user_status"), p.API.UserStatus)
		api.GET("/current-event", p.API.CurrentEvent)
		api.GET("/test",
			p.Keys.Require(apikey.PermissionUsersRead, "test"), p.API.Test)

		discord := api.Group("/discord")
		{
			discord.GET("/user/:discord_id",
				p.Keys.Require(apikey.PermissionDiscordRead, "discord_user"), p.API.DiscordUser)
			discord.POST("/verification-token",
				p.Keys.Require(apikey.PermissionDiscordWrite, "create_verification_token"), p.API.CreateVerificationToken)
			discord.GET("/verification-token/:token",
				p.Keys.Require(apikey.PermissionDiscordRead, "get_verification_token"), p.API.GetVerificationToken)
			discord.DELETE("/verification-token/:token",
				p.Keys.Require(apikey.PermissionDiscordWrite, "mark_verification_used"), p.API.MarkVerificationUsed)
		}
	}

	admin := r.Group("/admin/api", p.Session.RequireSession(), p.Session.RequireAdmin())
	{
		admin.GET("/apps", p.Admin.ListApps)
		admin.POST("/apps", p.Admin.CreateApp)
		admin.GET("/apps/:id", p.Admin.GetApp)
		admin.PATCH("/apps/:id", p.Admin.UpdateApp)
		admin.DELETE("/apps/:id", p.Admin.DeleteApp)

		admin.GET("/keys", p.Admin.ListKeys)
		admin.POST("/keys", p.Admin.CreateKey)
		admin.PATCH("/keys/:id", p.Admin.UpdateKey)
		admin.DELETE("/keys/:id", p.Admin.DeleteKey)
		admin.GET("/keys/:id/logs", p.Admin.KeyLogs)

		admin.GET("/admins", p.Admin.ListAdmins)
		admin.POST("/admins", p.Admin.AddAdmin)
		admin.DELETE("/admins/:email", p.Admin.RemoveAdmin)
		admin.POST("/admins/:email/reactivate", p.Admin.ReactivateAdmin)

		admin.POST("/app-permissions", p.Admin.GrantAppPermission)
		admin.DELETE("/app-permissions", p.Admin.RevokeAppPermission)
	}

	return r
}
