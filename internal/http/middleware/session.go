package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hackid/internal/session"
	"hackid/services/admin"
)

// Context keys set by the session middleware.
const (
	ContextEmail = "session_email"
)

// SessionAuth guards browser-facing routes with the signed session cookie.
type SessionAuth struct {
	sessions *session.Manager
	admins   *admin.Service
}

func NewSessionAuth(sessions *session.Manager, admins *admin.Service) *SessionAuth {
	return &SessionAuth{sessions: sessions, admins: admins}
}

// RequireSession rejects requests without a valid session cookie and puts
// the authenticated email into the gin context.
func (m *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(session.CookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "authentication required",
			})
			return
		}
		claims, err := m.sessions.Verify(cookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "invalid or expired session",
			})
			return
		}
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// RequireAdmin additionally checks the admin registry. Must run after
// RequireSession.
func (m *SessionAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetString(ContextEmail)
		if email == "" || !m.admins.IsAdmin(c.Request.Context(), email) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "forbidden",
				"error_description": "admin access required",
			})
			return
		}
		c.Next()
	}
}
