package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hackid/internal/ratelimit"
	"hackid/services/apikey"
)

// ContextAPIKey holds the authenticated *apikey.APIKey.
const ContextAPIKey = "api_key"

// APIKeyAuth guards programmatic routes: bearer key authentication, a
// permission check against the key's grants, and the per-key
// requests-per-minute budget.
type APIKeyAuth struct {
	keys    *apikey.Service
	limiter ratelimit.Limiter
}

func NewAPIKeyAuth(keys *apikey.Service, limiter ratelimit.Limiter) *APIKeyAuth {
	return &APIKeyAuth{keys: keys, limiter: limiter}
}

// Require authenticates the Authorization bearer key, requires the given
// permission, applies the key's rate limit and records usage. The
// X-RateLimit-* headers are set on limited responses as well as on 429s.
func (m *APIKeyAuth) Require(permission, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		key, err := m.keys.Authenticate(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or missing API key",
			})
			return
		}

		if !apikey.HasPermission(key, permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "insufficient permissions",
			})
			return
		}

		decision, err := m.limiter.Allow(c.Request.Context(), key.ID, key.RateLimitRPM)
		if err != nil {
			// Limiter backend failure should not take the API down.
			zap.L().Warn("rate limiter check failed", zap.String("key_id", key.ID), zap.Error(err))
			decision = ratelimit.Decision{Allowed: true, Limit: key.RateLimitRPM}
		}
		if decision.Limit > 0 {
			setRateLimitHeaders(c, decision)
		}
		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
			})
			return
		}

		go m.keys.LogUsage(context.WithoutCancel(c.Request.Context()), key.ID, action, map[string]any{
			"path":      c.FullPath(),
			"method":    c.Request.Method,
			"client_ip": c.ClientIP(),
		})

		c.Set(ContextAPIKey, key)
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
}

// APIKey pulls the authenticated key out of the gin context.
func APIKey(c *gin.Context) *apikey.APIKey {
	v, ok := c.Get(ContextAPIKey)
	if !ok {
		return nil
	}
	key, _ := v.(*apikey.APIKey)
	return key
}
