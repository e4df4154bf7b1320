package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hackid/services/admin"
	"hackid/services/event"
	"hackid/services/oauth"
	"hackid/services/user"
)

// APIHandler serves the key-gated programmatic surface used by event
// tooling and the Discord bot.
type APIHandler struct {
	events *event.Service
	users  *user.Service
	admins *admin.Service
	tokens *oauth.Service
}

func NewAPIHandler(events *event.Service, users *user.Service, admins *admin.Service, tokens *oauth.Service) *APIHandler {
	return &APIHandler{events: events, users: users, admins: admins, tokens: tokens}
}

func apiError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

type registerEventRequest struct {
	UserEmail string         `json:"user_email" binding:"required"`
	EventID   string         `json:"event_id"`
	Info      map[string]any `json:"info"`
}

// RegisterEvent adds a user to an event's attendance list, optionally
// recording their registration details in the same call.
func (h *APIHandler) RegisterEvent(c *gin.Context) {
	var req registerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "user_email is required")
		return
	}

	u, err := h.events.Register(c.Request.Context(), req.UserEmail, req.EventID, req.Info)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrUnknownUser):
			apiError(c, http.StatusBadRequest, "user not found")
		case errors.Is(err, event.ErrNoEvent):
			apiError(c, http.StatusBadRequest, "no event specified and no current event configured")
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    gin.H{"email": u.Email, "events": u.Events},
	})
}

type submitInfoRequest struct {
	UserEmail string         `json:"user_email" binding:"required"`
	EventID   string         `json:"event_id"`
	Info      map[string]any `json:"info" binding:"required"`
}

// SubmitTemporaryInfo upserts per-event registration details for a user.
func (h *APIHandler) SubmitTemporaryInfo(c *gin.Context) {
	var req submitInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "user_email and info are required")
		return
	}

	if err := h.events.SubmitTemporaryInfo(c.Request.Context(), req.UserEmail, req.EventID, req.Info); err != nil {
		switch {
		case errors.Is(err, event.ErrUnknownUser):
			apiError(c, http.StatusBadRequest, "user not found")
		case errors.Is(err, event.ErrNoEvent):
			apiError(c, http.StatusBadRequest, "no event specified and no current event configured")
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UserStatus reports a user's registration standing for one event.
func (h *APIHandler) UserStatus(c *gin.Context) {
	email := c.Query("user_email")
	if email == "" {
		apiError(c, http.StatusBadRequest, "user_email parameter is required")
		return
	}

	status, err := h.events.UserStatus(c.Request.Context(), email, c.Query("event_id"))
	if err != nil {
		switch {
		case errors.Is(err, event.ErrUnknownUser):
			apiError(c, http.StatusBadRequest, "user not found")
		case errors.Is(err, event.ErrNoEvent):
			apiError(c, http.StatusBadRequest, "no event specified and no current event configured")
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}

// CurrentEvent returns the configured current event.
func (h *APIHandler) CurrentEvent(c *gin.Context) {
	id := h.events.CurrentEventID()
	if id == "" {
		apiError(c, http.StatusNotFound, "no current event available")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"current_event": gin.H{"id": id},
	})
}

// Test lets integrators confirm their key and permissions work.
func (h *APIHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "API key authentication successful",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// DiscordUser resolves a user by their linked Discord account.
func (h *APIHandler) DiscordUser(c *gin.Context) {
	u, err := h.users.GetByDiscordID(c.Request.Context(), c.Param("discord_id"))
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	if u == nil {
		apiError(c, http.StatusNotFound, "user not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":             u.ID,
			"email":          u.Email,
			"legal_name":     u.LegalName,
			"preferred_name": u.PreferredName,
			"pronouns":       u.Pronouns,
			"dob":            u.DOB,
			"discord_id":     u.DiscordID,
			"events":         u.Events,
			"verified":       true,
			"is_admin":       h.admins.IsAdmin(c.Request.Context(), u.Email),
		},
	})
}

type verificationTokenRequest struct {
	DiscordID       string `json:"discord_id" binding:"required"`
	DiscordUsername string `json:"discord_username" binding:"required"`
	MessageID       string `json:"message_id"`
}

// CreateVerificationToken mints a Discord verification token for the bot.
func (h *APIHandler) CreateVerificationToken(c *gin.Context) {
	var req verificationTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "discord_id and discord_username are required")
		return
	}

	t, err := h.tokens.CreateVerificationToken(c.Request.Context(), req.DiscordID, req.DiscordUsername, req.MessageID)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"token":              t.Token,
		"expires_in_minutes": int(oauth.VerificationTokenTTL / time.Minute),
	})
}

// GetVerificationToken returns an unexpired, unused verification token.
func (h *APIHandler) GetVerificationToken(c *gin.Context) {
	t, err := h.tokens.GetVerificationToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		apiError(c, http.StatusNotFound, "token not found or expired")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token_data": gin.H{
			"token":            t.Token,
			"discord_id":       t.DiscordID,
			"discord_username": t.DiscordUsername,
			"message_id":       t.MessageID,
			"expires_at":       t.ExpiresAt,
			"used":             t.Used,
		},
	})
}

// MarkVerificationUsed consumes a verification token.
func (h *APIHandler) MarkVerificationUsed(c *gin.Context) {
	if err := h.tokens.MarkVerificationUsed(c.Request.Context(), c.Param("token")); err != nil {
		apiError(c, http.StatusNotFound, "token not found or expired")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "token marked as used"})
}
