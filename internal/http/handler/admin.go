package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hackid/internal/http/middleware"
	"hackid/services/admin"
	"hackid/services/apikey"
	"hackid/services/app"
)

// AdminHandler serves the session-gated management surface: OAuth client
// registration, API key issuance and the admin registry itself.
type AdminHandler struct {
	apps   *app.Service
	keys   *apikey.Service
	admins *admin.Service
}

func NewAdminHandler(apps *app.Service, keys *apikey.Service, admins *admin.Service) *AdminHandler {
	return &AdminHandler{apps: apps, keys: keys, admins: admins}
}

// ---- OAuth clients ----

type createAppRequest struct {
	Name                string   `json:"name" binding:"required"`
	Icon                string   `json:"icon"`
	RedirectURIs        []string `json:"redirect_uris" binding:"required"`
	RedirectURLTemplate string   `json:"redirect_url_template"`
	AllowedScopes       []string `json:"allowed_scopes" binding:"required"`
	AllowAnyone         bool     `json:"allow_anyone"`
	SkipConsentScreen   bool     `json:"skip_consent_screen"`
}

// CreateApp registers an OAuth client. The client secret appears in this
// response and is never retrievable afterwards.
func (h *AdminHandler) CreateApp(c *gin.Context) {
	var req createAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "name, redirect_uris and allowed_scopes are required")
		return
	}

	a, secret, err := h.apps.Create(c.Request.Context(), app.CreateInput{
		Name:                req.Name,
		Icon:                req.Icon,
		RedirectURIs:        req.RedirectURIs,
		RedirectURLTemplate: req.RedirectURLTemplate,
		AllowedScopes:       req.AllowedScopes,
		AllowAnyone:         req.AllowAnyone,
		SkipConsentScreen:   req.SkipConsentScreen,
		CreatedBy:           c.GetString(middleware.ContextEmail),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidRedirect), errors.Is(err, app.ErrInvalidScopes):
			apiError(c, http.StatusBadRequest, err.Error())
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"app":           a,
		"client_secret": secret,
	})
}

func (h *AdminHandler) ListApps(c *gin.Context) {
	apps, err := h.apps.List(c.Request.Context())
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "apps": apps})
}

func (h *AdminHandler) GetApp(c *gin.Context) {
	a, err := h.apps.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	if a == nil {
		apiError(c, http.StatusNotFound, "app not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "app": a})
}

type updateAppRequest struct {
	Name                *string  `json:"name"`
	Icon                *string  `json:"icon"`
	RedirectURIs        []string `json:"redirect_uris"`
	RedirectURLTemplate *string  `json:"redirect_url_template"`
	AllowedScopes       []string `json:"allowed_scopes"`
	AllowAnyone         *bool    `json:"allow_anyone"`
	SkipConsentScreen   *bool    `json:"skip_consent_screen"`
	IsActive            *bool    `json:"is_active"`
}

func (h *AdminHandler) UpdateApp(c *gin.Context) {
	var req updateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.apps.Update(c.Request.Context(), c.Param("id"), app.UpdateInput{
		Name:                req.Name,
		Icon:                req.Icon,
		RedirectURIs:        req.RedirectURIs,
		RedirectURLTemplate: req.RedirectURLTemplate,
		AllowedScopes:       req.AllowedScopes,
		AllowAnyone:         req.AllowAnyone,
		SkipConsentScreen:   req.SkipConsentScreen,
		IsActive:            req.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotFound):
			apiError(c, http.StatusNotFound, "app not found")
		case errors.Is(err, app.ErrInvalidRedirect), errors.Is(err, app.ErrInvalidScopes):
			apiError(c, http.StatusBadRequest, err.Error())
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "app": a})
}

func (h *AdminHandler) DeleteApp(c *gin.Context) {
	if err := h.apps.Delete(c.Request.Context(), c.Param("id")); err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---- API keys ----

type createKeyRequest struct {
	Name         string   `json:"name" binding:"required"`
	Permissions  []string `json:"permissions" binding:"required"`
	RateLimitRPM *int     `json:"rate_limit_rpm"`
}

// CreateKey issues an API key. The plaintext key appears in this response
// and is never retrievable afterwards.
func (h *AdminHandler) CreateKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "name and permissions are required")
		return
	}

	rpm := 60
	if req.RateLimitRPM != nil {
		rpm = *req.RateLimitRPM
	}

	record, plaintext, err := h.keys.Create(c.Request.Context(), apikey.CreateInput{
		Name:         req.Name,
		CreatedBy:    c.GetString(middleware.ContextEmail),
		Permissions:  req.Permissions,
		RateLimitRPM: rpm,
	})
	if err != nil {
		switch {
		case errors.Is(err, apikey.ErrUnknownPermission), errors.Is(err, apikey.ErrInvalidLimit):
			apiError(c, http.StatusBadRequest, err.Error())
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"key":     record,
		"api_key": plaintext,
	})
}

func (h *AdminHandler) ListKeys(c *gin.Context) {
	keys, err := h.keys.List(c.Request.Context())
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "keys": keys})
}

type updateKeyRequest struct {
	Name         *string  `json:"name"`
	Permissions  []string `json:"permissions"`
	RateLimitRPM *int     `json:"rate_limit_rpm"`
	IsActive     *bool    `json:"is_active"`
}

func (h *AdminHandler) UpdateKey(c *gin.Context) {
	var req updateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.keys.Update(c.Request.Context(), c.Param("id"), apikey.UpdateInput{
		Name:         req.Name,
		Permissions:  req.Permissions,
		RateLimitRPM: req.RateLimitRPM,
		IsActive:     req.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, apikey.ErrNotFound):
			apiError(c, http.StatusNotFound, "api key not found")
		case errors.Is(err, apikey.ErrUnknownPermission), errors.Is(err, apikey.ErrInvalidLimit):
			apiError(c, http.StatusBadRequest, err.Error())
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "key": record})
}

func (h *AdminHandler) DeleteKey(c *gin.Context) {
	if err := h.keys.Delete(c.Request.Context(), c.Param("id")); err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// KeyLogs returns recent usage entries for one key.
func (h *AdminHandler) KeyLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	logs, err := h.keys.Logs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
}

// ---- Admin registry ----

func (h *AdminHandler) ListAdmins(c *gin.Context) {
	admins, err := h.admins.List(c.Request.Context())
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "admins": admins})
}

type adminEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *AdminHandler) AddAdmin(c *gin.Context) {
	var req adminEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "email is required")
		return
	}

	record, err := h.admins.Add(c.Request.Context(), req.Email, c.GetString(middleware.ContextEmail))
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrAlreadyAdmin):
			apiError(c, http.StatusConflict, "already an admin")
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "admin": record})
}

func (h *AdminHandler) RemoveAdmin(c *gin.Context) {
	err := h.admins.Remove(c.Request.Context(), c.Param("email"))
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrProtectedAdmin):
			apiError(c, http.StatusForbidden, "the system administrator cannot be removed")
		case errors.Is(err, admin.ErrNotFound):
			apiError(c, http.StatusNotFound, "admin not found")
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) ReactivateAdmin(c *gin.Context) {
	err := h.admins.Reactivate(c.Request.Context(), c.Param("email"))
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrNotFound):
			apiError(c, http.StatusNotFound, "admin not found")
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type grantPermissionRequest struct {
	Email      string `json:"email" binding:"required"`
	AppID      string `json:"app_id" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

// GrantAppPermission allowlists an admin for a restricted OAuth client.
func (h *AdminHandler) GrantAppPermission(c *gin.Context) {
	var req grantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "email, app_id and permission are required")
		return
	}

	record, err := h.admins.GrantAppPermission(c.Request.Context(), req.Email, req.AppID, req.Permission, c.GetString(middleware.ContextEmail))
	if err != nil {
		apiError(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "permission": record})
}

func (h *AdminHandler) RevokeAppPermission(c *gin.Context) {
	var req grantPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "email, app_id and permission are required")
		return
	}

	err := h.admins.RevokeAppPermission(c.Request.Context(), req.Email, req.AppID, req.Permission)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrNotFound):
			apiError(c, http.StatusNotFound, "permission not found")
		default:
			apiError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
