package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"hackid/internal/http/middleware"
	"hackid/services/admin"
	"hackid/services/app"
	"hackid/services/oauth"
	"hackid/services/user"
)

// OAuthHandler serves the authorization-code flow, the token and
// revocation endpoints, user info, and the deprecated redirect flow.
type OAuthHandler struct {
	apps   *app.Service
	tokens *oauth.Service
	users  *user.Service
	admins *admin.Service
}

func NewOAuthHandler(apps *app.Service, tokens *oauth.Service, users *user.Service, admins *admin.Service) *OAuthHandler {
	return &OAuthHandler{apps: apps, tokens: tokens, users: users, admins: admins}
}

func oauthError(c *gin.Context, status int, code, description string) {
	c.JSON(status, gin.H{"error": code, "error_description": description})
}

// redirectWith appends query parameters to a redirect target, preserving
// any query string the client registered.
func redirectWith(c *gin.Context, target string, params url.Values) {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	c.Redirect(http.StatusFound, target+sep+params.Encode())
}

// validateAuthorizeRequest checks the client, redirect URI and scope of an
// authorization request. Failures here happen before a trusted redirect
// target exists, so they are reported inline rather than via redirect.
func (h *OAuthHandler) validateAuthorizeRequest(c *gin.Context, clientID, redirectURI, responseType, scope string) (*app.App, []string, bool) {
	if clientID == "" || redirectURI == "" {
		oauthError(c, http.StatusBadRequest, "invalid_request", "client_id and redirect_uri are required")
		return nil, nil, false
	}
	if responseType != "code" {
		oauthError(c, http.StatusBadRequest, "invalid_request", "only response_type=code is supported")
		return nil, nil, false
	}

	a, err := h.apps.GetByClientID(c.Request.Context(), clientID)
	if err != nil {
		oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
		return nil, nil, false
	}
	if a == nil || !a.IsActive {
		oauthError(c, http.StatusBadRequest, "invalid_request", "unknown or disabled client")
		return nil, nil, false
	}
	if !app.ValidateRedirectURI(a, redirectURI) {
		oauthError(c, http.StatusBadRequest, "invalid_request", "redirect_uri is not registered for this client")
		return nil, nil, false
	}
	scopes, err := app.ValidateScopes(a, scope)
	if err != nil {
		oauthError(c, http.StatusBadRequest, "invalid_scope", err.Error())
		return nil, nil, false
	}
	return a, scopes, true
}

// userMayAccess enforces the allowlist for restricted apps: the user must
// be an admin holding an explicit read grant for the app.
func (h *OAuthHandler) userMayAccess(c *gin.Context, a *app.App, email string) bool {
	if a.AllowAnyone {
		return true
	}
	ctx := c.Request.Context()
	return h.admins.IsAdmin(ctx, email) && h.admins.HasAppPermission(ctx, email, a.ID, "read")
}

// Authorize is step 1 of the authorization-code flow. Parameter errors are
// reported inline; once the client and redirect URI have been validated,
// authorization failures redirect back to the client with an error code.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	clientID := c.Query("client_id")
	redirectURI := c.Query("redirect_uri")
	scope := c.DefaultQuery("scope", "profile email")
	state := c.Query("state")
	responseType := c.DefaultQuery("response_type", "code")

	a, scopes, ok := h.validateAuthorizeRequest(c, clientID, redirectURI, responseType, scope)
	if !ok {
		return
	}

	email := c.GetString(middleware.ContextEmail)
	if !h.userMayAccess(c, a, email) {
		redirectWith(c, redirectURI, url.Values{
			"error":             {"access_denied"},
			"error_description": {"insufficient_permissions"},
			"state":             {state},
		})
		return
	}

	if a.SkipConsentScreen {
		h.issueAndRedirect(c, a, email, redirectURI, strings.Join(scopes, " "), state)
		return
	}

	// The consent UI is rendered by a separate frontend; it posts the
	// user's decision back to the consent endpoint.
	c.JSON(http.StatusOK, gin.H{
		"client_id":    a.ClientID,
		"app_name":     a.Name,
		"app_icon":     a.Icon,
		"scopes":       scopes,
		"redirect_uri": redirectURI,
		"state":        state,
	})
}

// AuthorizeConsent is step 2: the user's approve/deny decision. The
// request is re-validated in full so the decision cannot be replayed with
// altered parameters.
func (h *OAuthHandler) AuthorizeConsent(c *gin.Context) {
	clientID := c.PostForm("client_id")
	redirectURI := c.PostForm("redirect_uri")
	scope := c.PostForm("scope")
	state := c.PostForm("state")

	a, scopes, ok := h.validateAuthorizeRequest(c, clientID, redirectURI, "code", scope)
	if !ok {
		return
	}

	email := c.GetString(middleware.ContextEmail)
	if !h.userMayAccess(c, a, email) {
		redirectWith(c, redirectURI, url.Values{
			"error":             {"access_denied"},
			"error_description": {"insufficient_permissions"},
			"state":             {state},
		})
		return
	}

	if c.PostForm("action") != "approve" {
		redirectWith(c, redirectURI, url.Values{
			"error": {"access_denied"},
			"state": {state},
		})
		return
	}

	h.issueAndRedirect(c, a, email, redirectURI, strings.Join(scopes, " "), state)
}

func (h *OAuthHandler) issueAndRedirect(c *gin.Context, a *app.App, email, redirectURI, scope, state string) {
	code, err := h.tokens.IssueCode(c.Request.Context(), a.ClientID, email, redirectURI, scope)
	if err != nil {
		oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	redirectWith(c, redirectURI, url.Values{
		"code":  {code.Code},
		"state": {state},
	})
}

// Token exchanges an authorization code for an access token.
func (h *OAuthHandler) Token(c *gin.Context) {
	resp, err := h.tokens.Exchange(c.Request.Context(), oauth.ExchangeInput{
		GrantType:    c.PostForm("grant_type"),
		Code:         c.PostForm("code"),
		ClientID:     c.PostForm("client_id"),
		ClientSecret: c.PostForm("client_secret"),
		RedirectURI:  c.PostForm("redirect_uri"),
	})
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrUnsupportedGrantType):
			oauthError(c, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		case errors.Is(err, oauth.ErrInvalidRequest):
			oauthError(c, http.StatusBadRequest, "invalid_request", "missing required parameters")
		case errors.Is(err, oauth.ErrInvalidClient):
			oauthError(c, http.StatusUnauthorized, "invalid_client", "invalid client_id or client_secret")
		case errors.Is(err, oauth.ErrInvalidGrant):
			oauthError(c, http.StatusBadRequest, "invalid_grant", "invalid, expired, or already used authorization code")
		default:
			oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Revoke invalidates an access token. Revoking an unknown or already
// revoked token still succeeds, per RFC 7009.
func (h *OAuthHandler) Revoke(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		oauthError(c, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}
	if err := h.tokens.Revoke(c.Request.Context(), token); err != nil {
		oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UserInfo returns the token owner's profile filtered to the granted
// scopes.
func (h *OAuthHandler) UserInfo(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	t, err := h.tokens.VerifyAccessToken(c.Request.Context(), strings.TrimSpace(raw))
	if err != nil {
		oauthError(c, http.StatusUnauthorized, "invalid_token", "invalid or expired access token")
		return
	}

	u, err := h.users.GetByEmail(c.Request.Context(), t.UserEmail)
	if err != nil || u == nil {
		oauthError(c, http.StatusNotFound, "invalid_token", "user no longer exists")
		return
	}

	c.JSON(http.StatusOK, user.FilterFields(u, strings.Fields(t.Scope)))
}

// LegacyAuthorize implements the deprecated redirect flow: validate the
// redirect URL against registered templates, mint a short-lived token and
// bounce the browser back with it appended.
func (h *OAuthHandler) LegacyAuthorize(c *gin.Context) {
	redirectURL := c.Query("redirect")
	if redirectURL == "" {
		oauthError(c, http.StatusBadRequest, "invalid_request", "redirect parameter is required")
		return
	}
	if decoded, err := url.QueryUnescape(redirectURL); err == nil {
		redirectURL = decoded
	}

	a, err := h.apps.MatchRedirectTemplate(c.Request.Context(), redirectURL)
	if err != nil {
		oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if a == nil {
		oauthError(c, http.StatusBadRequest, "invalid_request", "redirect URL is not registered")
		return
	}

	email := c.GetString(middleware.ContextEmail)
	if !h.userMayAccess(c, a, email) {
		oauthError(c, http.StatusForbidden, "access_denied", "you do not have permission to access this app")
		return
	}

	t, err := h.tokens.IssueLegacyToken(c.Request.Context(), email)
	if err != nil {
		oauthError(c, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	redirectWith(c, redirectURL, url.Values{"token": {t.Token}})
}

// LegacyUserInfo is step 2 of the deprecated flow: an API key holding the
// oauth permission trades the short-lived token for a fixed field set.
func (h *OAuthHandler) LegacyUserInfo(c *gin.Context) {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "token is required"})
		return
	}

	email, err := h.tokens.RedeemLegacyToken(c.Request.Context(), body.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
		return
	}

	u, err := h.users.GetByEmail(c.Request.Context(), email)
	if err != nil || u == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"email":          u.Email,
			"legal_name":     u.LegalName,
			"preferred_name": u.PreferredName,
			"pronouns":       u.Pronouns,
			"dob":            u.DOB,
			"is_admin":       h.admins.IsAdmin(c.Request.Context(), u.Email),
		},
	})
}
