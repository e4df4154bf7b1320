package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hackid/internal/config"
	"hackid/internal/http/handler"
	"hackid/internal/http/middleware"
	"hackid/internal/ratelimit"
	"hackid/internal/session"
	"hackid/pkg/health"
	"hackid/services/admin"
	"hackid/services/apikey"
	"hackid/services/app"
	"hackid/services/event"
	"hackid/services/oauth"
	"hackid/services/testutil"
	"hackid/services/user"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router   http.Handler
	apps     *app.Service
	tokens   *oauth.Service
	users    *user.Service
	admins   *admin.Service
	keys     *apikey.Service
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
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
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Session.Secret = "test-secret-test-secret-test-secret"
	cfg.Session.Issuer = "hack.sv"
	cfg.Session.TTL = time.Hour
	cfg.Event.CurrentEventID = "scrapyard"

	apps := app.NewService(app.ServiceParams{DB: db, Node: node})
	users := user.NewService(user.ServiceParams{DB: db, Node: node})
	admins := admin.NewService(admin.ServiceParams{DB: db, Node: node})
	keys := apikey.NewService(apikey.ServiceParams{DB: db, Node: node})
	tokens := oauth.NewService(oauth.ServiceParams{DB: db, Apps: apps})
	events := event.NewService(event.ServiceParams{DB: db, Node: node, Users: users, Config: cfg})
	sessions := session.NewManager(cfg)

	router := NewRouter(RouterParams{
		Config:  cfg,
		Logger:  zap.NewNop(),
		Health:  health.ProvideHealth(health.HealthParams{DB: db}),
		OAuth:   handler.NewOAuthHandler(apps, tokens, users, admins),
		API:     handler.NewAPIHandler(events, users, admins, tokens),
		Admin:   handler.NewAdminHandler(apps, keys, admins),
		Session: middleware.NewSessionAuth(sessions, admins),
		Keys:    middleware.NewAPIKeyAuth(keys, ratelimit.NewSlidingWindow()),
	})

	return &testEnv{
		router:   router,
		apps:     apps,
		tokens:   tokens,
		users:    users,
		admins:   admins,
		keys:     keys,
		sessions: sessions,
	}
}

func (e *testEnv) seedUser(t *testing.T) {
	t.Helper()
	_, err := e.users.Create(context.Background(), user.CreateInput{
		Email:         "u@test.com",
		LegalName:     "Avery Quinn Test",
		PreferredName: "Avery",
		Pronouns:      "they/them",
		DOB:           "2006-04-01",
	})
	require.NoError(t, err)
}

func (e *testEnv) sessionCookie(t *testing.T, email string) *http.Cookie {
	t.Helper()
	token, err := e.sessions.Issue(email)
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: token}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthorizationCodeFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	a, secret, err := env.apps.Create(ctx, app.CreateInput{
		Name:          "Judging Portal",
		RedirectURIs:  []string{"https://x.test/cb"},
		AllowedScopes: []string{"profile", "email"},
		AllowAnyone:   true,
	})
	require.NoError(t, err)

	cookie := env.sessionCookie(t, "u@test.com")

	// Step 1: the authorize endpoint describes the consent prompt.
	req := httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?response_type=code&client_id="+a.ClientID+
			"&redirect_uri="+url.QueryEscape("https://x.test/cb")+
			"&scope="+url.QueryEscape("profile email")+"&state=xyz", nil)
	req.AddCookie(cookie)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	consent := decodeJSON(t, w)
	require.Equal(t, a.ClientID, consent["client_id"])
	require.Equal(t, "xyz", consent["state"])

	// Step 2: approval redirects back with a code.
	form := url.Values{
		"client_id":    {a.ClientID},
		"redirect_uri": {"https://x.test/cb"},
		"scope":        {"profile email"},
		"state":        {"xyz"},
		"action":       {"approve"},
	}
	req = httptest.NewRequest(http.MethodPost, "/oauth/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "https", loc.Scheme)
	require.Equal(t, "x.test", loc.Host)
	require.Equal(t, "/cb", loc.Path)
	require.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	// Step 3: exchange the code for an access token.
	form = url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {a.ClientID},
		"client_secret": {secret},
		"redirect_uri":  {"https://x.test/cb"},
	}
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	tok := decodeJSON(t, w)
	require.Equal(t, "Bearer", tok["token_type"])
	require.Equal(t, float64(3600), tok["expires_in"])
	require.Equal(t, "profile email", tok["scope"])
	accessToken, _ := tok["access_token"].(string)
	require.NotEmpty(t, accessToken)

	// Step 4: user info is filtered to exactly the granted scopes.
	req = httptest.NewRequest(http.MethodGet, "/api/oauth/user-info", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeJSON(t, w)
	require.Equal(t, map[string]any{
		"legal_name":     "Avery Quinn Test",
		"preferred_name": "Avery",
		"pronouns":       "they/them",
		"email":          "u@test.com",
	}, info)

	// The code is single-use.
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])
}

func TestAuthorizeRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/oauth/authorize?client_id=x&redirect_uri=y", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthorizeRejectsBadParamsInline(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	a, _, err := env.apps.Create(ctx, app.CreateInput{
		Name:          "Judging Portal",
		RedirectURIs:  []string{"https://x.test/cb"},
		AllowedScopes: []string{"profile"},
		AllowAnyone:   true,
	})
	require.NoError(t, err)
	cookie := env.sessionCookie(t, "u@test.com")

	// Unregistered redirect URI: rejected inline, never redirected.
	req := httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?client_id="+a.ClientID+"&redirect_uri="+url.QueryEscape("https://x.test/cb/")+"&scope=profile", nil)
	req.AddCookie(cookie)
	w := env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", decodeJSON(t, w)["error"])
	require.Empty(t, w.Header().Get("Location"))

	// Scope outside the client's grant.
	req = httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?client_id="+a.ClientID+"&redirect_uri="+url.QueryEscape("https://x.test/cb")+"&scope=email", nil)
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_scope", decodeJSON(t, w)["error"])

	// Unknown client.
	req = httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?client_id=app_nope&redirect_uri="+url.QueryEscape("https://x.test/cb"), nil)
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unsupported response type.
	req = httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?response_type=token&client_id="+a.ClientID+"&redirect_uri="+url.QueryEscape("https://x.test/cb"), nil)
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConsentDenialRedirectsWithError(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	a, _, err := env.apps.Create(ctx, app.CreateInput{
		Name:          "Judging Portal",
		RedirectURIs:  []string{"https://x.test/cb"},
		AllowedScopes: []string{"profile"},
		AllowAnyone:   true,
	})
	require.NoError(t, err)

	form := url.Values{
		"client_id":    {a.ClientID},
		"redirect_uri": {"https://x.test/cb"},
		"scope":        {"profile"},
		"state":        {"xyz"},
		"action":       {"deny"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(env.sessionCookie(t, "u@test.com"))
	w := env.do(req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", loc.Query().Get("error"))
	require.Equal(t, "xyz", loc.Query().Get("state"))
}

func TestSkipConsentIssuesCodeImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	a, _, err := env.apps.Create(ctx, app.CreateInput{
		Name:              "First Party",
		RedirectURIs:      []string{"https://x.test/cb"},
		AllowedScopes:     []string{"profile"},
		AllowAnyone:       true,
		SkipConsentScreen: true,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/authorize?client_id="+a.ClientID+"&redirect_uri="+url.QueryEscape("https://x.test/cb")+"&scope=profile&state=s1", nil)
	req.AddCookie(env.sessionCookie(t, "u@test.com"))
	w := env.do(req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.NotEmpty(t, loc.Query().Get("code"))
	require.Equal(t, "s1", loc.Query().Get("state"))
}

func TestRestrictedAppEnforcesAllowlist(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	a, _, err := env.apps.Create(ctx, app.CreateInput{
		Name:              "Staff Tool",
		RedirectURIs:      []string{"https://x.test/cb"},
		AllowedScopes:     []string{"profile"},
		AllowAnyone:       false,
		SkipConsentScreen: true,
	})
	require.NoError(t, err)

	authorize := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet,
			"/oauth/authorize?client_id="+a.ClientID+"&redirect_uri="+url.QueryEscape("https://x.test/cb")+"&scope=profile", nil)
		req.AddCookie(env.sessionCookie(t, "u@test.com"))
		return env.do(req)
	}

	// Not an admin: denied via redirect.
	w := authorize()
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", loc.Query().Get("error"))

	// Admin without an explicit grant: still denied.
	_, err = env.admins.Add(ctx, "u@test.com", "bootstrap")
	require.NoError(t, err)
	w = authorize()
	loc, err = url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", loc.Query().Get("error"))

	// Admin with the grant: code issued.
	_, err = env.admins.GrantAppPermission(ctx, "u@test.com", a.ID, "read", "bootstrap")
	require.NoError(t, err)
	w = authorize()
	loc, err = url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Empty(t, loc.Query().Get("error"))
	require.NotEmpty(t, loc.Query().Get("code"))
}

func TestTokenEndpointRejectsBadClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, _, err := env.apps.Create(ctx, app.CreateInput{
		Name:          "Judging Portal",
		RedirectURIs:  []string{"https://x.test/cb"},
		AllowedScopes: []string{"profile"},
		AllowAnyone:   true,
	})
	require.NoError(t, err)

	code, err := env.tokens.IssueCode(ctx, a.ClientID, "u@test.com", "https://x.test/cb", "profile")
	require.NoError(t, err)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code.Code},
		"client_id":     {a.ClientID},
		"client_secret": {"wrong"},
		"redirect_uri":  {"https://x.test/cb"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_client", decodeJSON(t, w)["error"])
}

func TestRevokeEndpoint(t *testing.T) {
	env := newTestEnv(t)

	// Missing token is the only failure mode.
	req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown tokens revoke successfully, twice.
	for i := 0; i < 2; i++ {
		form := url.Values{"token": {"anything"}}
		req = httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w = env.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, decodeJSON(t, w)["success"])
	}
}

func TestLegacyFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	_, _, err := env.apps.Create(ctx, app.CreateInput{
		Name:                "Legacy App",
		RedirectURIs:        []string{"https://legacy.test/cb"},
		RedirectURLTemplate: "https://legacy.test/cb/{token}",
		AllowedScopes:       []string{"profile"},
		AllowAnyone:         true,
	})
	require.NoError(t, err)

	_, key, err := env.keys.Create(ctx, apikey.CreateInput{
		Name:        "legacy consumer",
		Permissions: []string{apikey.PermissionOAuth},
	})
	require.NoError(t, err)

	// Step 1: browser hits the legacy endpoint and is bounced back with a
	// token appended.
	req := httptest.NewRequest(http.MethodGet,
		"/oauth?redirect="+url.QueryEscape("https://legacy.test/cb/placeholder"), nil)
	req.AddCookie(env.sessionCookie(t, "u@test.com"))
	w := env.do(req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	legacyToken := loc.Query().Get("token")
	require.NotEmpty(t, legacyToken)

	// Step 2: the app's backend trades the token for the fixed field set.
	body := strings.NewReader(`{"token":"` + legacyToken + `"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/oauth/user-info", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	out := decodeJSON(t, w)
	require.Equal(t, true, out["success"])
	u, ok := out["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "u@test.com", u["email"])
	require.Equal(t, "Avery Quinn Test", u["legal_name"])
	require.Equal(t, false, u["is_admin"])
	require.Contains(t, u, "dob")
	require.Contains(t, u, "pronouns")
	require.Contains(t, u, "preferred_name")

	// The token is single-use.
	body = strings.NewReader(`{"token":"` + legacyToken + `"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/oauth/user-info", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	w = env.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLegacyRejectsUnregisteredRedirect(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)

	req := httptest.NewRequest(http.MethodGet,
		"/oauth?redirect="+url.QueryEscape("https://evil.test/steal/tok"), nil)
	req.AddCookie(env.sessionCookie(t, "u@test.com"))
	w := env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIKeyGate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	// No key at all.
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/user-status?user_email=u@test.com", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Key without the required permission.
	_, limited, err := env.keys.Create(ctx, apikey.CreateInput{
		Name:        "events only",
		Permissions: []string{apikey.PermissionEventsRegister},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/user-status?user_email=u@test.com", nil)
	req.Header.Set("Authorization", "Bearer "+limited)
	w = env.do(req)
	require.Equal(t, http.StatusForbidden, w.Code)

	// The wildcard passes every check.
	_, wildcard, err := env.keys.Create(ctx, apikey.CreateInput{
		Name:        "root",
		Permissions: []string{apikey.PermissionAll},
	})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/user-status?user_email=u@test.com", nil)
	req.Header.Set("Authorization", "Bearer "+wildcard)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	_, key, err := env.keys.Create(ctx, apikey.CreateInput{
		Name:         "throttled",
		Permissions:  []string{apikey.PermissionUsersRead},
		RateLimitRPM: 2,
	})
	require.NoError(t, err)

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		return env.do(req)
	}

	w := call()
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	w = call()
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = call()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRegisterEventEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	_, key, err := env.keys.Create(ctx, apikey.CreateInput{
		Name:        "registrar",
		Permissions: []string{apikey.PermissionEventsRegister},
	})
	require.NoError(t, err)

	body := strings.NewReader(`{"user_email":"u@test.com","info":{"tshirt_size":"M"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/register-event", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decodeJSON(t, w)["success"])

	// Unknown users are a client error in the legacy shape.
	body = strings.NewReader(`{"user_email":"nobody@test.com"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/register-event", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	w = env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, false, decodeJSON(t, w)["success"])
}

func TestAdminSurfaceRequiresAdminSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()

	// No session.
	w := env.do(httptest.NewRequest(http.MethodGet, "/admin/api/apps", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Session without admin standing.
	req := httptest.NewRequest(http.MethodGet, "/admin/api/apps", nil)
	req.AddCookie(env.sessionCookie(t, "u@test.com"))
	w = env.do(req)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Admin session.
	_, err := env.admins.Add(ctx, "u@test.com", "bootstrap")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin/api/apps", nil)
	req.AddCookie(env.sessionCookie(t, "u@test.com"))
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminCreatesAppAndKey(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t)
	ctx := context.Background()
	_, err := env.admins.Add(ctx, "u@test.com", "bootstrap")
	require.NoError(t, err)
	cookie := env.sessionCookie(t, "u@test.com")

	body := strings.NewReader(`{
		"name": "New App",
		"redirect_uris": ["https://new.test/cb"],
		"allowed_scopes": ["profile", "email"]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/apps", body)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w := env.do(req)
	require.Equal(t, http.StatusCreated, w.Code)
	out := decodeJSON(t, w)
	require.NotEmpty(t, out["client_secret"])

	// The secret is not in the persisted representation.
	created, _ := out["app"].(map[string]any)
	require.NotContains(t, created, "client_secret_hash")

	body = strings.NewReader(`{
		"name": "bot key",
		"permissions": ["discord.read", "discord.write"],
		"rate_limit_rpm": 30
	}`)
	req = httptest.NewRequest(http.MethodPost, "/admin/api/keys", body)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusCreated, w.Code)
	out = decodeJSON(t, w)
	apiKey, _ := out["api_key"].(string)
	require.True(t, strings.HasPrefix(apiKey, apikey.KeyPrefix))

	// Unknown permissions are rejected outright.
	body = strings.NewReader(`{"name": "bad", "permissions": ["servers.nuke"]}`)
	req = httptest.NewRequest(http.MethodPost, "/admin/api/keys", body)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w = env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscordVerificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, key, err := env.keys.Create(ctx, apikey.CreateInput{
		Name:        "discord bot",
		Permissions: []string{apikey.PermissionDiscordRead, apikey.PermissionDiscordWrite},
	})
	require.NoError(t, err)

	body := strings.NewReader(`{"discord_id":"1234","discord_username":"avery#0001"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/discord/verification-token", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)

	req = httptest.NewRequest(http.MethodGet, "/api/discord/verification-token/"+token, nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/discord/verification-token/"+token, nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	// Consumed tokens disappear.
	req = httptest.NewRequest(http.MethodGet, "/api/discord/verification-token/"+token, nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w = env.do(req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
