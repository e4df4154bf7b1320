package session

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/fx"

	"hackid/internal/config"
)

// CookieName carries the signed session token for browser flows.
const CookieName = "hackid_session"

// Claims is the payload of a user session token.
type Claims struct {
	Email string `json:"email"`
}

// Manager signs and validates user session tokens (HS256 JWTs).
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

var Module = fx.Module("session", fx.Provide(NewManager))

func NewManager(cfg *config.Config) *Manager {
	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		// Development fallback: sessions do not survive a restart.
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	return &Manager{
		secret: secret,
		issuer: cfg.Session.Issuer,
		ttl:    cfg.Session.TTL,
		now:    time.Now,
	}
}

// Issue mints a signed session token for the given user.
func (m *Manager) Issue(email string) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: m.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := m.now().UTC()
	std := gojwt.Claims{
		Subject:   email,
		Issuer:    m.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(m.ttl)),
		NotBefore: gojwt.NewNumericDate(now),
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(Claims{Email: email}).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize session token: %w", err)
	}
	return token, nil
}

// Verify validates a session token and returns its claims.
func (m *Manager) Verify(token string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	var std gojwt.Claims
	var custom Claims
	if err := parsed.Claims(m.secret, &std, &custom); err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	if err := std.ValidateWithLeeway(gojwt.Expected{Issuer: m.issuer, Time: m.now()}, 0); err != nil {
		return nil, fmt.Errorf("validate session claims: %w", err)
	}
	if custom.Email == "" {
		custom.Email = std.Subject
	}
	return &custom, nil
}

// Cookie wraps a session token into a cookie for the response.
func (m *Manager) Cookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
