package oauth

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hackid/pkg/util"
	"hackid/services/app"
)

// Service implements the authorization-code grant plus the deprecated
// redirect flow and Discord verification tokens.
type Service struct {
	db   *gorm.DB
	apps *app.Service
	now  func() time.Time
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Apps *app.Service
}

var Module = fx.Module("oauth.module", fx.Provide(NewService))

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, apps: p.Apps, now: time.Now}
}

// IssueCode mints an authorization code after the resource owner has
// approved the request. The caller is responsible for having validated
// the client, redirect URI and scope beforehand.
func (s *Service) IssueCode(ctx context.Context, clientID, userEmail, redirectURI, scope string) (*AuthorizationCode, error) {
	code := &AuthorizationCode{
		Code:        util.GenerateToken(32),
		ClientID:    clientID,
		UserEmail:   userEmail,
		RedirectURI: redirectURI,
		Scope:       scope,
		ExpiresAt:   s.now().Add(CodeTTL),
	}
	if err := s.db.WithContext(ctx).Create(code).Error; err != nil {
		return nil, err
	}
	return code, nil
}

// ExchangeInput carries the token endpoint's form parameters.
type ExchangeInput struct {
	GrantType    string
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Exchange redeems an authorization code for an access token. The code is
// consumed atomically: a conditional update flips used from false to true,
// and a second redemption of the same code affects zero rows and fails
// with ErrInvalidGrant.
func (s *Service) Exchange(ctx context.Context, in ExchangeInput) (*TokenResponse, error) {
	if in.GrantType != "authorization_code" {
		return nil, ErrUnsupportedGrantType
	}
	if in.Code == "" || in.ClientID == "" || in.RedirectURI == "" {
		return nil, ErrInvalidRequest
	}

	a, err := s.apps.GetByClientID(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if a == nil || !a.IsActive || s.apps.VerifySecret(a, in.ClientSecret) != nil {
		return nil, ErrInvalidClient
	}

	var code AuthorizationCode
	err = s.db.WithContext(ctx).Where("code = ?", in.Code).First(&code).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}
	if code.ClientID != in.ClientID || code.RedirectURI != in.RedirectURI {
		return nil, ErrInvalidGrant
	}
	if !s.now().Before(code.ExpiresAt) {
		return nil, ErrInvalidGrant
	}

	res := s.db.WithContext(ctx).
		Model(&AuthorizationCode{}).
		Where("code = ? AND used = ?", in.Code, false).
		Update("used", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		// Lost the race or already redeemed.
		return nil, ErrInvalidGrant
	}

	token := &AccessToken{
		Token:     util.GenerateToken(32),
		ClientID:  code.ClientID,
		UserEmail: code.UserEmail,
		Scope:     code.Scope,
		ExpiresAt: s.now().Add(TokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(TokenTTL / time.Second),
		Scope:       token.Scope,
	}, nil
}

// VerifyAccessToken resolves a bearer token. Expiry and revocation are
// checked here rather than by a sweeper.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*AccessToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var t AccessToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if t.Revoked || !s.now().Before(t.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	return &t, nil
}

// Revoke marks an access token revoked. Unknown and already-revoked
// tokens succeed, so callers cannot probe for live tokens.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Model(&AccessToken{}).
		Where("token = ?", token).
		Update("revoked", true).Error
}

// IssueLegacyToken mints a short-lived unscoped token for the deprecated
// redirect flow. Any previous token for the user is replaced.
func (s *Service) IssueLegacyToken(ctx context.Context, userEmail string) (*LegacyToken, error) {
	if err := s.db.WithContext(ctx).
		Where("user_email = ?", userEmail).
		Delete(&LegacyToken{}).Error; err != nil {
		return nil, err
	}
	t := &LegacyToken{
		Token:     util.GenerateToken(32),
		UserEmail: userEmail,
		ExpiresAt: s.now().Add(LegacyTokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// RedeemLegacyToken consumes a legacy token and returns the owning user's
// email. Deletion doubles as the single-use guard: whichever caller
// deletes the row wins, everyone else gets ErrInvalidToken.
func (s *Service) RedeemLegacyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	var t LegacyToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}

	res := s.db.WithContext(ctx).Where("token = ?", token).Delete(&LegacyToken{})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected != 1 {
		return "", ErrInvalidToken
	}
	if !s.now().Before(t.ExpiresAt) {
		zap.L().Debug("expired legacy token redeemed", zap.String("user_email", t.UserEmail))
		return "", ErrInvalidToken
	}
	return t.UserEmail, nil
}

// CreateVerificationToken mints a Discord verification token for the bot.
func (s *Service) CreateVerificationToken(ctx context.Context, discordID, discordUsername, messageID string) (*VerificationToken, error) {
	t := &VerificationToken{
		Token:           util.GenerateToken(24),
		DiscordID:       discordID,
		DiscordUsername: discordUsername,
		MessageID:       messageID,
		ExpiresAt:       s.now().Add(VerificationTokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetVerificationToken resolves an unused, unexpired verification token.
func (s *Service) GetVerificationToken(ctx context.Context, token string) (*VerificationToken, error) {
	var t VerificationToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if t.Used || !s.now().Before(t.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	return &t, nil
}

// MarkVerificationUsed consumes a verification token.
func (s *Service) MarkVerificationUsed(ctx context.Context, token string) error {
	res := s.db.WithContext(ctx).
		Model(&VerificationToken{}).
		Where("token = ? AND used = ?", token, false).
		Update("used", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrInvalidToken
	}
	return nil
}
