package oauth

import "time"

const (
	// CodeTTL bounds authorization codes (step 1 of the code flow).
	CodeTTL = 10 * time.Minute
	// TokenTTL bounds access tokens issued by the token endpoint.
	TokenTTL = time.Hour
	// LegacyTokenTTL bounds tokens of the deprecated redirect flow.
	LegacyTokenTTL = 2 * time.Minute
	// VerificationTokenTTL bounds Discord account verification tokens.
	VerificationTokenTTL = 10 * time.Minute
)

// AuthorizationCode is a single-use credential binding a client, a user,
// a redirect URI and a scope grant. Expiry is evaluated lazily at
// redemption time; rows are never swept by a background job.
type AuthorizationCode struct {
	Code        string    `gorm:"column:code;primaryKey"`
	ClientID    string    `gorm:"column:client_id;index;not null"`
	UserEmail   string    `gorm:"column:user_email;not null"`
	RedirectURI string    `gorm:"column:redirect_uri;not null"`
	Scope       string    `gorm:"column:scope;not null"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null"`
	Used        bool      `gorm:"column:used;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (AuthorizationCode) TableName() string { return "authorization_codes" }

// AccessToken is a bearer credential granting scoped read access to user
// info. Valid iff not revoked and now < expires_at.
type AccessToken struct {
	Token     string    `gorm:"column:token;primaryKey"`
	ClientID  string    `gorm:"column:client_id;index;not null"`
	UserEmail string    `gorm:"column:user_email;index;not null"`
	Scope     string    `gorm:"column:scope;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	Revoked   bool      `gorm:"column:revoked;default:false"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (AccessToken) TableName() string { return "access_tokens" }

// LegacyToken backs the deprecated redirect flow: unscoped, two-minute
// expiry, deleted on redemption.
type LegacyToken struct {
	Token     string    `gorm:"column:token;primaryKey"`
	UserEmail string    `gorm:"column:user_email;index;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (LegacyToken) TableName() string { return "oauth_tokens" }

// VerificationToken links a Discord account to a hack.sv user. Issued by
// the bot through the API, consumed by the verification landing page.
type VerificationToken struct {
	Token           string    `gorm:"column:token;primaryKey"`
	DiscordID       string    `gorm:"column:discord_id;index;not null"`
	DiscordUsername string    `gorm:"column:discord_username"`
	MessageID       string    `gorm:"column:message_id"`
	ExpiresAt       time.Time `gorm:"column:expires_at;not null"`
	Used            bool      `gorm:"column:used;default:false"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (VerificationToken) TableName() string { return "verification_tokens" }

// TokenResponse is the token endpoint's success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}
