package app

import (
	"time"

	"gorm.io/datatypes"
)

// Scope names a subset of user fields an application may read. The
// vocabulary is closed; requests for anything else are rejected.
const (
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopeDOB     = "dob"
	ScopeEvents  = "events"
	ScopeDiscord = "discord"
)

// Scopes is the full scope vocabulary.
var Scopes = []string{ScopeProfile, ScopeEmail, ScopeDOB, ScopeEvents, ScopeDiscord}

// ValidScope reports whether s belongs to the scope vocabulary.
func ValidScope(s string) bool {
	for _, known := range Scopes {
		if s == known {
			return true
		}
	}
	return false
}

// App is a registered external application allowed to authenticate hack.sv
// users through the OAuth 2.0 flow.
type App struct {
	ID               string `gorm:"column:id;primaryKey" json:"id"`
	ClientID         string `gorm:"column:client_id;uniqueIndex;not null" json:"client_id"`
	ClientSecretHash string `gorm:"column:client_secret_hash;not null" json:"-"`
	Name             string `gorm:"column:name;not null" json:"name"`
	Icon             string `gorm:"column:icon" json:"icon,omitempty"`

	// RedirectURIs are matched by exact string comparison.
	RedirectURIs datatypes.JSONSlice[string] `gorm:"column:redirect_uris" json:"redirect_uris"`

	// RedirectURLTemplate supports the deprecated token flow; it contains a
	// literal "{token}" placeholder.
	RedirectURLTemplate string `gorm:"column:redirect_url_template" json:"redirect_url_template,omitempty"`

	AllowedScopes     datatypes.JSONSlice[string] `gorm:"column:allowed_scopes" json:"allowed_scopes"`
	AllowAnyone       bool                        `gorm:"column:allow_anyone" json:"allow_anyone"`
	SkipConsentScreen bool                        `gorm:"column:skip_consent_screen" json:"skip_consent_screen"`
	IsActive          bool                        `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedBy         string                      `gorm:"column:created_by" json:"created_by"`
	CreatedAt         time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (App) TableName() string { return "apps" }
