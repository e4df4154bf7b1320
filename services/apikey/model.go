package apikey

import (
	"time"

	"gorm.io/datatypes"
)

// KeyPrefix namespaces issued API keys so they are recognizable in configs
// and cannot collide with OAuth access tokens.
const KeyPrefix = "hack.sv."

// APIKey is an administrator-issued server-to-server credential. The key
// itself is stored as a sha256 hash and shown exactly once at creation.
type APIKey struct {
	ID          string                      `gorm:"column:id;primaryKey" json:"id"`
	KeyHash     string                      `gorm:"column:key_hash;uniqueIndex;not null" json:"-"`
	Name        string                      `gorm:"column:name;not null" json:"name"`
	CreatedBy   string                      `gorm:"column:created_by" json:"created_by"`
	Permissions datatypes.JSONSlice[string] `gorm:"column:permissions" json:"permissions"`

	// RateLimitRPM is the requests-per-minute budget; 0 means unlimited.
	RateLimitRPM int        `gorm:"column:rate_limit_rpm;default:60" json:"rate_limit_rpm"`
	IsActive     bool       `gorm:"column:is_active;default:true" json:"is_active"`
	LastUsedAt   *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (APIKey) TableName() string { return "api_keys" }

// UsageLog is an append-only record of authenticated API calls.
type UsageLog struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	KeyID     string         `gorm:"column:key_id;index;not null" json:"key_id"`
	Action    string         `gorm:"column:action;not null" json:"action"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (UsageLog) TableName() string { return "api_key_logs" }
