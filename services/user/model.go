package user

import (
	"time"

	"gorm.io/datatypes"
)

// User is a registered hack.sv account. The OAuth facade treats it as a
// lookup keyed by email plus a scope-filtered projection.
type User struct {
	ID              string                      `gorm:"column:id;primaryKey" json:"id"`
	Email           string                      `gorm:"column:email;uniqueIndex;not null" json:"email"`
	LegalName       string                      `gorm:"column:legal_name" json:"legal_name"`
	PreferredName   string                      `gorm:"column:preferred_name" json:"preferred_name"`
	Pronouns        string                      `gorm:"column:pronouns" json:"pronouns"`
	DOB             string                      `gorm:"column:dob" json:"dob"`
	DiscordID       string                      `gorm:"column:discord_id;index" json:"discord_id,omitempty"`
	DiscordUsername string                      `gorm:"column:discord_username" json:"discord_username,omitempty"`
	Events          datatypes.JSONSlice[string] `gorm:"column:events" json:"events"`
	CreatedAt       time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }
