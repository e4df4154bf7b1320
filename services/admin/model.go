package admin

import "time"

// Admin is a persisted administrator row. The configured seed list only
// bootstraps this table; runtime checks never consult the config directly.
type Admin struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Email     string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	AddedBy   string    `gorm:"column:added_by" json:"added_by"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Admin) TableName() string { return "admins" }

// AppPermission grants an admin access to a restricted (allow_anyone=false)
// application.
type AppPermission struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	AdminEmail string    `gorm:"column:admin_email;index;not null" json:"admin_email"`
	AppID      string    `gorm:"column:app_id;index;not null" json:"app_id"`
	Permission string    `gorm:"column:permission;not null" json:"permission"`
	GrantedBy  string    `gorm:"column:granted_by" json:"granted_by"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (AppPermission) TableName() string { return "admin_app_permissions" }
