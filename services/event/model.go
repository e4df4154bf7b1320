package event

import (
	"time"

	"gorm.io/datatypes"
)

// TemporaryInfo holds per-event registration details (emergency contact,
// dietary needs and similar) that are collected at registration time and
// purged after the event wraps up.
type TemporaryInfo struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	UserEmail string         `gorm:"column:user_email;index:idx_temp_info_user_event,unique;not null" json:"user_email"`
	EventID   string         `gorm:"column:event_id;index:idx_temp_info_user_event,unique;not null" json:"event_id"`
	Info      datatypes.JSON `gorm:"column:info" json:"info"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (TemporaryInfo) TableName() string { return "temporary_info" }
