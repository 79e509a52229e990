package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SiteNotification is an in-app notification shown to the alert owner
type SiteNotification struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	UserID    uint          `gorm:"not null;index:idx_site_notifications_user_id" json:"user_id"`
	AlertID   uint          `gorm:"not null;index:idx_site_notifications_alert_id" json:"alert_id"`
	ReleaseID uuid.UUID     `gorm:"type:uuid;not null" json:"release_id"`
	Title     string        `gorm:"size:255;not null" json:"title"`
	Body      string        `gorm:"type:text;not null" json:"body"`
	JobIDs    pq.Int64Array `gorm:"type:bigint[];not null" json:"job_ids"`
	ReadAt    *time.Time    `json:"read_at,omitempty"`
	CreatedAt time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_site_notifications_created_at" json:"created_at"`
}

func (SiteNotification) TableName() string { return "site_notifications" }

func (n *SiteNotification) BeforeCreate(tx *gorm.DB) error {
	if n.UUID == uuid.Nil {
		n.UUID = uuid.New()
	}
	return nil
}

// SiteNotificationFilter provides filter fields for repository queries
type SiteNotificationFilter struct {
	ID         *uint
	UUID       *uuid.UUID
	UserID     *uint
	AlertID    *uint
	UnreadOnly bool
}
