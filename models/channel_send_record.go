package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationChannel names a delivery channel of an alert
type NotificationChannel string

const (
	ChannelSite      NotificationChannel = "site"
	ChannelEmail     NotificationChannel = "email"
	ChannelMessaging NotificationChannel = "messaging"
	ChannelPhone     NotificationChannel = "phone"
)

// AllChannels lists channels in fan-out order
var AllChannels = []NotificationChannel{ChannelSite, ChannelEmail, ChannelMessaging, ChannelPhone}

func (c NotificationChannel) Valid() bool {
	switch c {
	case ChannelSite, ChannelEmail, ChannelMessaging, ChannelPhone:
		return true
	default:
		return false
	}
}

// SendStatus enumerates outcomes of a per-channel delivery attempt
type SendStatus string

const (
	SendStatusSent              SendStatus = "sent"
	SendStatusFailed            SendStatus = "failed"
	SendStatusSkippedQuietHours SendStatus = "skipped_quiet_hours"
	SendStatusSkippedVolumeCap  SendStatus = "skipped_volume_cap"
)

// ChannelSendRecord is one (alert, job, channel) delivery attempt.
// A partial unique index keeps at most one sent row per triple.
type ChannelSendRecord struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	ReleaseID   uuid.UUID           `gorm:"type:uuid;not null;index:idx_channel_send_records_release_id" json:"release_id"`
	AlertID     uint                `gorm:"not null;uniqueIndex:uq_channel_send_records_sent,where:status = 'sent'" json:"alert_id"`
	JobID       uint                `gorm:"not null;uniqueIndex:uq_channel_send_records_sent,where:status = 'sent';index:idx_channel_send_records_job_id" json:"job_id"`
	Channel     NotificationChannel `gorm:"type:varchar(16);not null;uniqueIndex:uq_channel_send_records_sent,where:status = 'sent'" json:"channel"`
	OwnerID     uint                `gorm:"not null;index:idx_channel_send_records_owner_id" json:"owner_id"`
	Status      SendStatus          `gorm:"type:varchar(32);not null;index:idx_channel_send_records_status" json:"status"`
	Forced      bool                `gorm:"not null;default:false" json:"forced"`
	Error       *string             `gorm:"type:text" json:"error,omitempty"`
	MatchedAt   time.Time           `gorm:"not null" json:"matched_at"`
	AttemptedAt time.Time           `gorm:"not null;index:idx_channel_send_records_attempted_at" json:"attempted_at"`
}

func (ChannelSendRecord) TableName() string { return "channel_send_records" }

// ChannelSendRecordFilter provides filter fields for repository queries
type ChannelSendRecordFilter struct {
	ID              *uint
	ReleaseID       *uuid.UUID
	AlertID         *uint
	JobID           *uint
	OwnerID         *uint
	Channel         *NotificationChannel
	Status          *SendStatus
	AttemptedAfter  *time.Time
	AttemptedBefore *time.Time
}
