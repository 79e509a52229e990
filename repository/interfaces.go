// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// JobRepository defines operations for posted jobs
type JobRepository interface {
	Repository[models.Job, models.JobFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Job, error)
	ByIDs(ctx context.Context, ids []uint) ([]*models.Job, error)
	ListPostedSince(ctx context.Context, since time.Time) ([]*models.Job, error)
	// CountPendingScan counts jobs that at least one active alert has not scanned yet
	CountPendingScan(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id uint) error
}

// AlertPreferenceRepository defines operations for alert subscriptions
type AlertPreferenceRepository interface {
	Repository[models.AlertPreference, models.AlertPreferenceFilter]
	ByUUID(ctx context.Context, uuid string) (*models.AlertPreference, error)
	ByIDs(ctx context.Context, ids []uint) ([]*models.AlertPreference, error)
	ListActive(ctx context.Context) ([]*models.AlertPreference, error)
	ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.AlertPreference, error)
	ListActiveByContactPhone(ctx context.Context, phone string) ([]*models.AlertPreference, error)
	Update(ctx context.Context, alert *models.AlertPreference) error
	SetActive(ctx context.Context, id uint, active bool) error
	// AdvanceLastCheckedAt moves the scan cursor forward only
	AdvanceLastCheckedAt(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

// ChannelSendRecordRepository defines operations for per-channel delivery records
type ChannelSendRecordRepository interface {
	Repository[models.ChannelSendRecord, models.ChannelSendRecordFilter]
	// SentJobIDs returns which of jobIDs already have a sent record on the channel
	SentJobIDs(ctx context.Context, alertID uint, channel models.NotificationChannel, jobIDs []uint) (map[uint]bool, error)
	CountByStatusSince(ctx context.Context, status models.SendStatus, since *time.Time) (int64, error)
	CountByChannelStatusSince(ctx context.Context, since time.Time) (map[models.NotificationChannel]map[models.SendStatus]int64, error)
}

// SiteNotificationRepository defines operations for in-app notifications
type SiteNotificationRepository interface {
	Repository[models.SiteNotification, models.SiteNotificationFilter]
	ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]*models.SiteNotification, error)
	MarkRead(ctx context.Context, userID, id uint, at time.Time) (bool, error)
}

// AlertSettingsRepository defines operations for the admin settings row
type AlertSettingsRepository interface {
	// Current returns the newest settings row, or nil when none was stored
	Current(ctx context.Context) (*models.AlertSettings, error)
	Save(ctx context.Context, settings *models.AlertSettings) error
	Update(ctx context.Context, settings *models.AlertSettings) error
}

// CallSessionRepository defines operations for IVR session documents
type CallSessionRepository interface {
	ByCallID(ctx context.Context, callID string) (*models.CallSession, error)
	Upsert(ctx context.Context, session *models.CallSession) error
	Delete(ctx context.Context, callID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
