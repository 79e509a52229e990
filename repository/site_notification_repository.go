package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"gorm.io/gorm"
)

// SiteNotificationRepositoryImpl implements SiteNotificationRepository
type SiteNotificationRepositoryImpl struct {
	*BaseRepository[models.SiteNotification, models.SiteNotificationFilter]
}

func NewSiteNotificationRepository(db *gorm.DB) SiteNotificationRepository {
	return &SiteNotificationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SiteNotification, models.SiteNotificationFilter](db),
	}
}

func (r *SiteNotificationRepositoryImpl) ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]*models.SiteNotification, error) {
	filter := models.SiteNotificationFilter{UserID: &userID, UnreadOnly: unreadOnly}
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, offset)
}

// MarkRead stamps an unread notification of userID. It reports false when
// the notification does not exist, belongs to someone else or was already read.
func (r *SiteNotificationRepositoryImpl) MarkRead(ctx context.Context, userID, id uint, at time.Time) (bool, error) {
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.SiteNotification{}).
			Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
			UpdateColumn("read_at", at)
		if res.Error != nil {
			return fmt.Errorf("failed to mark notification %d read: %w", id, res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	return affected > 0, err
}

func (r *SiteNotificationRepositoryImpl) applyFilter(db *gorm.DB, f models.SiteNotificationFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.AlertID != nil {
		db = db.Where("alert_id = ?", *f.AlertID)
	}
	if f.UnreadOnly {
		db = db.Where("read_at IS NULL")
	}
	return db
}

func (r *SiteNotificationRepositoryImpl) ByFilter(ctx context.Context, filter models.SiteNotificationFilter, orderBy string, limit, offset int) ([]*models.SiteNotification, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.SiteNotification{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	return r.findPage(query, orderBy, limit, offset)
}

func (r *SiteNotificationRepositoryImpl) Count(ctx context.Context, filter models.SiteNotificationFilter) (int64, error) {
	return r.countRows(r.applyFilter(r.getDB(ctx).Model(&models.SiteNotification{}), filter))
}

func (r *SiteNotificationRepositoryImpl) Exists(ctx context.Context, filter models.SiteNotificationFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
