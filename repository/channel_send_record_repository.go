package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelSendRecordRepositoryImpl implements ChannelSendRecordRepository
type ChannelSendRecordRepositoryImpl struct {
	*BaseRepository[models.ChannelSendRecord, models.ChannelSendRecordFilter]
}

func NewChannelSendRecordRepository(db *gorm.DB) ChannelSendRecordRepository {
	return &ChannelSendRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ChannelSendRecord, models.ChannelSendRecordFilter](db),
	}
}

// SaveBatch inserts records, dropping any second sent row for an (alert, job, channel)
func (r *ChannelSendRecordRepositoryImpl) SaveBatch(ctx context.Context, records []*models.ChannelSendRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("failed to save send records: %w", err)
		}
		return nil
	})
}

func (r *ChannelSendRecordRepositoryImpl) SentJobIDs(ctx context.Context, alertID uint, channel models.NotificationChannel, jobIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := r.getDB(ctx).Model(&models.ChannelSendRecord{}).
		Where("alert_id = ? AND channel = ? AND status = ? AND job_id IN ?", alertID, string(channel), string(models.SendStatusSent), jobIDs).
		Distinct().Pluck("job_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sent jobs of alert %d: %w", alertID, err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *ChannelSendRecordRepositoryImpl) CountByStatusSince(ctx context.Context, status models.SendStatus, since *time.Time) (int64, error) {
	return r.Count(ctx, models.ChannelSendRecordFilter{Status: &status, AttemptedAfter: since})
}

func (r *ChannelSendRecordRepositoryImpl) CountByChannelStatusSince(ctx context.Context, since time.Time) (map[models.NotificationChannel]map[models.SendStatus]int64, error) {
	var rows []struct {
		Channel models.NotificationChannel
		Status  models.SendStatus
		Total   int64
	}
	err := r.getDB(ctx).Model(&models.ChannelSendRecord{}).
		Select("channel, status, COUNT(*) AS total").
		Where("attempted_at >= ?", since).
		Group("channel, status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate send records: %w", err)
	}

	out := make(map[models.NotificationChannel]map[models.SendStatus]int64)
	for _, row := range rows {
		if out[row.Channel] == nil {
			out[row.Channel] = make(map[models.SendStatus]int64)
		}
		out[row.Channel][row.Status] = row.Total
	}
	return out, nil
}

func (r *ChannelSendRecordRepositoryImpl) applyFilter(db *gorm.DB, f models.ChannelSendRecordFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ReleaseID != nil {
		db = db.Where("release_id = ?", *f.ReleaseID)
	}
	if f.AlertID != nil {
		db = db.Where("alert_id = ?", *f.AlertID)
	}
	if f.JobID != nil {
		db = db.Where("job_id = ?", *f.JobID)
	}
	if f.OwnerID != nil {
		db = db.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", string(*f.Channel))
	}
	if f.Status != nil {
		db = db.Where("status = ?", string(*f.Status))
	}
	if f.AttemptedAfter != nil {
		db = db.Where("attempted_at >= ?", *f.AttemptedAfter)
	}
	if f.AttemptedBefore != nil {
		db = db.Where("attempted_at < ?", *f.AttemptedBefore)
	}
	return db
}

func (r *ChannelSendRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.ChannelSendRecordFilter, orderBy string, limit, offset int) ([]*models.ChannelSendRecord, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.ChannelSendRecord{}), filter)
	if orderBy == "" {
		orderBy = "id ASC"
	}
	return r.findPage(query, orderBy, limit, offset)
}

func (r *ChannelSendRecordRepositoryImpl) Count(ctx context.Context, filter models.ChannelSendRecordFilter) (int64, error) {
	return r.countRows(r.applyFilter(r.getDB(ctx).Model(&models.ChannelSendRecord{}), filter))
}

func (r *ChannelSendRecordRepositoryImpl) Exists(ctx context.Context, filter models.ChannelSendRecordFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
