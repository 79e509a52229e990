package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
	"gorm.io/gorm"
)

// JobRepositoryImpl implements JobRepository
type JobRepositoryImpl struct {
	*BaseRepository[models.Job, models.JobFilter]
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &JobRepositoryImpl{BaseRepository: NewBaseRepository[models.Job, models.JobFilter](db)}
}

func (r *JobRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Job, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	return r.first(r.getDB(ctx).Model(&models.Job{}).Where("uuid = ?", parsed), "")
}

// ByIDs returns the jobs that still exist among ids, in no particular order
func (r *JobRepositoryImpl) ByIDs(ctx context.Context, ids []uint) ([]*models.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.ByFilter(ctx, models.JobFilter{IDs: ids}, "posted_at ASC, id ASC", 0, 0)
}

func (r *JobRepositoryImpl) ListPostedSince(ctx context.Context, since time.Time) ([]*models.Job, error) {
	return r.ByFilter(ctx, models.JobFilter{PostedAfter: &since}, "posted_at ASC, id ASC", 0, 0)
}

func (r *JobRepositoryImpl) CountPendingScan(ctx context.Context) (int64, error) {
	query := r.getDB(ctx).Model(&models.Job{}).Where(
		"EXISTS (SELECT 1 FROM alert_preferences a WHERE a.is_active = ? AND (a.last_checked_at IS NULL OR a.last_checked_at < jobs.posted_at))",
		true,
	)
	n, err := r.countRows(query)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs pending scan: %w", err)
	}
	return n, nil
}

func (r *JobRepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Delete(&models.Job{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete job %d: %w", id, err)
		}
		return nil
	})
}

func (r *JobRepositoryImpl) applyFilter(db *gorm.DB, f models.JobFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.PosterID != nil {
		db = db.Where("poster_id = ?", *f.PosterID)
	}
	if f.Area != nil {
		db = db.Where("area = ?", *f.Area)
	}
	if f.PostedAfter != nil {
		db = db.Where("posted_at >= ?", *f.PostedAfter)
	}
	if f.PostedBefore != nil {
		db = db.Where("posted_at < ?", *f.PostedBefore)
	}
	return db
}

func (r *JobRepositoryImpl) ByFilter(ctx context.Context, filter models.JobFilter, orderBy string, limit, offset int) ([]*models.Job, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Job{}), filter)
	return r.findPage(query, orderBy, limit, offset)
}

func (r *JobRepositoryImpl) Count(ctx context.Context, filter models.JobFilter) (int64, error) {
	return r.countRows(r.applyFilter(r.getDB(ctx).Model(&models.Job{}), filter))
}

func (r *JobRepositoryImpl) Exists(ctx context.Context, filter models.JobFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
