package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CallSessionRepositoryImpl implements CallSessionRepository
type CallSessionRepositoryImpl struct {
	*BaseRepository[models.CallSession, struct{}]
}

func NewCallSessionRepository(db *gorm.DB) CallSessionRepository {
	return &CallSessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CallSession, struct{}](db),
	}
}

func (r *CallSessionRepositoryImpl) ByCallID(ctx context.Context, callID string) (*models.CallSession, error) {
	var row models.CallSession
	if err := r.getDB(ctx).Where("call_id = ?", callID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load call session %s: %w", callID, err)
	}
	return &row, nil
}

func (r *CallSessionRepositoryImpl) Upsert(ctx context.Context, session *models.CallSession) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).Create(session).Error
		if err != nil {
			return fmt.Errorf("failed to upsert call session %s: %w", session.CallID, err)
		}
		return nil
	})
}

func (r *CallSessionRepositoryImpl) Delete(ctx context.Context, callID string) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Where("call_id = ?", callID).Delete(&models.CallSession{}).Error; err != nil {
			return fmt.Errorf("failed to delete call session %s: %w", callID, err)
		}
		return nil
	})
}

func (r *CallSessionRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Where("updated_at < ?", cutoff).Delete(&models.CallSession{})
		if res.Error != nil {
			return fmt.Errorf("failed to purge call sessions: %w", res.Error)
		}
		n = res.RowsAffected
		return nil
	})
	return n, err
}
