package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
	"gorm.io/gorm"
)

// AlertPreferenceRepositoryImpl implements AlertPreferenceRepository
type AlertPreferenceRepositoryImpl struct {
	*BaseRepository[models.AlertPreference, models.AlertPreferenceFilter]
}

func NewAlertPreferenceRepository(db *gorm.DB) AlertPreferenceRepository {
	return &AlertPreferenceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AlertPreference, models.AlertPreferenceFilter](db),
	}
}

func (r *AlertPreferenceRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.AlertPreference, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.AlertPreferenceFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *AlertPreferenceRepositoryImpl) ByIDs(ctx context.Context, ids []uint) ([]*models.AlertPreference, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := r.getDB(ctx).Model(&models.AlertPreference{}).Where("id IN ?", ids)
	return r.findPage(query, "id ASC", 0, 0)
}

func (r *AlertPreferenceRepositoryImpl) ListActive(ctx context.Context) ([]*models.AlertPreference, error) {
	return r.ByFilter(ctx, models.AlertPreferenceFilter{IsActive: utils.ToPtr(true)}, "id ASC", 0, 0)
}

func (r *AlertPreferenceRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.AlertPreference, error) {
	return r.ByFilter(ctx, models.AlertPreferenceFilter{OwnerID: &ownerID}, "created_at DESC, id DESC", limit, offset)
}

func (r *AlertPreferenceRepositoryImpl) ListActiveByContactPhone(ctx context.Context, phone string) ([]*models.AlertPreference, error) {
	filter := models.AlertPreferenceFilter{ContactPhone: &phone, IsActive: utils.ToPtr(true)}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// Update stores every column of alert, including cleared filters
func (r *AlertPreferenceRepositoryImpl) Update(ctx context.Context, alert *models.AlertPreference) error {
	alert.UpdatedAt = utils.UTCNow()
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Model(alert).Select("*").Omit("id", "uuid", "owner_id", "created_at", "last_checked_at").Updates(alert).Error; err != nil {
			return fmt.Errorf("failed to update alert %d: %w", alert.ID, err)
		}
		return nil
	})
}

func (r *AlertPreferenceRepositoryImpl) SetActive(ctx context.Context, id uint, active bool) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.AlertPreference{}).Where("id = ?", id).
			Updates(map[string]any{"is_active": active, "updated_at": utils.UTCNow()}).Error
		if err != nil {
			return fmt.Errorf("failed to set alert %d active=%t: %w", id, active, err)
		}
		return nil
	})
}

func (r *AlertPreferenceRepositoryImpl) AdvanceLastCheckedAt(ctx context.Context, id uint, at time.Time) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Model(&models.AlertPreference{}).
			Where("id = ? AND (last_checked_at IS NULL OR last_checked_at < ?)", id, at).
			UpdateColumn("last_checked_at", at).Error
		if err != nil {
			return fmt.Errorf("failed to advance cursor of alert %d: %w", id, err)
		}
		return nil
	})
}

func (r *AlertPreferenceRepositoryImpl) Delete(ctx context.Context, id uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Delete(&models.AlertPreference{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete alert %d: %w", id, err)
		}
		return nil
	})
}

func (r *AlertPreferenceRepositoryImpl) applyFilter(db *gorm.DB, f models.AlertPreferenceFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.OwnerID != nil {
		db = db.Where("owner_id = ?", *f.OwnerID)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	if f.Frequency != nil {
		db = db.Where("frequency = ?", string(*f.Frequency))
	}
	if f.ContactPhone != nil {
		db = db.Where("contact_phone = ?", *f.ContactPhone)
	}
	return db
}

func (r *AlertPreferenceRepositoryImpl) ByFilter(ctx context.Context, filter models.AlertPreferenceFilter, orderBy string, limit, offset int) ([]*models.AlertPreference, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.AlertPreference{}), filter)
	if orderBy == "" {
		orderBy = "id DESC"
	}
	return r.findPage(query, orderBy, limit, offset)
}

func (r *AlertPreferenceRepositoryImpl) Count(ctx context.Context, filter models.AlertPreferenceFilter) (int64, error) {
	return r.countRows(r.applyFilter(r.getDB(ctx).Model(&models.AlertPreference{}), filter))
}

func (r *AlertPreferenceRepositoryImpl) Exists(ctx context.Context, filter models.AlertPreferenceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
