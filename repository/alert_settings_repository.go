package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
	"gorm.io/gorm"
)

// AlertSettingsRepositoryImpl implements AlertSettingsRepository
type AlertSettingsRepositoryImpl struct {
	*BaseRepository[models.AlertSettings, struct{}]
}

func NewAlertSettingsRepository(db *gorm.DB) AlertSettingsRepository {
	return &AlertSettingsRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AlertSettings, struct{}](db),
	}
}

func (r *AlertSettingsRepositoryImpl) Current(ctx context.Context) (*models.AlertSettings, error) {
	row, err := r.first(r.getDB(ctx).Model(&models.AlertSettings{}), "id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to load alert settings: %w", err)
	}
	return row, nil
}

func (r *AlertSettingsRepositoryImpl) Update(ctx context.Context, settings *models.AlertSettings) error {
	settings.UpdatedAt = utils.UTCNow()
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Model(settings).Select("*").Omit("id", "created_at").Updates(settings).Error; err != nil {
			return fmt.Errorf("failed to update alert settings %d: %w", settings.ID, err)
		}
		return nil
	})
}
