package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// NewJob builds an unsaved hourly job in area posted at postedAt
func NewJob(area string, hourlyRate float64, postedAt time.Time) *models.Job {
	return &models.Job{
		PosterID:           uint(rand.Intn(1000) + 1),
		Title:              fmt.Sprintf("משרה %d", rand.Intn(100000)),
		Area:               area,
		PaymentKind:        models.PaymentKindHourly,
		HourlyRate:         utils.ToPtr(hourlyRate),
		SuitableForGeneral: true,
		DateType:           models.JobDateToday,
		PostedAt:           postedAt.UTC(),
	}
}

// NewAlert builds an unsaved active instant alert of ownerID notifying the site channel
func NewAlert(ownerID uint) *models.AlertPreference {
	return &models.AlertPreference{
		OwnerID:       ownerID,
		Name:          "התראה",
		RecipientName: "דנה",
		Frequency:     models.AlertFrequencyInstant,
		NotifySite:    true,
		IsActive:      utils.ToPtr(true),
	}
}

// CreateTestJob inserts a job posted now
func (tf *TestFixtures) CreateTestJob(area string, hourlyRate float64) (*models.Job, error) {
	job := NewJob(area, hourlyRate, utils.UTCNow())
	if err := tf.DB.DB.Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// CreateTestAlert inserts an active alert, applying mutate before the insert
func (tf *TestFixtures) CreateTestAlert(ownerID uint, mutate func(*models.AlertPreference)) (*models.AlertPreference, error) {
	alert := NewAlert(ownerID)
	if mutate != nil {
		mutate(alert)
	}
	if err := tf.DB.DB.Create(alert).Error; err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return alert, nil
}
