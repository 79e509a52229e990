package models

import (
	"time"

	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentKind tells which of a job's pay fields is authoritative
type PaymentKind string

const (
	PaymentKindHourly PaymentKind = "hourly"
	PaymentKindGlobal PaymentKind = "global"
)

// JobDateType describes when the work takes place
type JobDateType string

const (
	JobDateToday        JobDateType = "today"
	JobDateComingWeek   JobDateType = "comingWeek"
	JobDateFlexible     JobDateType = "flexible"
	JobDateSpecificDate JobDateType = "specificDate"
)

// Job is a posted work item. Rows are never updated after creation, only deleted.
type Job struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	PosterID    uint      `gorm:"not null;index:idx_jobs_poster_id" json:"poster_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	Area        string    `gorm:"size:128;not null;index:idx_jobs_area" json:"area"`
	Difficulty  *string   `gorm:"size:32" json:"difficulty,omitempty"`

	PaymentKind   PaymentKind `gorm:"size:16;not null" json:"payment_kind"`
	HourlyRate    *float64    `json:"hourly_rate,omitempty"`
	GlobalAmount  *float64    `json:"global_amount,omitempty"`
	PaymentMethod *string     `gorm:"size:32" json:"payment_method,omitempty"`

	SuitableForMen     bool `gorm:"not null;default:false" json:"suitable_for_men"`
	SuitableForWomen   bool `gorm:"not null;default:false" json:"suitable_for_women"`
	SuitableForGeneral bool `gorm:"not null;default:false" json:"suitable_for_general"`
	MinAge             *int `json:"min_age,omitempty"`

	DateType     JobDateType `gorm:"size:16;not null" json:"date_type"`
	SpecificDate *time.Time  `gorm:"type:date" json:"specific_date,omitempty"`

	DurationHours        *float64 `json:"duration_hours,omitempty"`
	IsFlexible           bool     `gorm:"not null;default:false" json:"is_flexible"`
	NumberOfPeopleNeeded *int     `json:"number_of_people_needed,omitempty"`

	PostedAt  time.Time `gorm:"not null;index:idx_jobs_posted_at" json:"posted_at"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Job) TableName() string { return "jobs" }

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.UUID == uuid.Nil {
		j.UUID = uuid.New()
	}
	if j.PostedAt.IsZero() {
		j.PostedAt = utils.UTCNow()
	}
	return nil
}

// JobFilter provides filter fields for repository queries
type JobFilter struct {
	ID           *uint
	IDs          []uint
	PosterID     *uint
	Area         *string
	PostedAfter  *time.Time
	PostedBefore *time.Time
}
