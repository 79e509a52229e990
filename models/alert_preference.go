package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// AlertFrequency controls when matches of an alert are released
type AlertFrequency string

const (
	AlertFrequencyInstant AlertFrequency = "instant"
	AlertFrequencyDaily   AlertFrequency = "daily"
	AlertFrequencyWeekly  AlertFrequency = "weekly"
)

func (f AlertFrequency) Valid() bool {
	switch f {
	case AlertFrequencyInstant, AlertFrequencyDaily, AlertFrequencyWeekly:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AlertFrequency.
func (f *AlertFrequency) Scan(value any) error {
	if value == nil {
		*f = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*f = AlertFrequency(v)
	case []byte:
		*f = AlertFrequency(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AlertFrequency", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AlertFrequency.
func (f AlertFrequency) Value() (driver.Value, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid AlertFrequency: %s", f)
	}
	return string(f), nil
}

// Filter dimension values shared by alerts and the request layer
const (
	FilterAny = "any"

	DurationFlexibleYes = "yes"
	DurationFlexibleNo  = "no"

	SuitabilityMen     = "men"
	SuitabilityWomen   = "women"
	SuitabilityGeneral = "general"
)

// AlertPreference is one user's standing job subscription.
// Every filter dimension is optional; numeric bounds are kept as entered
// and parsed when the alert is evaluated.
type AlertPreference struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	OwnerID       uint      `gorm:"not null;index:idx_alert_preferences_owner_id" json:"owner_id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	RecipientName string    `gorm:"size:255" json:"recipient_name"`

	Location          *string    `gorm:"size:128" json:"location,omitempty"`
	Difficulty        *string    `gorm:"size:32" json:"difficulty,omitempty"`
	DateType          *string    `gorm:"size:16" json:"date_type,omitempty"`
	SpecificDateStart *time.Time `gorm:"type:date" json:"specific_date_start,omitempty"`
	SpecificDateEnd   *time.Time `gorm:"type:date" json:"specific_date_end,omitempty"`

	DurationFlexible *string `gorm:"size:8" json:"duration_flexible,omitempty"`
	MinDuration      *string `gorm:"size:16" json:"min_duration,omitempty"`
	MaxDuration      *string `gorm:"size:16" json:"max_duration,omitempty"`

	PaymentKind     *string        `gorm:"size:16" json:"payment_kind,omitempty"`
	MinHourlyRate   *string        `gorm:"size:16" json:"min_hourly_rate,omitempty"`
	MaxHourlyRate   *string        `gorm:"size:16" json:"max_hourly_rate,omitempty"`
	MinGlobalAmount *string        `gorm:"size:16" json:"min_global_amount,omitempty"`
	MaxGlobalAmount *string        `gorm:"size:16" json:"max_global_amount,omitempty"`
	PaymentMethods  pq.StringArray `gorm:"type:text[]" json:"payment_methods,omitempty"`

	MinPeopleNeeded *string `gorm:"size:16" json:"min_people_needed,omitempty"`
	MaxPeopleNeeded *string `gorm:"size:16" json:"max_people_needed,omitempty"`

	SuitabilityFor *string `gorm:"size:16" json:"suitability_for,omitempty"`
	MinAge         *string `gorm:"size:16" json:"min_age,omitempty"`
	MaxAge         *string `gorm:"size:16" json:"max_age,omitempty"`

	Frequency        AlertFrequency `gorm:"type:varchar(16);not null;default:'instant'" json:"frequency"`
	NotificationDays pq.Int64Array  `gorm:"type:bigint[]" json:"notification_days,omitempty"`
	// Delivery window in local HH:MM. Delivery is allowed inside [start, end).
	DeliveryHoursStart *string `gorm:"size:5" json:"delivery_hours_start,omitempty"`
	DeliveryHoursEnd   *string `gorm:"size:5" json:"delivery_hours_end,omitempty"`

	NotifySite      bool    `gorm:"not null;default:false" json:"notify_site"`
	NotifyEmail     bool    `gorm:"not null;default:false" json:"notify_email"`
	NotifyMessaging bool    `gorm:"not null;default:false" json:"notify_messaging"`
	NotifyPhone     bool    `gorm:"not null;default:false" json:"notify_phone"`
	ContactEmail    *string `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone    *string `gorm:"size:20;index:idx_alert_preferences_contact_phone" json:"contact_phone,omitempty"`
	MessagingPhone  *string `gorm:"size:20" json:"messaging_phone,omitempty"`

	IsActive      *bool      `gorm:"not null;default:true;index:idx_alert_preferences_is_active" json:"is_active"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (AlertPreference) TableName() string { return "alert_preferences" }

func (a *AlertPreference) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.IsActive == nil {
		a.IsActive = utils.ToPtr(true)
	}
	if a.Frequency == "" {
		a.Frequency = AlertFrequencyInstant
	}
	return nil
}

// Active reports whether the alert takes part in scanning
func (a *AlertPreference) Active() bool {
	return a != nil && utils.IsTrue(a.IsActive)
}

// AlertPreferenceFilter provides filter fields for repository queries
type AlertPreferenceFilter struct {
	ID           *uint
	UUID         *uuid.UUID
	OwnerID      *uint
	IsActive     *bool
	Frequency    *AlertFrequency
	ContactPhone *string
}
