package models

import "time"

// SendMode controls how instant matches leave the scheduler
type SendMode string

const (
	SendModeImmediate SendMode = "immediate"
	SendModeBatch     SendMode = "batch"
)

func (m SendMode) Valid() bool {
	return m == SendModeImmediate || m == SendModeBatch
}

// AlertSettings is the single admin-managed row steering the alert engine
type AlertSettings struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	IsPhoneServiceActive     bool      `gorm:"not null;default:true" json:"is_phone_service_active"`
	CheckFrequencyMinutes    int       `gorm:"not null;default:5" json:"check_frequency_minutes"`
	SendMode                 SendMode  `gorm:"type:varchar(16);not null;default:'immediate'" json:"send_mode"`
	MaxCallsPerDay           int       `gorm:"not null;default:0" json:"max_calls_per_day"`
	QuietHoursStart          *string   `gorm:"size:5" json:"quiet_hours_start,omitempty"`
	QuietHoursEnd            *string   `gorm:"size:5" json:"quiet_hours_end,omitempty"`
	RequirePaymentForPosters bool      `gorm:"not null;default:false" json:"require_payment_for_posters"`
	RequirePaymentForViewers bool      `gorm:"not null;default:false" json:"require_payment_for_viewers"`
	UpdatedByAdminID         *uint     `json:"updated_by_admin_id,omitempty"`
	CreatedAt                time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt                time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (AlertSettings) TableName() string { return "alert_settings" }
