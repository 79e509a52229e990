package dto

// AlertStatsResponse summarizes delivery activity. "Today" starts at local midnight.
// PendingJobs counts jobs some active alert has not scanned yet, PendingMatches
// counts matches waiting for release.
type AlertStatsResponse struct {
	Message        string                      `json:"message"`
	SentToday      int64                       `json:"sent_today"`
	SentTotal      int64                       `json:"sent_total"`
	FailedToday    int64                       `json:"failed_today"`
	SkippedToday   int64                       `json:"skipped_today"`
	CallsToday     int64                       `json:"calls_today"`
	CallsCap       int                         `json:"calls_cap"`
	PendingJobs    int64                       `json:"pending_jobs"`
	PendingMatches int64                       `json:"pending_matches"`
	ByChannel      map[string]map[string]int64 `json:"by_channel"`
}

// AlertSettingsItem is the admin settings row as exposed over the API
type AlertSettingsItem struct {
	IsPhoneServiceActive     bool    `json:"is_phone_service_active"`
	CheckFrequencyMinutes    int     `json:"check_frequency_minutes"`
	SendMode                 string  `json:"send_mode"`
	MaxCallsPerDay           int     `json:"max_calls_per_day"`
	QuietHoursStart          *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd            *string `json:"quiet_hours_end,omitempty"`
	RequirePaymentForPosters bool    `json:"require_payment_for_posters"`
	RequirePaymentForViewers bool    `json:"require_payment_for_viewers"`
	UpdatedAt                *string `json:"updated_at,omitempty"`
}

// AlertSettingsResponse wraps the current settings
type AlertSettingsResponse struct {
	Message  string            `json:"message"`
	Settings AlertSettingsItem `json:"settings"`
}

// UpdateAlertSettingsRequest patches the settings row; nil fields are kept.
// An empty quiet hours value clears the global window.
type UpdateAlertSettingsRequest struct {
	AdminID                  uint    `json:"-"`
	IsPhoneServiceActive     *bool   `json:"is_phone_service_active,omitempty"`
	CheckFrequencyMinutes    *int    `json:"check_frequency_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
	SendMode                 *string `json:"send_mode,omitempty" validate:"omitempty,oneof=immediate batch"`
	MaxCallsPerDay           *int    `json:"max_calls_per_day,omitempty" validate:"omitempty,min=0"`
	QuietHoursStart          *string `json:"quiet_hours_start,omitempty" validate:"omitempty,max=5"`
	QuietHoursEnd            *string `json:"quiet_hours_end,omitempty" validate:"omitempty,max=5"`
	RequirePaymentForPosters *bool   `json:"require_payment_for_posters,omitempty"`
	RequirePaymentForViewers *bool   `json:"require_payment_for_viewers,omitempty"`
}

// ForceDispatchResponse reports what a forced release pushed out
type ForceDispatchResponse struct {
	Message string `json:"message"`
	Alerts  int    `json:"alerts"`
	Jobs    int    `json:"jobs"`
}

// ExportSendRecordsRequest bounds an export by attempt time, both ends inclusive
type ExportSendRecordsRequest struct {
	Since   *string `json:"since,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Until   *string `json:"until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Channel *string `json:"channel,omitempty" validate:"omitempty,oneof=site email messaging phone"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=sent failed skipped_quiet_hours skipped_volume_cap"`
}
