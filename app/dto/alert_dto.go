package dto

// AlertPreferenceRequest carries the body of create and update alert calls.
// Filter fields are optional; an empty value or "any" disables the dimension.
// Numeric bounds are sent as text and must parse as numbers.
// DeliveryHours* are local HH:MM; delivery happens inside [start, end).
type AlertPreferenceRequest struct {
	OwnerID       uint   `json:"-"`
	Name          string `json:"name" validate:"required,max=255"`
	RecipientName string `json:"recipient_name,omitempty" validate:"omitempty,max=255"`

	Location          *string `json:"location,omitempty" validate:"omitempty,max=128"`
	Difficulty        *string `json:"difficulty,omitempty" validate:"omitempty,max=32"`
	DateType          *string `json:"date_type,omitempty" validate:"omitempty,oneof=any today comingWeek flexible specificDate"`
	SpecificDateStart *string `json:"specific_date_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SpecificDateEnd   *string `json:"specific_date_end,omitempty" validate:"omitempty,datetime=2006-01-02"`

	DurationFlexible *string `json:"duration_flexible,omitempty" validate:"omitempty,oneof=any yes no"`
	MinDuration      *string `json:"min_duration,omitempty" validate:"omitempty,max=16"`
	MaxDuration      *string `json:"max_duration,omitempty" validate:"omitempty,max=16"`

	PaymentKind     *string  `json:"payment_kind,omitempty" validate:"omitempty,oneof=any hourly global"`
	MinHourlyRate   *string  `json:"min_hourly_rate,omitempty" validate:"omitempty,max=16"`
	MaxHourlyRate   *string  `json:"max_hourly_rate,omitempty" validate:"omitempty,max=16"`
	MinGlobalAmount *string  `json:"min_global_amount,omitempty" validate:"omitempty,max=16"`
	MaxGlobalAmount *string  `json:"max_global_amount,omitempty" validate:"omitempty,max=16"`
	PaymentMethods  []string `json:"payment_methods,omitempty" validate:"omitempty,max=10,dive,max=32"`

	MinPeopleNeeded *string `json:"min_people_needed,omitempty" validate:"omitempty,max=16"`
	MaxPeopleNeeded *string `json:"max_people_needed,omitempty" validate:"omitempty,max=16"`

	SuitabilityFor *string `json:"suitability_for,omitempty" validate:"omitempty,oneof=any men women general"`
	MinAge         *string `json:"min_age,omitempty" validate:"omitempty,max=16"`
	MaxAge         *string `json:"max_age,omitempty" validate:"omitempty,max=16"`

	Frequency          string  `json:"frequency" validate:"required,oneof=instant daily weekly"`
	NotificationDays   []int   `json:"notification_days,omitempty" validate:"omitempty,max=7,dive,min=0,max=6"`
	DeliveryHoursStart *string `json:"delivery_hours_start,omitempty" validate:"omitempty,len=5"`
	DeliveryHoursEnd   *string `json:"delivery_hours_end,omitempty" validate:"omitempty,len=5"`

	NotifySite      bool    `json:"notify_site"`
	NotifyEmail     bool    `json:"notify_email"`
	NotifyMessaging bool    `json:"notify_messaging"`
	NotifyPhone     bool    `json:"notify_phone"`
	ContactEmail    *string `json:"contact_email,omitempty" validate:"omitempty,email,max=255"`
	ContactPhone    *string `json:"contact_phone,omitempty" validate:"omitempty,max=20"`
	MessagingPhone  *string `json:"messaging_phone,omitempty" validate:"omitempty,max=20"`
}

// AlertPreferenceItem represents an alert in responses
type AlertPreferenceItem struct {
	ID            uint   `json:"id"`
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	RecipientName string `json:"recipient_name,omitempty"`

	Location          *string `json:"location,omitempty"`
	Difficulty        *string `json:"difficulty,omitempty"`
	DateType          *string `json:"date_type,omitempty"`
	SpecificDateStart *string `json:"specific_date_start,omitempty"`
	SpecificDateEnd   *string `json:"specific_date_end,omitempty"`

	DurationFlexible *string `json:"duration_flexible,omitempty"`
	MinDuration      *string `json:"min_duration,omitempty"`
	MaxDuration      *string `json:"max_duration,omitempty"`

	PaymentKind     *string  `json:"payment_kind,omitempty"`
	MinHourlyRate   *string  `json:"min_hourly_rate,omitempty"`
	MaxHourlyRate   *string  `json:"max_hourly_rate,omitempty"`
	MinGlobalAmount *string  `json:"min_global_amount,omitempty"`
	MaxGlobalAmount *string  `json:"max_global_amount,omitempty"`
	PaymentMethods  []string `json:"payment_methods,omitempty"`

	MinPeopleNeeded *string `json:"min_people_needed,omitempty"`
	MaxPeopleNeeded *string `json:"max_people_needed,omitempty"`

	SuitabilityFor *string `json:"suitability_for,omitempty"`
	MinAge         *string `json:"min_age,omitempty"`
	MaxAge         *string `json:"max_age,omitempty"`

	Frequency          string  `json:"frequency"`
	NotificationDays   []int   `json:"notification_days,omitempty"`
	DeliveryHoursStart *string `json:"delivery_hours_start,omitempty"`
	DeliveryHoursEnd   *string `json:"delivery_hours_end,omitempty"`

	NotifySite      bool    `json:"notify_site"`
	NotifyEmail     bool    `json:"notify_email"`
	NotifyMessaging bool    `json:"notify_messaging"`
	NotifyPhone     bool    `json:"notify_phone"`
	ContactEmail    *string `json:"contact_email,omitempty"`
	ContactPhone    *string `json:"contact_phone,omitempty"`
	MessagingPhone  *string `json:"messaging_phone,omitempty"`

	IsActive      bool    `json:"is_active"`
	LastCheckedAt *string `json:"last_checked_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// ScanSummary reports what a synchronous scan found
type ScanSummary struct {
	Evaluated int `json:"evaluated"`
	Matched   int `json:"matched"`
	Errors    int `json:"errors"`
}

// AlertPreferenceResponse returns a single alert, plus the backfill scan on create and resume
type AlertPreferenceResponse struct {
	Message string              `json:"message"`
	Alert   AlertPreferenceItem `json:"alert"`
	Scan    *ScanSummary        `json:"scan,omitempty"`
}

// ListAlertPreferencesRequest pages through the caller's alerts
type ListAlertPreferencesRequest struct {
	OwnerID  uint `json:"-"`
	Page     uint `json:"page,omitempty"`
	PageSize uint `json:"page_size,omitempty" validate:"omitempty,max=100"`
}

// ListAlertPreferencesResponse returns a page of alerts
type ListAlertPreferencesResponse struct {
	Message  string                `json:"message"`
	Items    []AlertPreferenceItem `json:"items"`
	Page     uint                  `json:"page"`
	PageSize uint                  `json:"page_size"`
}
