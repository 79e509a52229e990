package dto

// CreateJobRequest carries a newly posted job. HourlyRate is required for
// hourly jobs and GlobalAmount for global ones.
type CreateJobRequest struct {
	PosterID    uint    `json:"-"`
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Area        string  `json:"area" validate:"required,max=128"`
	Difficulty  *string `json:"difficulty,omitempty" validate:"omitempty,max=32"`

	PaymentKind   string   `json:"payment_kind" validate:"required,oneof=hourly global"`
	HourlyRate    *float64 `json:"hourly_rate,omitempty" validate:"omitempty,gte=0"`
	GlobalAmount  *float64 `json:"global_amount,omitempty" validate:"omitempty,gte=0"`
	PaymentMethod *string  `json:"payment_method,omitempty" validate:"omitempty,max=32"`

	SuitableForMen     bool `json:"suitable_for_men"`
	SuitableForWomen   bool `json:"suitable_for_women"`
	SuitableForGeneral bool `json:"suitable_for_general"`
	MinAge             *int `json:"min_age,omitempty" validate:"omitempty,gte=0,lte=120"`

	DateType     string  `json:"date_type" validate:"required,oneof=today comingWeek flexible specificDate"`
	SpecificDate *string `json:"specific_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	DurationHours        *float64 `json:"duration_hours,omitempty" validate:"omitempty,gte=0"`
	IsFlexible           bool     `json:"is_flexible"`
	NumberOfPeopleNeeded *int     `json:"number_of_people_needed,omitempty" validate:"omitempty,gte=1"`
}

// JobItem represents a job in responses
type JobItem struct {
	ID                   uint     `json:"id"`
	UUID                 string   `json:"uuid"`
	Title                string   `json:"title"`
	Description          *string  `json:"description,omitempty"`
	Area                 string   `json:"area"`
	Difficulty           *string  `json:"difficulty,omitempty"`
	PaymentKind          string   `json:"payment_kind"`
	HourlyRate           *float64 `json:"hourly_rate,omitempty"`
	GlobalAmount         *float64 `json:"global_amount,omitempty"`
	PaymentMethod        *string  `json:"payment_method,omitempty"`
	SuitableForMen       bool     `json:"suitable_for_men"`
	SuitableForWomen     bool     `json:"suitable_for_women"`
	SuitableForGeneral   bool     `json:"suitable_for_general"`
	MinAge               *int     `json:"min_age,omitempty"`
	DateType             string   `json:"date_type"`
	SpecificDate         *string  `json:"specific_date,omitempty"`
	DurationHours        *float64 `json:"duration_hours,omitempty"`
	IsFlexible           bool     `json:"is_flexible"`
	NumberOfPeopleNeeded *int     `json:"number_of_people_needed,omitempty"`
	PostedAt             string   `json:"posted_at"`
}

// CreateJobResponse returns the stored job and the outcome of the matching pass
type CreateJobResponse struct {
	Message string      `json:"message"`
	Job     JobItem     `json:"job"`
	Scan    ScanSummary `json:"scan"`
}
