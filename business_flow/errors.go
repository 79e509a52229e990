// Package businessflow contains the use cases of the job alert service
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Alert-related errors
	ErrAlertNotFound          = errors.New("alert not found")
	ErrAlertAccessDenied      = errors.New("alert belongs to another user")
	ErrAlertNoChannel         = errors.New("at least one notification channel must be enabled")
	ErrAlertInvalidRange      = errors.New("numeric range fields must be numbers")
	ErrAlertInvalidClock      = errors.New("delivery hours must be HH:MM")
	ErrAlertHoursIncomplete   = errors.New("delivery hours need both start and end")
	ErrAlertInvalidDates      = errors.New("specific date range is invalid")
	ErrAlertEmailRequired     = errors.New("contact email is required for the email channel")
	ErrAlertPhoneRequired     = errors.New("contact phone is required for the phone channel")
	ErrAlertMessagingRequired = errors.New("messaging phone is required for the messaging channel")

	// Job-related errors
	ErrJobNotFound         = errors.New("job not found")
	ErrJobAccessDenied     = errors.New("job belongs to another poster")
	ErrJobPaymentMissing   = errors.New("payment amount is required for the payment kind")
	ErrJobDateMissing      = errors.New("specific date is required for specificDate jobs")
	ErrJobSuitabilityEmpty = errors.New("job must be suitable for at least one group")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// Settings errors
	ErrSettingsInvalidClock   = errors.New("quiet hours must be HH:MM")
	ErrSettingsIncomplete     = errors.New("quiet hours need both start and end")
	ErrExportRangeInvalid     = errors.New("export range is invalid")
	ErrSchedulerNotConfigured = errors.New("dispatch scheduler is not running")

	// IVR errors
	ErrCallSessionUnavailable = errors.New("call session store unavailable")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAlertNotFound(err error) bool {
	return errors.Is(err, ErrAlertNotFound)
}

func IsAlertAccessDenied(err error) bool {
	return errors.Is(err, ErrAlertAccessDenied)
}

// IsAlertValidation reports errors caused by an invalid alert definition
func IsAlertValidation(err error) bool {
	for _, target := range []error{
		ErrAlertNoChannel,
		ErrAlertInvalidRange,
		ErrAlertInvalidClock,
		ErrAlertHoursIncomplete,
		ErrAlertInvalidDates,
		ErrAlertEmailRequired,
		ErrAlertPhoneRequired,
		ErrAlertMessagingRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

func IsJobAccessDenied(err error) bool {
	return errors.Is(err, ErrJobAccessDenied)
}

func IsJobValidation(err error) bool {
	return errors.Is(err, ErrJobPaymentMissing) ||
		errors.Is(err, ErrJobDateMissing) ||
		errors.Is(err, ErrJobSuitabilityEmpty)
}

func IsNotificationNotFound(err error) bool {
	return errors.Is(err, ErrNotificationNotFound)
}

func IsSettingsValidation(err error) bool {
	return errors.Is(err, ErrSettingsInvalidClock) || errors.Is(err, ErrSettingsIncomplete)
}
