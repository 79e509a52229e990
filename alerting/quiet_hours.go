package alerting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
)

// ClockWindow is a local time-of-day span [Start, End) in minutes after
// midnight. Start > End wraps midnight; Start == End is empty.
type ClockWindow struct {
	Start int
	End   int
}

// ParseClock parses "HH:MM" into minutes after midnight
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// ParseClockWindow parses a start/end pair. ok is false when either side is unset.
func ParseClockWindow(start, end *string) (w ClockWindow, ok bool, err error) {
	if start == nil || end == nil || strings.TrimSpace(*start) == "" || strings.TrimSpace(*end) == "" {
		return ClockWindow{}, false, nil
	}
	s, err := ParseClock(*start)
	if err != nil {
		return ClockWindow{}, false, err
	}
	e, err := ParseClock(*end)
	if err != nil {
		return ClockWindow{}, false, err
	}
	return ClockWindow{Start: s, End: e}, true, nil
}

// Contains reports whether the time of day of t falls inside the window
func (w ClockWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return m >= w.Start && m < w.End
	default:
		return m >= w.Start || m < w.End
	}
}

// CheckGate evaluates the alert's delivery gate at nowLocal. Delivery is
// allowed inside the alert's delivery hours and only on its notification
// days; unset parts are open. An unparseable window fails open and is
// returned as the error so callers can log it.
func CheckGate(alert *models.AlertPreference, nowLocal time.Time) (bool, error) {
	if alert == nil {
		return true, nil
	}
	if !dayAllowed(alert.NotificationDays, nowLocal.Weekday()) {
		return false, nil
	}
	w, ok, err := ParseClockWindow(alert.DeliveryHoursStart, alert.DeliveryHoursEnd)
	if err != nil {
		return true, fmt.Errorf("alert %d delivery hours: %w", alert.ID, err)
	}
	if !ok {
		return true, nil
	}
	return w.Contains(nowLocal), nil
}

// IsAllowedNow is CheckGate without the diagnostic error
func IsAllowedNow(alert *models.AlertPreference, nowLocal time.Time) bool {
	ok, _ := CheckGate(alert, nowLocal)
	return ok
}

// QuietHoursAllow evaluates a global quiet period: delivery is suppressed
// inside [start, end). Unset or unparseable windows allow delivery.
func QuietHoursAllow(start, end *string, nowLocal time.Time) (bool, error) {
	w, ok, err := ParseClockWindow(start, end)
	if err != nil {
		return true, fmt.Errorf("global quiet hours: %w", err)
	}
	if !ok {
		return true, nil
	}
	return !w.Contains(nowLocal), nil
}

// An empty day set means every day
func dayAllowed(days []int64, wd time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if time.Weekday(d) == wd {
			return true
		}
	}
	return false
}
