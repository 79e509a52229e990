package alerting

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"golang.org/x/text/unicode/norm"
)

// bound is an optional inclusive numeric limit
type bound struct {
	set   bool
	value float64
}

// criteria is an alert with every numeric dimension parsed
type criteria struct {
	minDuration, maxDuration bound
	minHourly, maxHourly     bound
	minGlobal, maxGlobal     bound
	minPeople, maxPeople     bound
	minAge, maxAge           bound
}

// Matches reports whether job satisfies alert. Alerts with malformed
// dimensions never match; use Evaluate to see the error.
func Matches(job *models.Job, alert *models.AlertPreference) bool {
	ok, err := Evaluate(job, alert)
	return err == nil && ok
}

// Evaluate applies every configured dimension of alert to job. Unset
// dimensions are wildcards, so an alert with nothing set matches every job.
// The error wraps ErrMalformedDimension when a numeric bound does not parse.
func Evaluate(job *models.Job, alert *models.AlertPreference) (bool, error) {
	if job == nil || alert == nil {
		return false, nil
	}
	c, err := parseCriteria(alert)
	if err != nil {
		return false, err
	}

	return matchLocation(job, alert) &&
		matchExact(alert.Difficulty, job.Difficulty) &&
		matchDate(job, alert) &&
		matchDuration(job, alert, c) &&
		matchPayment(job, alert, c) &&
		matchSuitability(job, alert, c) &&
		inRangeInt(job.NumberOfPeopleNeeded, c.minPeople, c.maxPeople), nil
}

// ValidateAlert checks that every numeric bound of alert parses
func ValidateAlert(alert *models.AlertPreference) error {
	_, err := parseCriteria(alert)
	return err
}

func parseCriteria(a *models.AlertPreference) (criteria, error) {
	var c criteria
	fields := []struct {
		name string
		raw  *string
		dst  *bound
	}{
		{"min_duration", a.MinDuration, &c.minDuration},
		{"max_duration", a.MaxDuration, &c.maxDuration},
		{"min_hourly_rate", a.MinHourlyRate, &c.minHourly},
		{"max_hourly_rate", a.MaxHourlyRate, &c.maxHourly},
		{"min_global_amount", a.MinGlobalAmount, &c.minGlobal},
		{"max_global_amount", a.MaxGlobalAmount, &c.maxGlobal},
		{"min_people_needed", a.MinPeopleNeeded, &c.minPeople},
		{"max_people_needed", a.MaxPeopleNeeded, &c.maxPeople},
		{"min_age", a.MinAge, &c.minAge},
		{"max_age", a.MaxAge, &c.maxAge},
	}
	for _, f := range fields {
		b, err := parseBound(f.raw)
		if err != nil {
			return criteria{}, fmt.Errorf("%w: %s=%q", ErrMalformedDimension, f.name, *f.raw)
		}
		*f.dst = b
	}
	return c, nil
}

func parseBound(raw *string) (bound, error) {
	if raw == nil {
		return bound{}, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return bound{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return bound{}, err
	}
	return bound{set: true, value: v}, nil
}

// NormalizeText folds a free-text value for exact comparison
func NormalizeText(s string) string {
	return strings.ToLower(norm.NFC.String(strings.Join(strings.Fields(s), " ")))
}

func isWildcard(v *string) bool {
	if v == nil {
		return true
	}
	s := strings.TrimSpace(*v)
	return s == "" || strings.EqualFold(s, models.FilterAny)
}

func matchExact(want *string, got *string) bool {
	if isWildcard(want) {
		return true
	}
	if got == nil {
		return false
	}
	return NormalizeText(*want) == NormalizeText(*got)
}

func matchLocation(job *models.Job, alert *models.AlertPreference) bool {
	if isWildcard(alert.Location) {
		return true
	}
	want := NormalizeText(*alert.Location)
	area := NormalizeText(job.Area)
	if want == area {
		return true
	}
	if cities, ok := RegionCities(want); ok {
		return slices.Contains(cities, area)
	}
	return false
}

func matchDate(job *models.Job, alert *models.AlertPreference) bool {
	if isWildcard(alert.DateType) {
		return true
	}
	want := strings.TrimSpace(*alert.DateType)
	if string(job.DateType) != want {
		return false
	}
	if models.JobDateType(want) != models.JobDateSpecificDate {
		return true
	}
	if job.SpecificDate == nil {
		return false
	}
	day := dateOnly(*job.SpecificDate)
	if alert.SpecificDateStart != nil && day.Before(dateOnly(*alert.SpecificDateStart)) {
		return false
	}
	if alert.SpecificDateEnd != nil && day.After(dateOnly(*alert.SpecificDateEnd)) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func matchDuration(job *models.Job, alert *models.AlertPreference, c criteria) bool {
	mode := models.FilterAny
	if !isWildcard(alert.DurationFlexible) {
		mode = strings.ToLower(strings.TrimSpace(*alert.DurationFlexible))
	}
	switch mode {
	case models.DurationFlexibleYes:
		return job.IsFlexible
	case models.DurationFlexibleNo:
		if job.IsFlexible {
			return false
		}
	default:
		if job.IsFlexible {
			return true
		}
	}
	return inRange(job.DurationHours, c.minDuration, c.maxDuration)
}

func matchPayment(job *models.Job, alert *models.AlertPreference, c criteria) bool {
	kind := job.PaymentKind
	if !isWildcard(alert.PaymentKind) {
		want := models.PaymentKind(strings.ToLower(strings.TrimSpace(*alert.PaymentKind)))
		if job.PaymentKind != want {
			return false
		}
		kind = want
	}

	switch kind {
	case models.PaymentKindHourly:
		if !inRange(job.HourlyRate, c.minHourly, c.maxHourly) {
			return false
		}
	case models.PaymentKindGlobal:
		if !inRange(job.GlobalAmount, c.minGlobal, c.maxGlobal) {
			return false
		}
	}

	methods := make([]string, 0, len(alert.PaymentMethods))
	for _, m := range alert.PaymentMethods {
		if n := NormalizeText(m); n != "" {
			methods = append(methods, n)
		}
	}
	if len(methods) == 0 {
		return true
	}
	if job.PaymentMethod == nil {
		return false
	}
	return slices.Contains(methods, NormalizeText(*job.PaymentMethod))
}

// General jobs match every suitability target. A job without a minimum
// age satisfies any age filter; otherwise the job accepts [minAge, inf)
// which must overlap the alert range.
func matchSuitability(job *models.Job, alert *models.AlertPreference, c criteria) bool {
	if !isWildcard(alert.SuitabilityFor) {
		target := strings.ToLower(strings.TrimSpace(*alert.SuitabilityFor))
		ok := job.SuitableForGeneral
		switch target {
		case models.SuitabilityMen:
			ok = ok || job.SuitableForMen
		case models.SuitabilityWomen:
			ok = ok || job.SuitableForWomen
		}
		if !ok {
			return false
		}
	}
	if job.MinAge == nil {
		return true
	}
	if c.maxAge.set && c.maxAge.value < float64(*job.MinAge) {
		return false
	}
	return true
}

// inRange is satisfied by unset bounds; a set bound needs a job value
func inRange(v *float64, lo, hi bound) bool {
	if !lo.set && !hi.set {
		return true
	}
	if v == nil {
		return false
	}
	if lo.set && *v < lo.value {
		return false
	}
	if hi.set && *v > hi.value {
		return false
	}
	return true
}

func inRangeInt(v *int, lo, hi bound) bool {
	if v == nil {
		return inRange(nil, lo, hi)
	}
	f := float64(*v)
	return inRange(&f, lo, hi)
}
