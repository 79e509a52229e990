// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/app/scheduler"
	"github.com/amirphl/jobboard-alerts/models"
)

const (
	dateLayout      = "2006-01-02"
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageBounds converts a 1-based page into limit and offset
func pageBounds(page, pageSize uint) (limit, offset int, p, ps uint) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return int(pageSize), int((page - 1) * pageSize), page, pageSize
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// ToAlertPreferenceItem converts an alert model for responses
func ToAlertPreferenceItem(a models.AlertPreference) dto.AlertPreferenceItem {
	days := make([]int, 0, len(a.NotificationDays))
	for _, d := range a.NotificationDays {
		days = append(days, int(d))
	}
	return dto.AlertPreferenceItem{
		ID:                 a.ID,
		UUID:               a.UUID.String(),
		Name:               a.Name,
		RecipientName:      a.RecipientName,
		Location:           a.Location,
		Difficulty:         a.Difficulty,
		DateType:           a.DateType,
		SpecificDateStart:  formatDatePtr(a.SpecificDateStart),
		SpecificDateEnd:    formatDatePtr(a.SpecificDateEnd),
		DurationFlexible:   a.DurationFlexible,
		MinDuration:        a.MinDuration,
		MaxDuration:        a.MaxDuration,
		PaymentKind:        a.PaymentKind,
		MinHourlyRate:      a.MinHourlyRate,
		MaxHourlyRate:      a.MaxHourlyRate,
		MinGlobalAmount:    a.MinGlobalAmount,
		MaxGlobalAmount:    a.MaxGlobalAmount,
		PaymentMethods:     []string(a.PaymentMethods),
		MinPeopleNeeded:    a.MinPeopleNeeded,
		MaxPeopleNeeded:    a.MaxPeopleNeeded,
		SuitabilityFor:     a.SuitabilityFor,
		MinAge:             a.MinAge,
		MaxAge:             a.MaxAge,
		Frequency:          string(a.Frequency),
		NotificationDays:   days,
		DeliveryHoursStart: a.DeliveryHoursStart,
		DeliveryHoursEnd:   a.DeliveryHoursEnd,
		NotifySite:         a.NotifySite,
		NotifyEmail:        a.NotifyEmail,
		NotifyMessaging:    a.NotifyMessaging,
		NotifyPhone:        a.NotifyPhone,
		ContactEmail:       a.ContactEmail,
		ContactPhone:       a.ContactPhone,
		MessagingPhone:     a.MessagingPhone,
		IsActive:           a.Active(),
		LastCheckedAt:      formatTimePtr(a.LastCheckedAt),
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ToJobItem(j models.Job) dto.JobItem {
	return dto.JobItem{
		ID:                   j.ID,
		UUID:                 j.UUID.String(),
		Title:                j.Title,
		Description:          j.Description,
		Area:                 j.Area,
		Difficulty:           j.Difficulty,
		PaymentKind:          string(j.PaymentKind),
		HourlyRate:           j.HourlyRate,
		GlobalAmount:         j.GlobalAmount,
		PaymentMethod:        j.PaymentMethod,
		SuitableForMen:       j.SuitableForMen,
		SuitableForWomen:     j.SuitableForWomen,
		SuitableForGeneral:   j.SuitableForGeneral,
		MinAge:               j.MinAge,
		DateType:             string(j.DateType),
		SpecificDate:         formatDatePtr(j.SpecificDate),
		DurationHours:        j.DurationHours,
		IsFlexible:           j.IsFlexible,
		NumberOfPeopleNeeded: j.NumberOfPeopleNeeded,
		PostedAt:             j.PostedAt.UTC().Format(time.RFC3339),
	}
}

func ToSiteNotificationItem(n models.SiteNotification) dto.SiteNotificationItem {
	return dto.SiteNotificationItem{
		ID:        n.ID,
		UUID:      n.UUID.String(),
		AlertID:   n.AlertID,
		Title:     n.Title,
		Body:      n.Body,
		JobIDs:    []int64(n.JobIDs),
		ReadAt:    formatTimePtr(n.ReadAt),
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToAlertSettingsItem(s models.AlertSettings) dto.AlertSettingsItem {
	item := dto.AlertSettingsItem{
		IsPhoneServiceActive:     s.IsPhoneServiceActive,
		CheckFrequencyMinutes:    s.CheckFrequencyMinutes,
		SendMode:                 string(s.SendMode),
		MaxCallsPerDay:           s.MaxCallsPerDay,
		QuietHoursStart:          s.QuietHoursStart,
		QuietHoursEnd:            s.QuietHoursEnd,
		RequirePaymentForPosters: s.RequirePaymentForPosters,
		RequirePaymentForViewers: s.RequirePaymentForViewers,
	}
	if !s.UpdatedAt.IsZero() {
		item.UpdatedAt = formatTimePtr(&s.UpdatedAt)
	}
	return item
}

func toScanSummary(r scheduler.ScanResult) dto.ScanSummary {
	return dto.ScanSummary{
		Evaluated: r.Evaluated,
		Matched:   r.Matched,
		Errors:    r.Failed,
	}
}
