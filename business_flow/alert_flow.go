package businessflow

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/app/scheduler"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/lib/pq"
)

// AlertScanHook backfills an alert against recently posted jobs
type AlertScanHook interface {
	ScanAlert(ctx context.Context, alert *models.AlertPreference) (scheduler.ScanResult, error)
}

// PendingDiscarder drops matches of an alert still waiting for release
type PendingDiscarder interface {
	DiscardAlert(ctx context.Context, alertID uint) error
}

// AlertFlow defines operations on a user's alert preferences
type AlertFlow interface {
	CreateAlert(ctx context.Context, req *dto.AlertPreferenceRequest) (*dto.AlertPreferenceResponse, error)
	UpdateAlert(ctx context.Context, alertUUID string, req *dto.AlertPreferenceRequest) (*dto.AlertPreferenceResponse, error)
	GetAlert(ctx context.Context, ownerID uint, alertUUID string) (*dto.AlertPreferenceResponse, error)
	ListAlerts(ctx context.Context, req *dto.ListAlertPreferencesRequest) (*dto.ListAlertPreferencesResponse, error)
	PauseAlert(ctx context.Context, ownerID uint, alertUUID string) (*dto.AlertPreferenceResponse, error)
	ResumeAlert(ctx context.Context, ownerID uint, alertUUID string) (*dto.AlertPreferenceResponse, error)
	DeleteAlert(ctx context.Context, ownerID uint, alertUUID string) error
}

// AlertFlowImpl implements AlertFlow. scanner and pending may be nil when
// the dispatch engine is disabled.
type AlertFlowImpl struct {
	alertRepo repository.AlertPreferenceRepository
	scanner   AlertScanHook
	pending   PendingDiscarder
}

func NewAlertFlow(alertRepo repository.AlertPreferenceRepository, scanner AlertScanHook, pending PendingDiscarder) AlertFlow {
	return &AlertFlowImpl{alertRepo: alertRepo, scanner: scanner, pending: pending}
}

func (f *AlertFlowImpl) CreateAlert(ctx context.Context, req *dto.AlertPreferenceRequest) (*dto.AlertPreferenceResponse, error) {
	alert := &models.AlertPreference{OwnerID: req.OwnerID, IsActive: utils.ToPtr(true)}
	if err := applyAlertRequest(alert, req); err != nil {
		return nil, err
	}

	if err := f.alertRepo.Save(ctx, alert); err != nil {
		return nil, NewBusinessError("ALERT_CREATE_FAILED", "Failed to create alert", err)
	}

	return &dto.AlertPreferenceResponse{
		Message: "Alert created successfully",
		Alert:   ToAlertPreferenceItem(*alert),
		Scan:    f.backfill(ctx, alert),
	}, nil
}

func (f *AlertFlowImpl) UpdateAlert(ctx context.Context, alertUUID string, req *dto.AlertPreferenceRequest) (*dto.AlertPreferenceResponse, error) {
	alert, err := f.ownedAlert(ctx, req.OwnerID, alertUUID)
	if err != nil {
		return nil, err
	}
	if err := applyAlertRequest(alert, req); err != nil {
		return nil, err
	}
	if err := f.alertRepo.Update(ctx, alert); err != nil {
		return nil, NewBusinessError("ALERT_UPDATE_FAILED", "Failed to update alert", err)
	}

	// Pending matches were selected by the old filters
	f.discard(ctx, alert.ID)

	return &dto.AlertPreferenceResponse{
		Message: "Alert updated successfully",
		Alert:   ToAlertPreferenceItem(*alert),
		Scan:    f.backfill(ctx, alert),
	}, nil
}

func (f *AlertFlowImpl) GetAlert(ctx context.Context, ownerID uint, alertUUID string) (*dto.AlertPreferenceResponse, error) {
	alert, err := f.ownedAlert(ctx, ownerID, alertUUID)
	if err != nil {
		return nil, err
	}
	return &dto.AlertPreferenceResponse{
		Message: "Alert retrieved successfully",
		Alert:   ToAlertPreferenceItem(*alert),
	}, nil
}

func (f *AlertFlowImpl) ListAlerts(ctx context.Context, req *dto.ListAlertPreferencesRequest) (*dto.ListAlertPreferencesResponse, error) {
	limit, offset, page, pageSize := pageBounds(req.Page, req.PageSize)
	rows, err := f.alertRepo.ListByOwner(ctx, req.OwnerID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("ALERT_LIST_FAILED", "Failed to list alerts", err)
	}

	items := make([]dto.AlertPreferenceItem, 0, len(rows))
	for _, a := range rows {
		items = append(items, ToAlertPreferenceItem(*a))
	}
	return &dto.ListAlertPreferencesResponse{
		Message:  "Alerts retrieved successfully",
		Items:    items,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// PauseAlert stops scanning the alert and drops its unreleased matches
func (f *AlertFlowImpl) PauseAlert(ctx context.Context, ownerID uint, alertUUID string) (*dto.AlertPreferenceResponse, error) {
	alert, err := f.ownedAlert(ctx, ownerID, alertUUID)
	if err != nil {
		return nil, err
	}
	if alert.Active() {
		if err := f.alertRepo.SetActive(ctx, alert.ID, false); err != nil {
			return nil, NewBusinessError("ALERT_UPDATE_FAILED", "Failed to pause alert", err)
		}
		alert.IsActive = utils.ToPtr(false)
	}
	f.discard(ctx, alert.ID)

	return &dto.AlertPreferenceResponse{
		Message: "Alert paused successfully",
		Alert:   ToAlertPreferenceItem(*alert),
	}, nil
}

// ResumeAlert reactivates the alert and backfills it
func (f *AlertFlowImpl) ResumeAlert(ctx context.Context, ownerID uint, alertUUID string) (*dto.AlertPreferenceResponse, error) {
	alert, err := f.ownedAlert(ctx, ownerID, alertUUID)
	if err != nil {
		return nil, err
	}
	if alert.Active() {
		return &dto.AlertPreferenceResponse{
			Message: "Alert is already active",
			Alert:   ToAlertPreferenceItem(*alert),
		}, nil
	}
	if err := f.alertRepo.SetActive(ctx, alert.ID, true); err != nil {
		return nil, NewBusinessError("ALERT_UPDATE_FAILED", "Failed to resume alert", err)
	}
	alert.IsActive = utils.ToPtr(true)

	return &dto.AlertPreferenceResponse{
		Message: "Alert resumed successfully",
		Alert:   ToAlertPreferenceItem(*alert),
		Scan:    f.backfill(ctx, alert),
	}, nil
}

func (f *AlertFlowImpl) DeleteAlert(ctx context.Context, ownerID uint, alertUUID string) error {
	alert, err := f.ownedAlert(ctx, ownerID, alertUUID)
	if err != nil {
		return err
	}
	if err := f.alertRepo.Delete(ctx, alert.ID); err != nil {
		return NewBusinessError("ALERT_DELETE_FAILED", "Failed to delete alert", err)
	}
	f.discard(ctx, alert.ID)
	return nil
}

func (f *AlertFlowImpl) ownedAlert(ctx context.Context, ownerID uint, alertUUID string) (*models.AlertPreference, error) {
	if _, err := utils.ParseUUID(alertUUID); err != nil {
		return nil, NewBusinessError("ALERT_NOT_FOUND", "Alert not found", ErrAlertNotFound)
	}
	alert, err := f.alertRepo.ByUUID(ctx, alertUUID)
	if err != nil {
		return nil, NewBusinessError("ALERT_FETCH_FAILED", "Failed to fetch alert", err)
	}
	if alert == nil {
		return nil, NewBusinessError("ALERT_NOT_FOUND", "Alert not found", ErrAlertNotFound)
	}
	if alert.OwnerID != ownerID {
		return nil, NewBusinessError("FORBIDDEN", "You can only manage your own alerts", ErrAlertAccessDenied)
	}
	return alert, nil
}

// backfill failures never fail the request; the periodic sweep retries
func (f *AlertFlowImpl) backfill(ctx context.Context, alert *models.AlertPreference) *dto.ScanSummary {
	if f.scanner == nil || !alert.Active() {
		return nil
	}
	res, err := f.scanner.ScanAlert(ctx, alert)
	if err != nil {
		log.Printf("alerts: backfill alert id=%d failed: %v", alert.ID, err)
		return nil
	}
	summary := toScanSummary(res)
	return &summary
}

func (f *AlertFlowImpl) discard(ctx context.Context, alertID uint) {
	if f.pending == nil {
		return
	}
	if err := f.pending.DiscardAlert(ctx, alertID); err != nil {
		log.Printf("alerts: discard pending matches alert id=%d failed: %v", alertID, err)
	}
}

// applyAlertRequest copies req onto alert and validates the result
func applyAlertRequest(alert *models.AlertPreference, req *dto.AlertPreferenceRequest) error {
	alert.Name = strings.TrimSpace(req.Name)
	alert.RecipientName = strings.TrimSpace(req.RecipientName)

	alert.Location = cleanString(req.Location)
	alert.Difficulty = cleanString(req.Difficulty)
	alert.DateType = cleanString(req.DateType)
	alert.DurationFlexible = cleanString(req.DurationFlexible)
	alert.MinDuration = cleanString(req.MinDuration)
	alert.MaxDuration = cleanString(req.MaxDuration)
	alert.PaymentKind = cleanString(req.PaymentKind)
	alert.MinHourlyRate = cleanString(req.MinHourlyRate)
	alert.MaxHourlyRate = cleanString(req.MaxHourlyRate)
	alert.MinGlobalAmount = cleanString(req.MinGlobalAmount)
	alert.MaxGlobalAmount = cleanString(req.MaxGlobalAmount)
	alert.MinPeopleNeeded = cleanString(req.MinPeopleNeeded)
	alert.MaxPeopleNeeded = cleanString(req.MaxPeopleNeeded)
	alert.SuitabilityFor = cleanString(req.SuitabilityFor)
	alert.MinAge = cleanString(req.MinAge)
	alert.MaxAge = cleanString(req.MaxAge)

	methods := make(pq.StringArray, 0, len(req.PaymentMethods))
	for _, m := range req.PaymentMethods {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}
	alert.PaymentMethods = methods

	start, err := parseDate(req.SpecificDateStart)
	if err != nil {
		return NewBusinessError("INVALID_ALERT", "specific_date_start must be YYYY-MM-DD", ErrAlertInvalidDates)
	}
	end, err := parseDate(req.SpecificDateEnd)
	if err != nil {
		return NewBusinessError("INVALID_ALERT", "specific_date_end must be YYYY-MM-DD", ErrAlertInvalidDates)
	}
	if start != nil && end != nil && end.Before(*start) {
		return NewBusinessError("INVALID_ALERT", "specific_date_end is before specific_date_start", ErrAlertInvalidDates)
	}
	alert.SpecificDateStart = start
	alert.SpecificDateEnd = end

	alert.Frequency = models.AlertFrequency(req.Frequency)
	if !alert.Frequency.Valid() {
		alert.Frequency = models.AlertFrequencyInstant
	}
	days := make(pq.Int64Array, 0, len(req.NotificationDays))
	seen := map[int]bool{}
	for _, d := range req.NotificationDays {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, int64(d))
	}
	alert.NotificationDays = days

	alert.DeliveryHoursStart = cleanString(req.DeliveryHoursStart)
	alert.DeliveryHoursEnd = cleanString(req.DeliveryHoursEnd)
	if (alert.DeliveryHoursStart == nil) != (alert.DeliveryHoursEnd == nil) {
		return NewBusinessError("INVALID_ALERT", "delivery_hours_start and delivery_hours_end must be set together", ErrAlertHoursIncomplete)
	}
	for _, v := range []*string{alert.DeliveryHoursStart, alert.DeliveryHoursEnd} {
		if v == nil {
			continue
		}
		if _, err := alerting.ParseClock(*v); err != nil {
			return NewBusinessError("INVALID_ALERT", "delivery hours must be HH:MM", ErrAlertInvalidClock)
		}
	}

	alert.NotifySite = req.NotifySite
	alert.NotifyEmail = req.NotifyEmail
	alert.NotifyMessaging = req.NotifyMessaging
	alert.NotifyPhone = req.NotifyPhone
	alert.ContactEmail = cleanString(req.ContactEmail)
	alert.ContactPhone = cleanString(req.ContactPhone)
	alert.MessagingPhone = cleanString(req.MessagingPhone)

	if !alert.NotifySite && !alert.NotifyEmail && !alert.NotifyMessaging && !alert.NotifyPhone {
		return NewBusinessError("INVALID_ALERT", "enable at least one notification channel", ErrAlertNoChannel)
	}
	if alert.NotifyEmail && alert.ContactEmail == nil {
		return NewBusinessError("INVALID_ALERT", "contact_email is required for email alerts", ErrAlertEmailRequired)
	}
	if alert.NotifyPhone && alert.ContactPhone == nil {
		return NewBusinessError("INVALID_ALERT", "contact_phone is required for phone alerts", ErrAlertPhoneRequired)
	}
	if alert.NotifyMessaging && alert.MessagingPhone == nil {
		return NewBusinessError("INVALID_ALERT", "messaging_phone is required for messaging alerts", ErrAlertMessagingRequired)
	}

	if err := alerting.ValidateAlert(alert); err != nil {
		msg := "numeric range fields must be numbers"
		if errors.Is(err, alerting.ErrMalformedDimension) {
			msg = err.Error()
		}
		return NewBusinessError("INVALID_ALERT", msg, ErrAlertInvalidRange)
	}
	return nil
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func parseDate(s *string) (*time.Time, error) {
	v := cleanString(s)
	if v == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
