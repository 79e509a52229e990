package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/app/scheduler"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/xuri/excelize/v2"
)

// DispatchControl is the part of the dispatch scheduler exposed to admins
type DispatchControl interface {
	ForceDispatch(ctx context.Context) (scheduler.ForceReport, error)
	PendingCount(ctx context.Context) (int64, error)
}

// AlertAdminFlow defines admin operations of the alert engine
type AlertAdminFlow interface {
	GetStats(ctx context.Context) (*dto.AlertStatsResponse, error)
	GetSettings(ctx context.Context) (*dto.AlertSettingsResponse, error)
	UpdateSettings(ctx context.Context, req *dto.UpdateAlertSettingsRequest) (*dto.AlertSettingsResponse, error)
	ForceDispatch(ctx context.Context) (*dto.ForceDispatchResponse, error)
	ExportSendRecords(ctx context.Context, req *dto.ExportSendRecordsRequest) (string, []byte, error)
}

const (
	exportDefaultDays = 30
	maxExportRows     = 100000
)

// AlertAdminFlowImpl implements AlertAdminFlow. dispatch is nil when the
// scheduler is disabled in this process.
type AlertAdminFlowImpl struct {
	recordRepo   repository.ChannelSendRecordRepository
	settingsRepo repository.AlertSettingsRepository
	jobRepo      repository.JobRepository
	settings     scheduler.SettingsSource
	dispatch     DispatchControl
	limiter      alerting.VolumeLimiter
	loc          *time.Location
	clock        func() time.Time
}

func NewAlertAdminFlow(
	recordRepo repository.ChannelSendRecordRepository,
	settingsRepo repository.AlertSettingsRepository,
	jobRepo repository.JobRepository,
	settings scheduler.SettingsSource,
	dispatch DispatchControl,
	limiter alerting.VolumeLimiter,
	loc *time.Location,
) AlertAdminFlow {
	if loc == nil {
		loc = time.UTC
	}
	return &AlertAdminFlowImpl{
		recordRepo:   recordRepo,
		settingsRepo: settingsRepo,
		jobRepo:      jobRepo,
		settings:     settings,
		dispatch:     dispatch,
		limiter:      limiter,
		loc:          loc,
		clock:        utils.UTCNow,
	}
}

func (f *AlertAdminFlowImpl) GetStats(ctx context.Context) (*dto.AlertStatsResponse, error) {
	now := f.clock()
	since := utils.StartOfDay(now, f.loc)

	count := func(status models.SendStatus, since *time.Time) (int64, error) {
		n, err := f.recordRepo.CountByStatusSince(ctx, status, since)
		if err != nil {
			return 0, NewBusinessError("STATS_FAILED", "Failed to count send records", err)
		}
		return n, nil
	}

	resp := &dto.AlertStatsResponse{Message: "Statistics retrieved successfully"}
	var err error
	if resp.SentToday, err = count(models.SendStatusSent, &since); err != nil {
		return nil, err
	}
	if resp.SentTotal, err = count(models.SendStatusSent, nil); err != nil {
		return nil, err
	}
	if resp.FailedToday, err = count(models.SendStatusFailed, &since); err != nil {
		return nil, err
	}
	quiet, err := count(models.SendStatusSkippedQuietHours, &since)
	if err != nil {
		return nil, err
	}
	capped, err := count(models.SendStatusSkippedVolumeCap, &since)
	if err != nil {
		return nil, err
	}
	resp.SkippedToday = quiet + capped

	byChannel, err := f.recordRepo.CountByChannelStatusSince(ctx, since)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count send records", err)
	}
	resp.ByChannel = make(map[string]map[string]int64, len(byChannel))
	for ch, statuses := range byChannel {
		m := make(map[string]int64, len(statuses))
		for st, n := range statuses {
			m[string(st)] = n
		}
		resp.ByChannel[string(ch)] = m
	}

	if f.limiter != nil {
		calls, err := f.limiter.Used(ctx, models.ChannelPhone, utils.DayKey(now, f.loc))
		if err != nil {
			return nil, NewBusinessError("STATS_FAILED", "Failed to read call volume", err)
		}
		resp.CallsToday = calls
	}
	resp.CallsCap = f.settings.Current(ctx).MaxCallsPerDay

	if resp.PendingJobs, err = f.jobRepo.CountPendingScan(ctx); err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to count jobs pending scan", err)
	}
	if f.dispatch != nil {
		pending, err := f.dispatch.PendingCount(ctx)
		if err != nil {
			return nil, NewBusinessError("STATS_FAILED", "Failed to count pending matches", err)
		}
		resp.PendingMatches = pending
	}
	return resp, nil
}

func (f *AlertAdminFlowImpl) GetSettings(ctx context.Context) (*dto.AlertSettingsResponse, error) {
	return &dto.AlertSettingsResponse{
		Message:  "Settings retrieved successfully",
		Settings: ToAlertSettingsItem(f.settings.Current(ctx)),
	}, nil
}

// UpdateSettings patches the stored row, creating it from the defaults on first write
func (f *AlertAdminFlowImpl) UpdateSettings(ctx context.Context, req *dto.UpdateAlertSettingsRequest) (*dto.AlertSettingsResponse, error) {
	row, err := f.settingsRepo.Current(ctx)
	if err != nil {
		return nil, NewBusinessError("SETTINGS_FETCH_FAILED", "Failed to load settings", err)
	}
	create := row == nil
	if create {
		seed := f.settings.Current(ctx)
		seed.ID = 0
		row = &seed
	}

	if req.IsPhoneServiceActive != nil {
		row.IsPhoneServiceActive = *req.IsPhoneServiceActive
	}
	if req.CheckFrequencyMinutes != nil {
		row.CheckFrequencyMinutes = *req.CheckFrequencyMinutes
	}
	if req.SendMode != nil {
		row.SendMode = models.SendMode(*req.SendMode)
	}
	if req.MaxCallsPerDay != nil {
		row.MaxCallsPerDay = *req.MaxCallsPerDay
	}
	if req.RequirePaymentForPosters != nil {
		row.RequirePaymentForPosters = *req.RequirePaymentForPosters
	}
	if req.RequirePaymentForViewers != nil {
		row.RequirePaymentForViewers = *req.RequirePaymentForViewers
	}
	if req.QuietHoursStart != nil {
		row.QuietHoursStart = cleanString(req.QuietHoursStart)
	}
	if req.QuietHoursEnd != nil {
		row.QuietHoursEnd = cleanString(req.QuietHoursEnd)
	}
	if err := validateSettings(row); err != nil {
		return nil, err
	}
	if req.AdminID != 0 {
		row.UpdatedByAdminID = utils.ToPtr(req.AdminID)
	}

	if create {
		err = f.settingsRepo.Save(ctx, row)
	} else {
		err = f.settingsRepo.Update(ctx, row)
	}
	if err != nil {
		return nil, NewBusinessError("SETTINGS_UPDATE_FAILED", "Failed to update settings", err)
	}

	return &dto.AlertSettingsResponse{
		Message:  "Settings updated successfully",
		Settings: ToAlertSettingsItem(*row),
	}, nil
}

func validateSettings(s *models.AlertSettings) error {
	if !s.SendMode.Valid() {
		return NewBusinessError("INVALID_SETTINGS", "send_mode must be immediate or batch", nil)
	}
	if s.CheckFrequencyMinutes <= 0 {
		return NewBusinessError("INVALID_SETTINGS", "check_frequency_minutes must be positive", nil)
	}
	if s.MaxCallsPerDay < 0 {
		return NewBusinessError("INVALID_SETTINGS", "max_calls_per_day must not be negative", nil)
	}
	if (s.QuietHoursStart == nil) != (s.QuietHoursEnd == nil) {
		return NewBusinessError("INVALID_SETTINGS", "quiet_hours_start and quiet_hours_end must be set together", ErrSettingsIncomplete)
	}
	if _, _, err := alerting.ParseClockWindow(s.QuietHoursStart, s.QuietHoursEnd); err != nil {
		return NewBusinessError("INVALID_SETTINGS", "quiet hours must be HH:MM", ErrSettingsInvalidClock)
	}
	return nil
}

// ForceDispatch releases every pending match now, ignoring delivery windows
func (f *AlertAdminFlowImpl) ForceDispatch(ctx context.Context) (*dto.ForceDispatchResponse, error) {
	if f.dispatch == nil {
		return nil, NewBusinessError("SCHEDULER_DISABLED", "Dispatch scheduler is not running", ErrSchedulerNotConfigured)
	}
	report, err := f.dispatch.ForceDispatch(ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrDispatchBusy) {
			return nil, NewBusinessError("DISPATCH_BUSY", "A dispatch run is already in progress", err)
		}
		return nil, NewBusinessError("FORCE_DISPATCH_FAILED", "Failed to dispatch pending matches", err)
	}
	return &dto.ForceDispatchResponse{
		Message: "Pending matches dispatched",
		Alerts:  report.Alerts,
		Jobs:    report.Jobs,
	}, nil
}

// ExportSendRecords builds an xlsx workbook with one row per delivery attempt
// and a per channel summary sheet
func (f *AlertAdminFlowImpl) ExportSendRecords(ctx context.Context, req *dto.ExportSendRecordsRequest) (string, []byte, error) {
	now := f.clock().In(f.loc)
	until := utils.StartOfDay(now, f.loc).AddDate(0, 0, 1)
	since := until.AddDate(0, 0, -exportDefaultDays)
	if v := cleanString(req.Since); v != nil {
		t, err := time.ParseInLocation(dateLayout, *v, f.loc)
		if err != nil {
			return "", nil, NewBusinessError("VALIDATION_ERROR", "since must be YYYY-MM-DD", ErrExportRangeInvalid)
		}
		since = t
	}
	if v := cleanString(req.Until); v != nil {
		t, err := time.ParseInLocation(dateLayout, *v, f.loc)
		if err != nil {
			return "", nil, NewBusinessError("VALIDATION_ERROR", "until must be YYYY-MM-DD", ErrExportRangeInvalid)
		}
		until = t.AddDate(0, 0, 1)
	}
	if !since.Before(until) {
		return "", nil, NewBusinessError("VALIDATION_ERROR", "since must not be after until", ErrExportRangeInvalid)
	}

	filter := models.ChannelSendRecordFilter{
		AttemptedAfter:  utils.ToPtr(since.UTC()),
		AttemptedBefore: utils.ToPtr(until.UTC()),
	}
	if v := cleanString(req.Channel); v != nil {
		filter.Channel = utils.ToPtr(models.NotificationChannel(*v))
	}
	if v := cleanString(req.Status); v != nil {
		filter.Status = utils.ToPtr(models.SendStatus(*v))
	}
	rows, err := f.recordRepo.ByFilter(ctx, filter, "attempted_at ASC, id ASC", maxExportRows, 0)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_SEND_RECORDS_FAILED", "Failed to fetch send records", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const recordsSheet = "send_records"
	const summarySheet = "summary"
	xl.SetSheetName(xl.GetSheetName(0), recordsSheet)

	header := []string{"id", "release_id", "alert_id", "job_id", "owner_id", "channel", "status", "forced", "error", "matched_at", "attempted_at"}
	_ = xl.SetSheetRow(recordsSheet, "A1", &header)

	type key struct {
		channel models.NotificationChannel
		status  models.SendStatus
	}
	totals := map[key]int{}
	for ri, r := range rows {
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.ReleaseID.String(),
			strconv.FormatUint(uint64(r.AlertID), 10),
			strconv.FormatUint(uint64(r.JobID), 10),
			strconv.FormatUint(uint64(r.OwnerID), 10),
			string(r.Channel),
			string(r.Status),
			strconv.FormatBool(r.Forced),
			utils.DerefString(r.Error),
			r.MatchedAt.In(f.loc).Format(time.RFC3339),
			r.AttemptedAt.In(f.loc).Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(recordsSheet, cellRef, &record)
		totals[key{r.Channel, r.Status}]++
	}

	if _, err := xl.NewSheet(summarySheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	summaryHeader := []string{"channel", "status", "count"}
	_ = xl.SetSheetRow(summarySheet, "A1", &summaryHeader)
	keys := make([]key, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].channel != keys[j].channel {
			return keys[i].channel < keys[j].channel
		}
		return keys[i].status < keys[j].status
	})
	for i, k := range keys {
		row := []any{string(k.channel), string(k.status), totals[k]}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(summarySheet, cellRef, &row)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("channel_send_records_%s_%s.xlsx",
		strings.ReplaceAll(since.Format(dateLayout), "-", ""),
		strings.ReplaceAll(until.AddDate(0, 0, -1).Format(dateLayout), "-", ""))
	return filename, buf.Bytes(), nil
}
