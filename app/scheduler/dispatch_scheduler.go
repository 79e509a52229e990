package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/google/uuid"
)

const (
	tickLockTTL   = 55 * time.Second
	forceLockWait = 90 * time.Second
	forceLockPoll = 50 * time.Millisecond
)

// ErrDispatchBusy is returned when a forced dispatch cannot get the tick lock in time
var ErrDispatchBusy = errors.New("dispatch busy")

// Dispatcher fans a release out to channels
type Dispatcher interface {
	Dispatch(ctx context.Context, rel *alerting.Release, opts DispatchOptions) DispatchReport
}

// ForceReport summarizes a forced dispatch
type ForceReport struct {
	Alerts int `json:"alerts"`
	Jobs   int `json:"jobs"`
}

// DispatchScheduler owns matches between acceptance and release. Instant
// matches go out right away when the delivery gate is open, otherwise they
// wait in the deferred queue. Daily and weekly matches wait in the bucket of
// their window and are flushed by the minute tick once the window closed.
type DispatchScheduler struct {
	alerts    repository.AlertPreferenceRepository
	jobs      repository.JobRepository
	records   repository.ChannelSendRecordRepository
	store     *DispatchStore
	router    Dispatcher
	settings  SettingsSource
	loc       *time.Location
	digestDay time.Weekday
	logger    *log.Logger
	clock     func() time.Time

	inflight sync.WaitGroup
}

func NewDispatchScheduler(
	alerts repository.AlertPreferenceRepository,
	jobs repository.JobRepository,
	records repository.ChannelSendRecordRepository,
	store *DispatchStore,
	router Dispatcher,
	settings SettingsSource,
	loc *time.Location,
	digestDay time.Weekday,
	logger *log.Logger,
) *DispatchScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DispatchScheduler{
		alerts:    alerts,
		jobs:      jobs,
		records:   records,
		store:     store,
		router:    router,
		settings:  settings,
		loc:       loc,
		digestDay: digestDay,
		logger:    logger,
		clock:     utils.UTCNow,
	}
}

// Accept implements MatchSink
func (s *DispatchScheduler) Accept(ctx context.Context, alert *models.AlertPreference, event alerting.MatchEvent, job *models.Job) error {
	item := PendingItem{AlertID: alert.ID, JobID: job.ID, MatchedAt: event.MatchedAt, PostedAt: job.PostedAt}

	switch alert.Frequency {
	case models.AlertFrequencyDaily, models.AlertFrequencyWeekly:
		boundary := alerting.WindowBoundary(alert.Frequency, event.MatchedAt, s.loc, s.digestDay)
		return s.store.AddToBucket(ctx, alert.ID, boundary, item)
	}

	settings := s.settings.Current(ctx)
	if settings.SendMode == models.SendModeBatch {
		return s.store.Defer(ctx, item)
	}
	if !s.gateOpen(alert, settings, s.clock()) {
		if err := s.store.Defer(ctx, item); err != nil {
			return err
		}
		s.recordSkipped(ctx, alert, event)
		return nil
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		rctx := context.WithoutCancel(ctx)
		if err := s.release(rctx, alert, []PendingItem{item}, false, settings); err != nil {
			s.logger.Printf("scheduler: immediate release failed alert id=%d job id=%d, deferring: %v", alert.ID, job.ID, err)
			if derr := s.store.Defer(rctx, item); derr != nil {
				s.logger.Printf("scheduler: defer failed alert id=%d job id=%d: %v", alert.ID, job.ID, derr)
			}
		}
	}()
	return nil
}

// Wait blocks until immediate releases started by Accept are done
func (s *DispatchScheduler) Wait() {
	s.inflight.Wait()
}

// Tick releases deferred instant matches whose gate opened and flushes
// buckets whose window closed. Only one instance ticks at a time.
func (s *DispatchScheduler) Tick(ctx context.Context) error {
	token, ok, err := s.store.AcquireTickLock(ctx, tickLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() {
		if err := s.store.ReleaseTickLock(context.WithoutCancel(ctx), token); err != nil {
			s.logger.Printf("scheduler: %v", err)
		}
	}()

	start := time.Now()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	settings := s.settings.Current(ctx)
	now := s.clock()

	if err := s.releaseDeferred(ctx, settings, now, false); err != nil {
		s.logger.Printf("scheduler: deferred pass failed: %v", err)
	}
	if err := s.flushBuckets(ctx, settings, now, false); err != nil {
		s.logger.Printf("scheduler: bucket pass failed: %v", err)
	}
	return nil
}

// ForceDispatch releases everything pending right now, ignoring delivery
// gates and bucket windows. The volume cap still applies.
func (s *DispatchScheduler) ForceDispatch(ctx context.Context) (ForceReport, error) {
	var report ForceReport
	token, err := s.waitTickLock(ctx)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := s.store.ReleaseTickLock(context.WithoutCancel(ctx), token); err != nil {
			s.logger.Printf("scheduler: %v", err)
		}
	}()

	settings := s.settings.Current(ctx)
	now := s.clock()

	deferred, err := s.store.Deferred(ctx)
	if err != nil {
		return report, err
	}
	buckets, err := s.store.Buckets(ctx)
	if err != nil {
		return report, err
	}

	alertIDs := make(map[uint]struct{})
	for _, it := range deferred {
		alertIDs[it.AlertID] = struct{}{}
	}
	for _, b := range buckets {
		alertIDs[b.AlertID] = struct{}{}
	}
	report.Alerts = len(alertIDs)
	report.Jobs = len(deferred)
	for _, b := range buckets {
		if n, err := s.store.BucketSize(ctx, b); err == nil {
			report.Jobs += int(n)
		}
	}

	if err := s.releaseDeferred(ctx, settings, now, true); err != nil {
		return report, err
	}
	if err := s.flushBuckets(ctx, settings, now, true); err != nil {
		return report, err
	}
	s.logger.Printf("scheduler: forced dispatch alerts=%d jobs=%d", report.Alerts, report.Jobs)
	return report, nil
}

// waitTickLock blocks until the tick lock is free, so a forced dispatch never
// overlaps a tick of any instance
func (s *DispatchScheduler) waitTickLock(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, forceLockWait)
	defer cancel()
	for {
		token, ok, err := s.store.AcquireTickLock(ctx, tickLockTTL)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %v", ErrDispatchBusy, err)
			}
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrDispatchBusy, ctx.Err())
		case <-time.After(forceLockPoll):
		}
	}
}

// DiscardAlert drops everything pending for an alert
func (s *DispatchScheduler) DiscardAlert(ctx context.Context, alertID uint) error {
	return s.store.DiscardAlert(ctx, alertID)
}

// PendingCount returns how many matches wait for release
func (s *DispatchScheduler) PendingCount(ctx context.Context) (int64, error) {
	return s.store.PendingCount(ctx)
}

func (s *DispatchScheduler) releaseDeferred(ctx context.Context, settings models.AlertSettings, now time.Time, forced bool) error {
	items, err := s.store.Deferred(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	groups := make(map[uint][]PendingItem)
	var order []uint
	for _, it := range items {
		if _, ok := groups[it.AlertID]; !ok {
			order = append(order, it.AlertID)
		}
		groups[it.AlertID] = append(groups[it.AlertID], it)
	}
	alerts, err := s.loadAlerts(ctx, order)
	if err != nil {
		return err
	}

	for _, alertID := range order {
		group := groups[alertID]
		alert := alerts[alertID]
		if !alerting.IsDeliverable(alert) {
			if err := s.store.RemoveDeferred(ctx, group...); err != nil {
				s.logger.Printf("scheduler: drop deferred failed alert id=%d: %v", alertID, err)
			}
			continue
		}
		if !forced && !s.gateOpen(alert, settings, now) {
			continue
		}
		group, err := s.store.ClaimDeferred(ctx, group...)
		if err != nil {
			s.logger.Printf("scheduler: take deferred failed alert id=%d: %v", alertID, err)
			continue
		}
		if len(group) == 0 {
			continue
		}
		if err := s.release(ctx, alert, group, forced, settings); err != nil {
			s.logger.Printf("scheduler: release failed alert id=%d, deferring again: %v", alertID, err)
			if derr := s.store.Defer(ctx, group...); derr != nil {
				s.logger.Printf("scheduler: re-defer failed alert id=%d: %v", alertID, derr)
			}
		}
	}
	return nil
}

func (s *DispatchScheduler) flushBuckets(ctx context.Context, settings models.AlertSettings, now time.Time, forced bool) error {
	var (
		buckets []BucketRef
		err     error
	)
	if forced {
		buckets, err = s.store.Buckets(ctx)
	} else {
		buckets, err = s.store.DueBuckets(ctx, now)
	}
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(buckets))
	for _, b := range buckets {
		ids = append(ids, b.AlertID)
	}
	alerts, err := s.loadAlerts(ctx, ids)
	if err != nil {
		return err
	}

	for _, b := range buckets {
		alert := alerts[b.AlertID]
		if !alerting.IsDeliverable(alert) {
			if err := s.store.DeleteBucket(ctx, b); err != nil {
				s.logger.Printf("scheduler: drop bucket failed key=%s: %v", b.Key, err)
			}
			continue
		}
		if !forced && !s.gateOpen(alert, settings, now) {
			continue
		}
		items, err := s.store.FlushBucket(ctx, b)
		if err != nil {
			s.logger.Printf("scheduler: %v", err)
			continue
		}
		if len(items) == 0 {
			continue
		}
		if err := s.release(ctx, alert, items, forced, settings); err != nil {
			s.logger.Printf("scheduler: release failed alert id=%d, restoring bucket: %v", alert.ID, err)
			if rerr := s.store.AddToBucket(ctx, b.AlertID, b.Boundary, items...); rerr != nil {
				s.logger.Printf("scheduler: restore bucket failed key=%s: %v", b.Key, rerr)
			}
		}
	}
	return nil
}

func (s *DispatchScheduler) loadAlerts(ctx context.Context, ids []uint) (map[uint]*models.AlertPreference, error) {
	rows, err := s.alerts.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	out := make(map[uint]*models.AlertPreference, len(rows))
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

// release loads the still existing jobs of items and dispatches them as one
// release. Only infrastructure failures are returned; channel failures end
// up in the send records.
func (s *DispatchScheduler) release(ctx context.Context, alert *models.AlertPreference, items []PendingItem, forced bool, settings models.AlertSettings) error {
	ids := make([]uint, 0, len(items))
	matchedAt := make(map[uint]time.Time, len(items))
	for _, it := range items {
		ids = append(ids, it.JobID)
		matchedAt[it.JobID] = it.MatchedAt
	}
	jobs, err := s.jobs.ByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	if len(jobs) == 0 {
		s.logger.Printf("scheduler: nothing to release alert id=%d, jobs removed", alert.ID)
		return nil
	}

	rel := alerting.NewRelease(alert, jobs, matchedAt, s.clock(), forced)
	s.logger.Printf("scheduler: release alert id=%d jobs=%d forced=%t release=%s", alert.ID, len(rel.Jobs), forced, rel.ID)
	s.router.Dispatch(ctx, rel, DispatchOptions{PhoneServiceActive: settings.IsPhoneServiceActive})
	return nil
}

// gateOpen combines the alert's own delivery gate with the global quiet hours
func (s *DispatchScheduler) gateOpen(alert *models.AlertPreference, settings models.AlertSettings, now time.Time) bool {
	local := now.In(s.loc)
	ok, err := alerting.CheckGate(alert, local)
	if err != nil {
		s.logger.Printf("scheduler: delivery gate misconfigured, allowing: %v", err)
	}
	if !ok {
		return false
	}
	ok, err = alerting.QuietHoursAllow(settings.QuietHoursStart, settings.QuietHoursEnd, local)
	if err != nil {
		s.logger.Printf("scheduler: %v, allowing", err)
	}
	return ok
}

// recordSkipped leaves a skipped_quiet_hours trace per enabled channel
func (s *DispatchScheduler) recordSkipped(ctx context.Context, alert *models.AlertPreference, event alerting.MatchEvent) {
	now := s.clock()
	releaseID := uuid.New()
	var records []*models.ChannelSendRecord
	for _, ch := range alerting.EnabledChannels(alert) {
		records = append(records, &models.ChannelSendRecord{
			ReleaseID:   releaseID,
			AlertID:     alert.ID,
			JobID:       event.JobID,
			Channel:     ch,
			OwnerID:     alert.OwnerID,
			Status:      models.SendStatusSkippedQuietHours,
			MatchedAt:   event.MatchedAt,
			AttemptedAt: now,
		})
	}
	if err := s.records.SaveBatch(ctx, records); err != nil {
		s.logger.Printf("scheduler: save skipped records failed alert id=%d: %v", alert.ID, err)
	}
}
