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
)

// MatchLedger remembers which (alert, job) pairs were already accepted
type MatchLedger interface {
	MarkMatched(ctx context.Context, alertID, jobID uint) (bool, error)
	UnmarkMatched(ctx context.Context, alertID, jobID uint) error
}

// MatchSink takes ownership of a match; DispatchScheduler implements it
type MatchSink interface {
	Accept(ctx context.Context, alert *models.AlertPreference, event alerting.MatchEvent, job *models.Job) error
}

// ScanResult counts what one scan did
type ScanResult struct {
	Alerts     int `json:"alerts"`
	Evaluated  int `json:"evaluated"`
	Matched    int `json:"matched"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

func (r *ScanResult) add(o ScanResult) {
	r.Alerts += o.Alerts
	r.Evaluated += o.Evaluated
	r.Matched += o.Matched
	r.Duplicates += o.Duplicates
	r.Failed += o.Failed
}

// AlertScanner evaluates jobs against active alerts and hands matches to
// the sink. Alerts are processed in parallel; a failure on one alert never
// stops the others.
type AlertScanner struct {
	alerts   repository.AlertPreferenceRepository
	jobs     repository.JobRepository
	ledger   MatchLedger
	sink     MatchSink
	workers  int
	lookback time.Duration
	logger   *log.Logger
	clock    func() time.Time
}

func NewAlertScanner(
	alerts repository.AlertPreferenceRepository,
	jobs repository.JobRepository,
	ledger MatchLedger,
	sink MatchSink,
	workers int,
	lookback time.Duration,
	logger *log.Logger,
) *AlertScanner {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AlertScanner{
		alerts:   alerts,
		jobs:     jobs,
		ledger:   ledger,
		sink:     sink,
		workers:  workers,
		lookback: lookback,
		logger:   logger,
		clock:    utils.UTCNow,
	}
}

// ScanJob is the job creation hook
func (s *AlertScanner) ScanJob(ctx context.Context, job *models.Job) (ScanResult, error) {
	if job == nil {
		return ScanResult{}, errors.New("scan job: nil job")
	}
	alerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan job %d: list alerts: %w", job.ID, err)
	}
	return s.scan(ctx, alerts, []*models.Job{job}), nil
}

// ScanAlert matches one alert against every job posted within the lookback,
// so a new or resumed alert sees recent jobs without waiting for the sweep.
func (s *AlertScanner) ScanAlert(ctx context.Context, alert *models.AlertPreference) (ScanResult, error) {
	jobs, err := s.jobs.ListPostedSince(ctx, s.clock().Add(-s.lookback))
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan alert %d: list jobs: %w", alert.ID, err)
	}
	return s.scan(ctx, []*models.AlertPreference{alert}, jobs), nil
}

// Sweep rescans every active alert against jobs posted within the lookback.
// The ledger keeps it from accepting a pair twice.
func (s *AlertScanner) Sweep(ctx context.Context) (ScanResult, error) {
	jobs, err := s.jobs.ListPostedSince(ctx, s.clock().Add(-s.lookback))
	if err != nil {
		return ScanResult{}, fmt.Errorf("sweep: list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return ScanResult{}, nil
	}
	alerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("sweep: list alerts: %w", err)
	}
	res := s.scan(ctx, alerts, jobs)
	if res.Matched > 0 || res.Failed > 0 {
		s.logger.Printf("scheduler: sweep alerts=%d jobs=%d matched=%d failed=%d", res.Alerts, len(jobs), res.Matched, res.Failed)
	}
	return res, nil
}

func (s *AlertScanner) scan(ctx context.Context, alerts []*models.AlertPreference, jobs []*models.Job) ScanResult {
	ordered := append([]*models.Job(nil), jobs...)
	alerting.SortJobsByPostedAt(ordered)

	var (
		mu    sync.Mutex
		total ScanResult
		wg    sync.WaitGroup
		sem   = make(chan struct{}, s.workers)
	)
	for _, alert := range alerts {
		if !alerting.IsDeliverable(alert) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(alert *models.AlertPreference) {
			defer wg.Done()
			defer func() { <-sem }()
			res := s.scanAlert(ctx, alert, ordered)
			mu.Lock()
			total.add(res)
			mu.Unlock()
		}(alert)
	}
	wg.Wait()
	return total
}

func (s *AlertScanner) scanAlert(ctx context.Context, alert *models.AlertPreference, jobs []*models.Job) (res ScanResult) {
	res.Alerts = 1
	defer func() {
		if p := recover(); p != nil {
			res.Failed++
			s.logger.Printf("scheduler: panic scanning alert id=%d: %v", alert.ID, p)
		}
	}()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return res
		}
		res.Evaluated++
		switch s.processPair(ctx, alert, job) {
		case pairMatched:
			res.Matched++
		case pairDuplicate:
			res.Duplicates++
		case pairFailed:
			res.Failed++
		}
	}
	return res
}

type pairOutcome int

const (
	pairRejected pairOutcome = iota
	pairMatched
	pairDuplicate
	pairFailed
)

func (o pairOutcome) String() string {
	switch o {
	case pairMatched:
		return "matched"
	case pairDuplicate:
		return "duplicate"
	case pairFailed:
		return "failed"
	default:
		return "rejected"
	}
}

func (s *AlertScanner) processPair(ctx context.Context, alert *models.AlertPreference, job *models.Job) (out pairOutcome) {
	defer func() { scanOutcomes.WithLabelValues(out.String()).Inc() }()

	ok, err := alerting.Evaluate(job, alert)
	if err != nil {
		s.logger.Printf("scheduler: evaluate failed alert id=%d job id=%d: %v", alert.ID, job.ID, err)
		return pairFailed
	}
	if !ok {
		s.advance(ctx, alert, job)
		return pairRejected
	}

	first, err := s.ledger.MarkMatched(ctx, alert.ID, job.ID)
	if err != nil {
		s.logger.Printf("scheduler: ledger failed alert id=%d job id=%d: %v", alert.ID, job.ID, err)
		return pairFailed
	}
	if !first {
		s.advance(ctx, alert, job)
		return pairDuplicate
	}

	event := alerting.MatchEvent{AlertID: alert.ID, JobID: job.ID, MatchedAt: s.clock()}
	if err := s.sink.Accept(ctx, alert, event, job); err != nil {
		s.logger.Printf("scheduler: accept failed alert id=%d job id=%d: %v", alert.ID, job.ID, err)
		if uerr := s.ledger.UnmarkMatched(ctx, alert.ID, job.ID); uerr != nil {
			s.logger.Printf("scheduler: unmark failed alert id=%d job id=%d: %v", alert.ID, job.ID, uerr)
		}
		return pairFailed
	}
	s.advance(ctx, alert, job)
	return pairMatched
}

func (s *AlertScanner) advance(ctx context.Context, alert *models.AlertPreference, job *models.Job) {
	if alert.LastCheckedAt != nil && !alert.LastCheckedAt.Before(job.PostedAt) {
		return
	}
	if err := s.alerts.AdvanceLastCheckedAt(ctx, alert.ID, job.PostedAt); err != nil {
		s.logger.Printf("scheduler: advance cursor failed alert id=%d: %v", alert.ID, err)
		return
	}
	// one goroutine owns an alert during a scan
	at := job.PostedAt
	alert.LastCheckedAt = &at
}
