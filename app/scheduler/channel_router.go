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

var (
	errMissingContact   = errors.New("channel contact target is not set")
	errVolumeCapReached = errors.New("daily volume cap reached")
)

// Delivery is what a channel sender receives for one release
type Delivery struct {
	ReleaseID uuid.UUID
	Alert     *models.AlertPreference
	Jobs      []*models.Job
	Digest    alerting.DigestPayload
	Contact   string
	Forced    bool
}

// ChannelSender delivers a release on one channel. Send should retry
// transient failures itself; a returned error marks the attempt failed.
type ChannelSender interface {
	Channel() models.NotificationChannel
	Send(ctx context.Context, d Delivery) error
}

// DispatchOptions carries per-release switches taken from the admin settings
type DispatchOptions struct {
	PhoneServiceActive bool
}

// ChannelOutcome is the result of one channel of a release
type ChannelOutcome struct {
	Channel models.NotificationChannel
	Status  models.SendStatus
	Jobs    int
	Err     error
}

// DispatchReport collects the channel outcomes of a release
type DispatchReport struct {
	ReleaseID uuid.UUID
	Outcomes  []ChannelOutcome
}

// Outcome returns the outcome of channel ch, if it was attempted
func (r DispatchReport) Outcome(ch models.NotificationChannel) (ChannelOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Channel == ch {
			return o, true
		}
	}
	return ChannelOutcome{}, false
}

// ChannelRouter fans a release out to the alert's enabled channels. Each
// channel runs in its own goroutine and its failure never affects siblings.
type ChannelRouter struct {
	senders map[models.NotificationChannel]ChannelSender
	records repository.ChannelSendRecordRepository
	limiter alerting.VolumeLimiter
	loc     *time.Location
	logger  *log.Logger
	clock   func() time.Time
}

func NewChannelRouter(records repository.ChannelSendRecordRepository, limiter alerting.VolumeLimiter, loc *time.Location, logger *log.Logger) *ChannelRouter {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ChannelRouter{
		senders: make(map[models.NotificationChannel]ChannelSender),
		records: records,
		limiter: limiter,
		loc:     loc,
		logger:  logger,
		clock:   utils.UTCNow,
	}
}

// Register installs the sender of its channel, replacing any previous one
func (r *ChannelRouter) Register(s ChannelSender) {
	r.senders[s.Channel()] = s
}

func (r *ChannelRouter) Dispatch(ctx context.Context, rel *alerting.Release, opts DispatchOptions) DispatchReport {
	if rel == nil {
		return DispatchReport{}
	}
	report := DispatchReport{ReleaseID: rel.ID}
	if len(rel.Jobs) == 0 {
		return report
	}
	releaseSize.Observe(float64(len(rel.Jobs)))

	var channels []models.NotificationChannel
	for _, ch := range alerting.EnabledChannels(rel.Alert) {
		if ch == models.ChannelPhone && !opts.PhoneServiceActive {
			continue
		}
		if _, ok := r.senders[ch]; !ok {
			r.logger.Printf("scheduler: no sender registered channel=%s alert id=%d", ch, rel.Alert.ID)
			continue
		}
		channels = append(channels, ch)
	}

	report.Outcomes = make([]ChannelOutcome, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch models.NotificationChannel) {
			defer wg.Done()
			report.Outcomes[i] = r.dispatchChannel(ctx, rel, ch)
		}(i, ch)
	}
	wg.Wait()
	return report
}

func (r *ChannelRouter) dispatchChannel(ctx context.Context, rel *alerting.Release, ch models.NotificationChannel) (out ChannelOutcome) {
	out.Channel = ch
	defer func() {
		if p := recover(); p != nil {
			out.Status = models.SendStatusFailed
			out.Err = fmt.Errorf("panic in %s sender: %v", ch, p)
			r.logger.Printf("scheduler: %v alert id=%d", out.Err, rel.Alert.ID)
		}
	}()

	alert := rel.Alert
	ids := make([]uint, 0, len(rel.Jobs))
	for _, j := range rel.Jobs {
		ids = append(ids, j.ID)
	}
	sent, err := r.records.SentJobIDs(ctx, alert.ID, ch, ids)
	if err != nil {
		r.logger.Printf("scheduler: load sent records failed alert id=%d channel=%s: %v", alert.ID, ch, err)
		out.Status, out.Err = models.SendStatusFailed, err
		return out
	}
	jobs := make([]*models.Job, 0, len(rel.Jobs))
	for _, j := range rel.Jobs {
		if !sent[j.ID] {
			jobs = append(jobs, j)
		}
	}
	if len(jobs) == 0 {
		return out
	}
	out.Jobs = len(jobs)

	contact := alerting.ContactFor(alert, ch)
	if ch != models.ChannelSite && contact == "" {
		return r.finish(ctx, rel, ch, jobs, models.SendStatusFailed, errMissingContact)
	}

	now := r.clock()
	if alerting.IsCapped(ch) && r.limiter != nil {
		ok, err := r.limiter.TryConsume(ctx, ch, utils.DayKey(now, r.loc))
		if err != nil {
			r.logger.Printf("scheduler: volume limiter failed alert id=%d channel=%s: %v", alert.ID, ch, err)
			return r.finish(ctx, rel, ch, jobs, models.SendStatusFailed, fmt.Errorf("volume limiter: %w", err))
		}
		if !ok {
			return r.finish(ctx, rel, ch, jobs, models.SendStatusSkippedVolumeCap, errVolumeCapReached)
		}
	}

	d := Delivery{
		ReleaseID: rel.ID,
		Alert:     alert,
		Jobs:      jobs,
		Digest:    alerting.BuildDigest(alert.RecipientName, alert.Name, jobs, r.loc),
		Contact:   contact,
		Forced:    rel.Forced,
	}
	if err := r.senders[ch].Send(ctx, d); err != nil {
		r.logger.Printf("scheduler: send failed alert id=%d channel=%s jobs=%d: %v", alert.ID, ch, len(jobs), err)
		return r.finish(ctx, rel, ch, jobs, models.SendStatusFailed, err)
	}
	return r.finish(ctx, rel, ch, jobs, models.SendStatusSent, nil)
}

// finish writes one record per job and reports the outcome
func (r *ChannelRouter) finish(ctx context.Context, rel *alerting.Release, ch models.NotificationChannel, jobs []*models.Job, status models.SendStatus, sendErr error) ChannelOutcome {
	now := r.clock()
	var errText *string
	if sendErr != nil {
		errText = utils.ToPtr(sendErr.Error())
	}

	records := make([]*models.ChannelSendRecord, 0, len(jobs))
	for _, j := range jobs {
		matchedAt := now
		if ev, ok := rel.Events[j.ID]; ok {
			matchedAt = ev.MatchedAt
		}
		records = append(records, &models.ChannelSendRecord{
			ReleaseID:   rel.ID,
			AlertID:     rel.Alert.ID,
			JobID:       j.ID,
			Channel:     ch,
			OwnerID:     rel.Alert.OwnerID,
			Status:      status,
			Forced:      rel.Forced,
			Error:       errText,
			MatchedAt:   matchedAt,
			AttemptedAt: now,
		})
	}
	if err := r.records.SaveBatch(ctx, records); err != nil {
		r.logger.Printf("scheduler: save send records failed alert id=%d channel=%s: %v", rel.Alert.ID, ch, err)
	}

	dispatchTotal.WithLabelValues(string(ch), string(status)).Add(float64(len(jobs)))
	if status == models.SendStatusSent {
		r.logger.Printf("scheduler: sent alert id=%d channel=%s jobs=%d release=%s", rel.Alert.ID, ch, len(jobs), rel.ID)
	}
	return ChannelOutcome{Channel: ch, Status: status, Jobs: len(jobs), Err: sendErr}
}
