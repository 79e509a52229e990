package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/app/services"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/amirphl/jobboard-alerts/utils"
)

// IVRFlow answers the phone provider's callbacks during an alert call
type IVRFlow interface {
	HandleWebhook(ctx context.Context, req *dto.IVRWebhookRequest) (*dto.IVRWebhookResponse, error)
}

// Menu keys
const (
	ivrKeyNext   = "1"
	ivrKeyRepeat = "2"
	ivrKeyStop   = "9"

	ivrMenuSize = 5
)

const (
	ivrMenuPrompt = "להאזנה למשרה הבאה הקישו 1, לשמיעה חוזרת הקישו 2, להפסקת התראות טלפוניות הקישו 9."
	ivrNoJobs     = "אין משרות חדשות עבורך כרגע. להתראות."
	ivrNoMoreJobs = "אין משרות נוספות. להתראות."
	ivrInvalidKey = "בחירה לא חוקית."
	ivrStopped    = "ההתראות הטלפוניות הופסקו. להתראות."
)

// ivrState is the session document of one call
type ivrState struct {
	Phone    string    `json:"phone"`
	AlertIDs []uint    `json:"alert_ids"`
	JobIDs   []uint    `json:"job_ids"`
	Cursor   int       `json:"cursor"`
	Started  time.Time `json:"started"`
}

type IVRFlowImpl struct {
	sessions   services.CallSessionStore
	alertRepo  repository.AlertPreferenceRepository
	recordRepo repository.ChannelSendRecordRepository
	jobRepo    repository.JobRepository
	pending    PendingDiscarder
	timeout    time.Duration
	clock      func() time.Time
}

func NewIVRFlow(
	sessions services.CallSessionStore,
	alertRepo repository.AlertPreferenceRepository,
	recordRepo repository.ChannelSendRecordRepository,
	jobRepo repository.JobRepository,
	pending PendingDiscarder,
	timeout time.Duration,
) IVRFlow {
	return &IVRFlowImpl{
		sessions:   sessions,
		alertRepo:  alertRepo,
		recordRepo: recordRepo,
		jobRepo:    jobRepo,
		pending:    pending,
		timeout:    timeout,
		clock:      utils.UTCNow,
	}
}

func (f *IVRFlowImpl) HandleWebhook(ctx context.Context, req *dto.IVRWebhookRequest) (*dto.IVRWebhookResponse, error) {
	resp := &dto.IVRWebhookResponse{CallID: req.CallID}

	if req.Event == dto.IVREventHangup {
		if err := f.sessions.Delete(ctx, req.CallID); err != nil {
			return nil, NewBusinessError("CALL_SESSION_FAILED", "Failed to delete call session", err)
		}
		resp.Action = dto.IVRActionHangup
		return resp, nil
	}

	state, err := f.loadState(ctx, req)
	if err != nil {
		return nil, err
	}
	if state == nil {
		if state, err = f.startState(ctx, req.Phone); err != nil {
			return nil, err
		}
		if len(state.JobIDs) == 0 {
			return f.finish(ctx, resp, ivrNoJobs)
		}
		resp.Action = dto.IVRActionGather
		resp.Text = fmt.Sprintf("שלום. יש לך %d משרות חדשות. %s", len(state.JobIDs), ivrMenuPrompt)
		return resp, f.saveState(ctx, req.CallID, state)
	}

	switch strings.TrimSpace(req.Digits) {
	case ivrKeyNext:
		if state.Cursor >= len(state.JobIDs) {
			return f.finish(ctx, resp, ivrNoMoreJobs)
		}
		state.Cursor++
		text, err := f.describeJob(ctx, state.JobIDs[state.Cursor-1])
		if err != nil {
			return nil, err
		}
		resp.Text = text + " " + ivrMenuPrompt
	case ivrKeyRepeat:
		if state.Cursor == 0 {
			resp.Text = ivrMenuPrompt
			break
		}
		text, err := f.describeJob(ctx, state.JobIDs[state.Cursor-1])
		if err != nil {
			return nil, err
		}
		resp.Text = text + " " + ivrMenuPrompt
	case ivrKeyStop:
		f.stopPhoneAlerts(ctx, state.AlertIDs)
		return f.finish(ctx, resp, ivrStopped)
	default:
		resp.Text = ivrInvalidKey + " " + ivrMenuPrompt
	}

	resp.Action = dto.IVRActionGather
	return resp, f.saveState(ctx, req.CallID, state)
}

// loadState returns nil when the call must start over: no session, a stale
// one, or an explicit start event
func (f *IVRFlowImpl) loadState(ctx context.Context, req *dto.IVRWebhookRequest) (*ivrState, error) {
	if req.Event == dto.IVREventStart {
		return nil, nil
	}
	sess, err := f.sessions.Get(ctx, req.CallID)
	if err != nil {
		return nil, NewBusinessError("CALL_SESSION_FAILED", "Failed to load call session", err)
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Stale(f.clock(), f.timeout) {
		log.Printf("ivr: call id=%s session stale since %s, restarting", req.CallID, sess.UpdatedAt.Format(time.RFC3339))
		return nil, nil
	}
	var state ivrState
	if err := json.Unmarshal(sess.Payload, &state); err != nil {
		log.Printf("ivr: call id=%s session unreadable, restarting: %v", req.CallID, err)
		return nil, nil
	}
	return &state, nil
}

// startState collects the latest jobs delivered by phone to the caller's alerts
func (f *IVRFlowImpl) startState(ctx context.Context, phone string) (*ivrState, error) {
	state := &ivrState{Phone: phone, Started: f.clock()}

	seenAlert := map[uint]bool{}
	for _, p := range phoneVariants(phone) {
		alerts, err := f.alertRepo.ListActiveByContactPhone(ctx, p)
		if err != nil {
			return nil, NewBusinessError("ALERT_FETCH_FAILED", "Failed to fetch caller alerts", err)
		}
		for _, a := range alerts {
			if a.NotifyPhone && !seenAlert[a.ID] {
				seenAlert[a.ID] = true
				state.AlertIDs = append(state.AlertIDs, a.ID)
			}
		}
	}

	var recent []*models.ChannelSendRecord
	for _, alertID := range state.AlertIDs {
		rows, err := f.recordRepo.ByFilter(ctx, models.ChannelSendRecordFilter{
			AlertID: utils.ToPtr(alertID),
			Channel: utils.ToPtr(models.ChannelPhone),
			Status:  utils.ToPtr(models.SendStatusSent),
		}, "attempted_at DESC, id DESC", ivrMenuSize, 0)
		if err != nil {
			return nil, NewBusinessError("FETCH_SEND_RECORDS_FAILED", "Failed to fetch phone deliveries", err)
		}
		recent = append(recent, rows...)
	}
	sortRecordsNewestFirst(recent)

	ids := make([]uint, 0, ivrMenuSize)
	seenJob := map[uint]bool{}
	for _, r := range recent {
		if seenJob[r.JobID] {
			continue
		}
		seenJob[r.JobID] = true
		ids = append(ids, r.JobID)
	}
	if len(ids) == 0 {
		return state, nil
	}

	// Deleted jobs drop out of the menu
	jobs, err := f.jobRepo.ByIDs(ctx, ids)
	if err != nil {
		return nil, NewBusinessError("JOB_FETCH_FAILED", "Failed to fetch jobs", err)
	}
	exists := make(map[uint]bool, len(jobs))
	for _, j := range jobs {
		exists[j.ID] = true
	}
	for _, id := range ids {
		if exists[id] && len(state.JobIDs) < ivrMenuSize {
			state.JobIDs = append(state.JobIDs, id)
		}
	}
	return state, nil
}

func (f *IVRFlowImpl) describeJob(ctx context.Context, jobID uint) (string, error) {
	job, err := f.jobRepo.ByID(ctx, jobID)
	if err != nil {
		return "", NewBusinessError("JOB_FETCH_FAILED", "Failed to fetch job", err)
	}
	if job == nil {
		return "המשרה הוסרה.", nil
	}
	return fmt.Sprintf("%s ב%s, %s.", job.Title, job.Area, alerting.PaymentLabel(job)), nil
}

// stopPhoneAlerts turns the phone channel off. Alerts left without any
// channel are paused instead.
func (f *IVRFlowImpl) stopPhoneAlerts(ctx context.Context, alertIDs []uint) {
	if len(alertIDs) == 0 {
		return
	}
	alerts, err := f.alertRepo.ByIDs(ctx, alertIDs)
	if err != nil {
		log.Printf("ivr: load alerts for opt-out failed: %v", err)
		return
	}
	for _, a := range alerts {
		if a.NotifySite || a.NotifyEmail || a.NotifyMessaging {
			a.NotifyPhone = false
			if err := f.alertRepo.Update(ctx, a); err != nil {
				log.Printf("ivr: disable phone channel alert id=%d failed: %v", a.ID, err)
			}
			continue
		}
		if err := f.alertRepo.SetActive(ctx, a.ID, false); err != nil {
			log.Printf("ivr: pause alert id=%d failed: %v", a.ID, err)
			continue
		}
		if f.pending != nil {
			if err := f.pending.DiscardAlert(ctx, a.ID); err != nil {
				log.Printf("ivr: discard pending matches alert id=%d failed: %v", a.ID, err)
			}
		}
	}
}

func (f *IVRFlowImpl) finish(ctx context.Context, resp *dto.IVRWebhookResponse, text string) (*dto.IVRWebhookResponse, error) {
	if err := f.sessions.Delete(ctx, resp.CallID); err != nil {
		return nil, NewBusinessError("CALL_SESSION_FAILED", "Failed to delete call session", err)
	}
	resp.Action = dto.IVRActionHangup
	resp.Text = text
	return resp, nil
}

func (f *IVRFlowImpl) saveState(ctx context.Context, callID string, state *ivrState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return NewBusinessError("CALL_SESSION_FAILED", "Failed to encode call session", err)
	}
	if err := f.sessions.Set(ctx, callID, payload); err != nil {
		return NewBusinessError("CALL_SESSION_FAILED", "Failed to store call session", err)
	}
	return nil
}

func sortRecordsNewestFirst(rows []*models.ChannelSendRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].AttemptedAt.Equal(rows[j].AttemptedAt) {
			return rows[i].AttemptedAt.After(rows[j].AttemptedAt)
		}
		return rows[i].ID > rows[j].ID
	})
}

// phoneVariants returns the caller number in local and international form
func phoneVariants(phone string) []string {
	raw := strings.TrimSpace(phone)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	out := []string{raw}
	add := func(v string) {
		for _, o := range out {
			if o == v {
				return
			}
		}
		out = append(out, v)
	}
	switch {
	case strings.HasPrefix(digits, "972"):
		add("0" + digits[3:])
		add("+" + digits)
		add(digits)
	case strings.HasPrefix(digits, "0"):
		add(digits)
		add("972" + digits[1:])
		add("+972" + digits[1:])
	}
	return out
}
