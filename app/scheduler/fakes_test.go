package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return mr, client
}

type fakeJobs struct {
	mu   sync.Mutex
	rows map[uint]*models.Job
	next uint
}

func newFakeJobs(jobs ...*models.Job) *fakeJobs {
	f := &fakeJobs{rows: make(map[uint]*models.Job)}
	for _, j := range jobs {
		_ = f.Save(context.Background(), j)
	}
	return f
}

func (f *fakeJobs) ByID(_ context.Context, id uint) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id], nil
}

func (f *fakeJobs) ByFilter(_ context.Context, _ models.JobFilter, _ string, _, _ int) ([]*models.Job, error) {
	return f.all(), nil
}

func (f *fakeJobs) Save(_ context.Context, j *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j.ID == 0 {
		f.next++
		j.ID = f.next
	} else if j.ID > f.next {
		f.next = j.ID
	}
	f.rows[j.ID] = j
	return nil
}

func (f *fakeJobs) SaveBatch(ctx context.Context, js []*models.Job) error {
	for _, j := range js {
		_ = f.Save(ctx, j)
	}
	return nil
}

func (f *fakeJobs) Count(context.Context, models.JobFilter) (int64, error) {
	return int64(len(f.all())), nil
}

func (f *fakeJobs) Exists(context.Context, models.JobFilter) (bool, error) {
	return len(f.all()) > 0, nil
}

func (f *fakeJobs) ByUUID(context.Context, string) (*models.Job, error) { return nil, errNotFound }

func (f *fakeJobs) ByIDs(_ context.Context, ids []uint) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, id := range ids {
		if j, ok := f.rows[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) ListPostedSince(_ context.Context, since time.Time) ([]*models.Job, error) {
	var out []*models.Job
	for _, j := range f.all() {
		if !j.PostedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) CountPendingScan(context.Context) (int64, error) { return 0, nil }

func (f *fakeJobs) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeJobs) all() []*models.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Job, 0, len(f.rows))
	for _, j := range f.rows {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// fakeAlerts hands out copies so callers never share state with the store
type fakeAlerts struct {
	mu   sync.Mutex
	rows map[uint]models.AlertPreference
	next uint
}

func newFakeAlerts(alerts ...*models.AlertPreference) *fakeAlerts {
	f := &fakeAlerts{rows: make(map[uint]models.AlertPreference)}
	for _, a := range alerts {
		_ = f.Save(context.Background(), a)
	}
	return f
}

func (f *fakeAlerts) get(id uint) (*models.AlertPreference, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, false
	}
	return &a, true
}

func (f *fakeAlerts) ByID(_ context.Context, id uint) (*models.AlertPreference, error) {
	a, _ := f.get(id)
	return a, nil
}

func (f *fakeAlerts) ByFilter(context.Context, models.AlertPreferenceFilter, string, int, int) ([]*models.AlertPreference, error) {
	return f.list(func(*models.AlertPreference) bool { return true }), nil
}

func (f *fakeAlerts) Save(_ context.Context, a *models.AlertPreference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == 0 {
		f.next++
		a.ID = f.next
	}
	if a.IsActive == nil {
		active := true
		a.IsActive = &active
	}
	f.rows[a.ID] = *a
	return nil
}

func (f *fakeAlerts) SaveBatch(ctx context.Context, as []*models.AlertPreference) error {
	for _, a := range as {
		_ = f.Save(ctx, a)
	}
	return nil
}

func (f *fakeAlerts) Count(context.Context, models.AlertPreferenceFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeAlerts) Exists(ctx context.Context, flt models.AlertPreferenceFilter) (bool, error) {
	n, _ := f.Count(ctx, flt)
	return n > 0, nil
}

func (f *fakeAlerts) ByUUID(context.Context, string) (*models.AlertPreference, error) {
	return nil, errNotFound
}

func (f *fakeAlerts) ByIDs(_ context.Context, ids []uint) ([]*models.AlertPreference, error) {
	var out []*models.AlertPreference
	for _, id := range ids {
		if a, ok := f.get(id); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlerts) ListActive(context.Context) ([]*models.AlertPreference, error) {
	return f.list(func(a *models.AlertPreference) bool { return a.Active() }), nil
}

func (f *fakeAlerts) ListByOwner(_ context.Context, ownerID uint, _, _ int) ([]*models.AlertPreference, error) {
	return f.list(func(a *models.AlertPreference) bool { return a.OwnerID == ownerID }), nil
}

func (f *fakeAlerts) ListActiveByContactPhone(_ context.Context, phone string) ([]*models.AlertPreference, error) {
	return f.list(func(a *models.AlertPreference) bool {
		return a.Active() && a.ContactPhone != nil && *a.ContactPhone == phone
	}), nil
}

func (f *fakeAlerts) Update(ctx context.Context, a *models.AlertPreference) error {
	return f.Save(ctx, a)
}

func (f *fakeAlerts) SetActive(_ context.Context, id uint, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return errNotFound
	}
	a.IsActive = &active
	f.rows[id] = a
	return nil
}

func (f *fakeAlerts) AdvanceLastCheckedAt(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return errNotFound
	}
	if a.LastCheckedAt == nil || a.LastCheckedAt.Before(at) {
		a.LastCheckedAt = &at
		f.rows[id] = a
	}
	return nil
}

func (f *fakeAlerts) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeAlerts) list(keep func(*models.AlertPreference) bool) []*models.AlertPreference {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AlertPreference
	for _, a := range f.rows {
		a := a
		if keep(&a) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// fakeRecords drops a second sent row for the same triple like the partial unique index
type fakeRecords struct {
	mu   sync.Mutex
	rows []models.ChannelSendRecord
}

func (f *fakeRecords) ByID(context.Context, uint) (*models.ChannelSendRecord, error) { return nil, nil }

func (f *fakeRecords) ByFilter(context.Context, models.ChannelSendRecordFilter, string, int, int) ([]*models.ChannelSendRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ChannelSendRecord, 0, len(f.rows))
	for i := range f.rows {
		r := f.rows[i]
		out = append(out, &r)
	}
	return out, nil
}

func (f *fakeRecords) Save(ctx context.Context, r *models.ChannelSendRecord) error {
	return f.SaveBatch(ctx, []*models.ChannelSendRecord{r})
}

func (f *fakeRecords) SaveBatch(_ context.Context, rs []*models.ChannelSendRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rs {
		if r.Status == models.SendStatusSent && f.sentLocked(r.AlertID, r.JobID, r.Channel) {
			continue
		}
		r.ID = uint(len(f.rows) + 1)
		f.rows = append(f.rows, *r)
	}
	return nil
}

func (f *fakeRecords) Count(context.Context, models.ChannelSendRecordFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeRecords) Exists(ctx context.Context, flt models.ChannelSendRecordFilter) (bool, error) {
	n, _ := f.Count(ctx, flt)
	return n > 0, nil
}

func (f *fakeRecords) SentJobIDs(_ context.Context, alertID uint, ch models.NotificationChannel, jobIDs []uint) (map[uint]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint]bool)
	for _, id := range jobIDs {
		if f.sentLocked(alertID, id, ch) {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeRecords) CountByStatusSince(_ context.Context, status models.SendStatus, since *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.Status == status && (since == nil || !r.AttemptedAt.Before(*since)) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRecords) CountByChannelStatusSince(_ context.Context, since time.Time) (map[models.NotificationChannel]map[models.SendStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[models.NotificationChannel]map[models.SendStatus]int64)
	for _, r := range f.rows {
		if r.AttemptedAt.Before(since) {
			continue
		}
		if out[r.Channel] == nil {
			out[r.Channel] = make(map[models.SendStatus]int64)
		}
		out[r.Channel][r.Status]++
	}
	return out, nil
}

func (f *fakeRecords) sentLocked(alertID, jobID uint, ch models.NotificationChannel) bool {
	for _, r := range f.rows {
		if r.AlertID == alertID && r.JobID == jobID && r.Channel == ch && r.Status == models.SendStatusSent {
			return true
		}
	}
	return false
}

func (f *fakeRecords) with(status models.SendStatus, ch models.NotificationChannel) []models.ChannelSendRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChannelSendRecord
	for _, r := range f.rows {
		if r.Status == status && (ch == "" || r.Channel == ch) {
			out = append(out, r)
		}
	}
	return out
}

// fakeSender records deliveries and optionally fails
type fakeSender struct {
	ch    models.NotificationChannel
	err   error
	delay time.Duration

	mu         sync.Mutex
	deliveries []Delivery
}

func (s *fakeSender) Channel() models.NotificationChannel { return s.ch }

func (s *fakeSender) Send(_ context.Context, d Delivery) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, d)
	return s.err
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

func (s *fakeSender) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.deliveries {
		n += len(d.Jobs)
	}
	return n
}

type panicSender struct{ ch models.NotificationChannel }

func (s panicSender) Channel() models.NotificationChannel { return s.ch }

func (s panicSender) Send(context.Context, Delivery) error { panic("boom") }
