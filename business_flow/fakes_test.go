package businessflow

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/jobboard-alerts/app/scheduler"
	"github.com/amirphl/jobboard-alerts/app/services"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/google/uuid"
)

type alertStore struct {
	mu   sync.Mutex
	rows map[uint]models.AlertPreference
	next uint
}

func newAlertStore(alerts ...*models.AlertPreference) *alertStore {
	s := &alertStore{rows: make(map[uint]models.AlertPreference)}
	for _, a := range alerts {
		_ = s.Save(context.Background(), a)
	}
	return s
}

func (s *alertStore) get(id uint) *models.AlertPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return nil
	}
	return &a
}

func (s *alertStore) list(keep func(*models.AlertPreference) bool) []*models.AlertPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AlertPreference
	for _, a := range s.rows {
		a := a
		if keep(&a) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *alertStore) ByID(_ context.Context, id uint) (*models.AlertPreference, error) {
	return s.get(id), nil
}

func (s *alertStore) ByFilter(context.Context, models.AlertPreferenceFilter, string, int, int) ([]*models.AlertPreference, error) {
	return s.list(func(*models.AlertPreference) bool { return true }), nil
}

func (s *alertStore) Save(_ context.Context, a *models.AlertPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.next++
		a.ID = s.next
	}
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.IsActive == nil {
		active := true
		a.IsActive = &active
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
		a.UpdatedAt = a.CreatedAt
	}
	s.rows[a.ID] = *a
	return nil
}

func (s *alertStore) SaveBatch(ctx context.Context, as []*models.AlertPreference) error {
	for _, a := range as {
		_ = s.Save(ctx, a)
	}
	return nil
}

func (s *alertStore) Count(context.Context, models.AlertPreferenceFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

func (s *alertStore) Exists(ctx context.Context, f models.AlertPreferenceFilter) (bool, error) {
	n, _ := s.Count(ctx, f)
	return n > 0, nil
}

func (s *alertStore) ByUUID(_ context.Context, id string) (*models.AlertPreference, error) {
	rows := s.list(func(a *models.AlertPreference) bool { return a.UUID.String() == id })
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *alertStore) ByIDs(_ context.Context, ids []uint) ([]*models.AlertPreference, error) {
	var out []*models.AlertPreference
	for _, id := range ids {
		if a := s.get(id); a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *alertStore) ListActive(context.Context) ([]*models.AlertPreference, error) {
	return s.list(func(a *models.AlertPreference) bool { return a.Active() }), nil
}

func (s *alertStore) ListByOwner(_ context.Context, ownerID uint, limit, offset int) ([]*models.AlertPreference, error) {
	rows := s.list(func(a *models.AlertPreference) bool { return a.OwnerID == ownerID })
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *alertStore) ListActiveByContactPhone(_ context.Context, phone string) ([]*models.AlertPreference, error) {
	return s.list(func(a *models.AlertPreference) bool {
		return a.Active() && a.ContactPhone != nil && *a.ContactPhone == phone
	}), nil
}

func (s *alertStore) Update(_ context.Context, a *models.AlertPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.rows[a.ID]
	if !ok {
		return nil
	}
	a.LastCheckedAt = prev.LastCheckedAt
	a.UpdatedAt = time.Now().UTC()
	s.rows[a.ID] = *a
	return nil
}

func (s *alertStore) SetActive(_ context.Context, id uint, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.rows[id]; ok {
		a.IsActive = &active
		s.rows[id] = a
	}
	return nil
}

func (s *alertStore) AdvanceLastCheckedAt(_ context.Context, id uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.rows[id]; ok && (a.LastCheckedAt == nil || at.After(*a.LastCheckedAt)) {
		a.LastCheckedAt = &at
		s.rows[id] = a
	}
	return nil
}

func (s *alertStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

type jobStore struct {
	mu   sync.Mutex
	rows map[uint]*models.Job
	next uint

	alerts *alertStore
}

func newJobStore(jobs ...*models.Job) *jobStore {
	s := &jobStore{rows: make(map[uint]*models.Job)}
	for _, j := range jobs {
		_ = s.Save(context.Background(), j)
	}
	return s
}

func (s *jobStore) ByID(_ context.Context, id uint) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id], nil
}

func (s *jobStore) ByFilter(context.Context, models.JobFilter, string, int, int) ([]*models.Job, error) {
	return nil, nil
}

func (s *jobStore) Save(_ context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == 0 {
		s.next++
		j.ID = s.next
	} else if j.ID > s.next {
		s.next = j.ID
	}
	if j.UUID == uuid.Nil {
		j.UUID = uuid.New()
	}
	s.rows[j.ID] = j
	return nil
}

func (s *jobStore) SaveBatch(ctx context.Context, js []*models.Job) error {
	for _, j := range js {
		_ = s.Save(ctx, j)
	}
	return nil
}

func (s *jobStore) Count(context.Context, models.JobFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

func (s *jobStore) Exists(ctx context.Context, f models.JobFilter) (bool, error) {
	n, _ := s.Count(ctx, f)
	return n > 0, nil
}

func (s *jobStore) ByUUID(context.Context, string) (*models.Job, error) { return nil, nil }

func (s *jobStore) ByIDs(_ context.Context, ids []uint) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, id := range ids {
		if j, ok := s.rows[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *jobStore) ListPostedSince(context.Context, time.Time) ([]*models.Job, error) {
	return nil, nil
}

// CountPendingScan needs alerts to be set
func (s *jobStore) CountPendingScan(context.Context) (int64, error) {
	if s.alerts == nil {
		return 0, nil
	}
	active := s.alerts.list(func(a *models.AlertPreference) bool { return a.Active() })
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.rows {
		for _, a := range active {
			if a.LastCheckedAt == nil || a.LastCheckedAt.Before(j.PostedAt) {
				n++
				break
			}
		}
	}
	return n, nil
}

func (s *jobStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

type recordStore struct {
	mu   sync.Mutex
	rows []*models.ChannelSendRecord
}

func (s *recordStore) match(r *models.ChannelSendRecord, f models.ChannelSendRecordFilter) bool {
	switch {
	case f.AlertID != nil && r.AlertID != *f.AlertID,
		f.JobID != nil && r.JobID != *f.JobID,
		f.Channel != nil && r.Channel != *f.Channel,
		f.Status != nil && r.Status != *f.Status,
		f.AttemptedAfter != nil && r.AttemptedAt.Before(*f.AttemptedAfter),
		f.AttemptedBefore != nil && !r.AttemptedAt.Before(*f.AttemptedBefore):
		return false
	}
	return true
}

func (s *recordStore) ByID(context.Context, uint) (*models.ChannelSendRecord, error) { return nil, nil }

// ByFilter orders by attempt time, newest first when orderBy asks for DESC
func (s *recordStore) ByFilter(_ context.Context, f models.ChannelSendRecordFilter, orderBy string, limit, _ int) ([]*models.ChannelSendRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ChannelSendRecord
	for _, r := range s.rows {
		if s.match(r, f) {
			out = append(out, r)
		}
	}
	desc := strings.Contains(orderBy, "DESC")
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].AttemptedAt.After(out[j].AttemptedAt)
		}
		return out[i].AttemptedAt.Before(out[j].AttemptedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *recordStore) Save(_ context.Context, r *models.ChannelSendRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uint(len(s.rows) + 1)
	s.rows = append(s.rows, r)
	return nil
}

func (s *recordStore) SaveBatch(ctx context.Context, rs []*models.ChannelSendRecord) error {
	for _, r := range rs {
		_ = s.Save(ctx, r)
	}
	return nil
}

func (s *recordStore) Count(ctx context.Context, f models.ChannelSendRecordFilter) (int64, error) {
	rows, _ := s.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (s *recordStore) Exists(ctx context.Context, f models.ChannelSendRecordFilter) (bool, error) {
	n, _ := s.Count(ctx, f)
	return n > 0, nil
}

func (s *recordStore) SentJobIDs(context.Context, uint, models.NotificationChannel, []uint) (map[uint]bool, error) {
	return map[uint]bool{}, nil
}

func (s *recordStore) CountByStatusSince(ctx context.Context, status models.SendStatus, since *time.Time) (int64, error) {
	return s.Count(ctx, models.ChannelSendRecordFilter{Status: &status, AttemptedAfter: since})
}

func (s *recordStore) CountByChannelStatusSince(_ context.Context, since time.Time) (map[models.NotificationChannel]map[models.SendStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[models.NotificationChannel]map[models.SendStatus]int64{}
	for _, r := range s.rows {
		if r.AttemptedAt.Before(since) {
			continue
		}
		if out[r.Channel] == nil {
			out[r.Channel] = map[models.SendStatus]int64{}
		}
		out[r.Channel][r.Status]++
	}
	return out, nil
}

type notificationStore struct {
	mu   sync.Mutex
	rows []*models.SiteNotification
}

func (s *notificationStore) visible(n *models.SiteNotification, f models.SiteNotificationFilter) bool {
	switch {
	case f.ID != nil && n.ID != *f.ID,
		f.UserID != nil && n.UserID != *f.UserID,
		f.UnreadOnly && n.ReadAt != nil:
		return false
	}
	return true
}

func (s *notificationStore) ByID(context.Context, uint) (*models.SiteNotification, error) {
	return nil, nil
}

func (s *notificationStore) ByFilter(_ context.Context, f models.SiteNotificationFilter, _ string, limit, offset int) ([]*models.SiteNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SiteNotification
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.visible(s.rows[i], f) {
			out = append(out, s.rows[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *notificationStore) Save(_ context.Context, n *models.SiteNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uint(len(s.rows) + 1)
	if n.UUID == uuid.Nil {
		n.UUID = uuid.New()
	}
	s.rows = append(s.rows, n)
	return nil
}

func (s *notificationStore) SaveBatch(ctx context.Context, ns []*models.SiteNotification) error {
	for _, n := range ns {
		_ = s.Save(ctx, n)
	}
	return nil
}

func (s *notificationStore) Count(ctx context.Context, f models.SiteNotificationFilter) (int64, error) {
	rows, _ := s.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (s *notificationStore) Exists(ctx context.Context, f models.SiteNotificationFilter) (bool, error) {
	n, _ := s.Count(ctx, f)
	return n > 0, nil
}

func (s *notificationStore) ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]*models.SiteNotification, error) {
	return s.ByFilter(ctx, models.SiteNotificationFilter{UserID: &userID, UnreadOnly: unreadOnly}, "", limit, offset)
}

func (s *notificationStore) MarkRead(_ context.Context, userID, id uint, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.rows {
		if n.ID == id && n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			return true, nil
		}
	}
	return false, nil
}

type settingsStore struct {
	row     *models.AlertSettings
	saves   int
	updates int
}

func (s *settingsStore) Current(context.Context) (*models.AlertSettings, error) {
	if s.row == nil {
		return nil, nil
	}
	cp := *s.row
	return &cp, nil
}

func (s *settingsStore) Save(_ context.Context, row *models.AlertSettings) error {
	s.saves++
	row.ID = 1
	cp := *row
	s.row = &cp
	return nil
}

func (s *settingsStore) Update(_ context.Context, row *models.AlertSettings) error {
	s.updates++
	cp := *row
	s.row = &cp
	return nil
}

// storeSettings reads the settings row the way the scheduler does
type storeSettings struct {
	store    *settingsStore
	defaults models.AlertSettings
}

func (s storeSettings) Current(context.Context) models.AlertSettings {
	if s.store.row == nil {
		return s.defaults
	}
	return *s.store.row
}

type scanRecorder struct {
	mu     sync.Mutex
	alerts []uint
	jobs   []uint
	result scheduler.ScanResult
	err    error
}

func (r *scanRecorder) ScanAlert(_ context.Context, a *models.AlertPreference) (scheduler.ScanResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a.ID)
	return r.result, r.err
}

func (r *scanRecorder) ScanJob(_ context.Context, j *models.Job) (scheduler.ScanResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, j.ID)
	return r.result, r.err
}

type discardRecorder struct {
	mu  sync.Mutex
	ids []uint
}

func (d *discardRecorder) DiscardAlert(_ context.Context, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	return nil
}

type dispatchStub struct {
	pending int64
	report  scheduler.ForceReport
	err     error
	forced  int
}

func (d *dispatchStub) ForceDispatch(context.Context) (scheduler.ForceReport, error) {
	if d.err != nil {
		return scheduler.ForceReport{}, d.err
	}
	d.forced++
	return d.report, nil
}

func (d *dispatchStub) PendingCount(context.Context) (int64, error) { return d.pending, nil }

// memSessions is a CallSessionStore with a settable clock
type memSessions struct {
	mu   sync.Mutex
	now  time.Time
	rows map[string]*services.CallSession
}

func newMemSessions(now time.Time) *memSessions {
	return &memSessions{now: now, rows: make(map[string]*services.CallSession)}
}

func (m *memSessions) Get(_ context.Context, id string) (*services.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Set(_ context.Context, id string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = &services.CallSession{CallID: id, Payload: payload, UpdatedAt: m.now}
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memSessions) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}
