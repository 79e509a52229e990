package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ivrFixture struct {
	flow     *IVRFlowImpl
	sessions *memSessions
	alerts   *alertStore
	jobs     *jobStore
	records  *recordStore
	pending  *discardRecorder
	now      time.Time
}

func newIVRFixture(t *testing.T) *ivrFixture {
	t.Helper()
	now := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	fx := &ivrFixture{
		sessions: newMemSessions(now),
		alerts:   newAlertStore(),
		jobs:     newJobStore(),
		records:  &recordStore{},
		pending:  &discardRecorder{},
		now:      now,
	}
	fx.flow = NewIVRFlow(fx.sessions, fx.alerts, fx.records, fx.jobs, fx.pending, 10*time.Minute).(*IVRFlowImpl)
	fx.flow.clock = func() time.Time { return fx.now }
	return fx
}

func (fx *ivrFixture) phoneAlert(phone string, alsoSite bool) *models.AlertPreference {
	a := &models.AlertPreference{
		OwnerID:      1,
		Name:         "calls",
		Frequency:    models.AlertFrequencyInstant,
		NotifyPhone:  true,
		NotifySite:   alsoSite,
		ContactPhone: utils.ToPtr(phone),
	}
	_ = fx.alerts.Save(context.Background(), a)
	return a
}

func (fx *ivrFixture) delivered(alertID uint, title string, ago time.Duration) *models.Job {
	j := &models.Job{Title: title, Area: "חיפה", PaymentKind: models.PaymentKindHourly, HourlyRate: utils.ToPtr(50.0)}
	_ = fx.jobs.Save(context.Background(), j)
	_ = fx.records.Save(context.Background(), &models.ChannelSendRecord{
		AlertID:     alertID,
		JobID:       j.ID,
		Channel:     models.ChannelPhone,
		Status:      models.SendStatusSent,
		AttemptedAt: fx.now.Add(-ago),
	})
	return j
}

func (fx *ivrFixture) call(t *testing.T, event, digits string) *dto.IVRWebhookResponse {
	t.Helper()
	resp, err := fx.flow.HandleWebhook(context.Background(), &dto.IVRWebhookRequest{
		CallID: "call-1",
		Phone:  "+972501234567",
		Event:  event,
		Digits: digits,
	})
	require.NoError(t, err)
	return resp
}

func TestIVRFlow_MenuReadsLatestPhoneMatches(t *testing.T) {
	fx := newIVRFixture(t)
	a := fx.phoneAlert("0501234567", false)
	fx.delivered(a.ID, "Older", 2*time.Hour)
	fx.delivered(a.ID, "Newer", time.Hour)

	resp := fx.call(t, dto.IVREventStart, "")
	assert.Equal(t, dto.IVRActionGather, resp.Action)
	assert.Contains(t, resp.Text, "2")
	assert.True(t, fx.sessions.has("call-1"))

	resp = fx.call(t, dto.IVREventDigits, "1")
	assert.Contains(t, resp.Text, "Newer")

	resp = fx.call(t, dto.IVREventDigits, "2")
	assert.Contains(t, resp.Text, "Newer")

	resp = fx.call(t, dto.IVREventDigits, "1")
	assert.Contains(t, resp.Text, "Older")

	resp = fx.call(t, dto.IVREventDigits, "1")
	assert.Equal(t, dto.IVRActionHangup, resp.Action)
	assert.Equal(t, ivrNoMoreJobs, resp.Text)
	assert.False(t, fx.sessions.has("call-1"))
}

func TestIVRFlow_DeletedJobsLeaveTheMenu(t *testing.T) {
	fx := newIVRFixture(t)
	a := fx.phoneAlert("0501234567", false)
	gone := fx.delivered(a.ID, "Gone", time.Hour)
	require.NoError(t, fx.jobs.Delete(context.Background(), gone.ID))

	resp := fx.call(t, dto.IVREventStart, "")
	assert.Equal(t, dto.IVRActionHangup, resp.Action)
	assert.Equal(t, ivrNoJobs, resp.Text)
}

func TestIVRFlow_StaleSessionRestarts(t *testing.T) {
	fx := newIVRFixture(t)
	a := fx.phoneAlert("0501234567", false)
	fx.delivered(a.ID, "Only", time.Hour)

	fx.call(t, dto.IVREventStart, "")
	resp := fx.call(t, dto.IVREventDigits, "1")
	assert.Contains(t, resp.Text, "Only")

	// The provider resumes long after the session went quiet
	fx.now = fx.now.Add(30 * time.Minute)
	fx.sessions.now = fx.now
	resp = fx.call(t, dto.IVREventDigits, "1")
	assert.Equal(t, dto.IVRActionGather, resp.Action)
	assert.NotContains(t, resp.Text, "Only")

	resp = fx.call(t, dto.IVREventDigits, "1")
	assert.Contains(t, resp.Text, "Only")
}

func TestIVRFlow_InvalidKeyRepeatsMenu(t *testing.T) {
	fx := newIVRFixture(t)
	a := fx.phoneAlert("0501234567", false)
	fx.delivered(a.ID, "Only", time.Hour)

	fx.call(t, dto.IVREventStart, "")
	resp := fx.call(t, dto.IVREventDigits, "7")
	assert.Equal(t, dto.IVRActionGather, resp.Action)
	assert.Contains(t, resp.Text, ivrInvalidKey)
}

func TestIVRFlow_HangupDeletesSession(t *testing.T) {
	fx := newIVRFixture(t)
	a := fx.phoneAlert("0501234567", false)
	fx.delivered(a.ID, "Only", time.Hour)

	fx.call(t, dto.IVREventStart, "")
	require.True(t, fx.sessions.has("call-1"))

	resp := fx.call(t, dto.IVREventHangup, "")
	assert.Equal(t, dto.IVRActionHangup, resp.Action)
	assert.False(t, fx.sessions.has("call-1"))
}

func TestIVRFlow_StopDisablesPhoneChannel(t *testing.T) {
	fx := newIVRFixture(t)
	mixed := fx.phoneAlert("0501234567", true)
	phoneOnly := fx.phoneAlert("0501234567", false)
	fx.delivered(mixed.ID, "A", time.Hour)
	fx.delivered(phoneOnly.ID, "B", 2*time.Hour)

	fx.call(t, dto.IVREventStart, "")
	resp := fx.call(t, dto.IVREventDigits, "9")
	assert.Equal(t, dto.IVRActionHangup, resp.Action)
	assert.Equal(t, ivrStopped, resp.Text)

	m := fx.alerts.get(mixed.ID)
	assert.False(t, m.NotifyPhone)
	assert.True(t, m.Active())

	p := fx.alerts.get(phoneOnly.ID)
	assert.True(t, p.NotifyPhone)
	assert.False(t, p.Active())
	assert.Equal(t, []uint{phoneOnly.ID}, fx.pending.ids)
}

func TestPhoneVariants(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"+972501234567", "0501234567", "972501234567"},
		phoneVariants("+972501234567"))
	assert.ElementsMatch(t,
		[]string{"050-1234567", "0501234567", "972501234567", "+972501234567"},
		phoneVariants("050-1234567"))
}
