package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/app/scheduler"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAlertRequest(owner uint) *dto.AlertPreferenceRequest {
	return &dto.AlertPreferenceRequest{
		OwnerID:        owner,
		Name:           "Evening jobs",
		Location:       utils.ToPtr("תל אביב"),
		MinHourlyRate:  utils.ToPtr("40"),
		Frequency:      "instant",
		NotifySite:     true,
		NotifyPhone:    true,
		ContactPhone:   utils.ToPtr("0501234567"),
		PaymentMethods: []string{" cash ", ""},
	}
}

func businessCode(t *testing.T, err error) string {
	t.Helper()
	var be *BusinessError
	require.True(t, errors.As(err, &be), "expected BusinessError, got %v", err)
	return be.Code
}

func TestAlertFlow_CreateBackfillsNewAlert(t *testing.T) {
	alerts := newAlertStore()
	scanner := &scanRecorder{result: scheduler.ScanResult{Evaluated: 4, Matched: 2}}
	flow := NewAlertFlow(alerts, scanner, &discardRecorder{})

	resp, err := flow.CreateAlert(context.Background(), validAlertRequest(7))
	require.NoError(t, err)

	assert.True(t, resp.Alert.IsActive)
	assert.Equal(t, []string{"cash"}, resp.Alert.PaymentMethods)
	require.NotNil(t, resp.Scan)
	assert.Equal(t, 2, resp.Scan.Matched)
	assert.Equal(t, []uint{resp.Alert.ID}, scanner.alerts)

	stored := alerts.get(resp.Alert.ID)
	require.NotNil(t, stored)
	assert.Equal(t, uint(7), stored.OwnerID)
}

func TestAlertFlow_CreateSurvivesScanFailure(t *testing.T) {
	scanner := &scanRecorder{err: errors.New("redis down")}
	flow := NewAlertFlow(newAlertStore(), scanner, nil)

	resp, err := flow.CreateAlert(context.Background(), validAlertRequest(7))
	require.NoError(t, err)
	assert.Nil(t, resp.Scan)
}

func TestAlertFlow_CreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*dto.AlertPreferenceRequest)
		target error
	}{
		{"no channel", func(r *dto.AlertPreferenceRequest) { r.NotifySite, r.NotifyPhone = false, false }, ErrAlertNoChannel},
		{"phone without contact", func(r *dto.AlertPreferenceRequest) { r.ContactPhone = utils.ToPtr("  ") }, ErrAlertPhoneRequired},
		{"email without contact", func(r *dto.AlertPreferenceRequest) { r.NotifyEmail = true }, ErrAlertEmailRequired},
		{"messaging without contact", func(r *dto.AlertPreferenceRequest) { r.NotifyMessaging = true }, ErrAlertMessagingRequired},
		{"non numeric bound", func(r *dto.AlertPreferenceRequest) { r.MaxAge = utils.ToPtr("forty") }, ErrAlertInvalidRange},
		{"bad clock", func(r *dto.AlertPreferenceRequest) {
			r.DeliveryHoursStart, r.DeliveryHoursEnd = utils.ToPtr("25:00"), utils.ToPtr("08:00")
		}, ErrAlertInvalidClock},
		{"half window", func(r *dto.AlertPreferenceRequest) { r.DeliveryHoursStart = utils.ToPtr("08:00") }, ErrAlertHoursIncomplete},
		{"reversed dates", func(r *dto.AlertPreferenceRequest) {
			r.SpecificDateStart, r.SpecificDateEnd = utils.ToPtr("2024-05-10"), utils.ToPtr("2024-05-01")
		}, ErrAlertInvalidDates},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alerts := newAlertStore()
			flow := NewAlertFlow(alerts, nil, nil)
			req := validAlertRequest(1)
			tc.mutate(req)

			_, err := flow.CreateAlert(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			assert.Equal(t, "INVALID_ALERT", businessCode(t, err))
			assert.True(t, IsAlertValidation(err))

			n, _ := alerts.Count(context.Background(), models.AlertPreferenceFilter{})
			assert.Zero(t, n)
		})
	}
}

func TestAlertFlow_NotificationDaysAreDeduplicated(t *testing.T) {
	flow := NewAlertFlow(newAlertStore(), nil, nil)
	req := validAlertRequest(1)
	req.NotificationDays = []int{5, 5, 0, 9}

	resp, err := flow.CreateAlert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 0}, resp.Alert.NotificationDays)
}

func TestAlertFlow_OwnershipEnforced(t *testing.T) {
	alerts := newAlertStore()
	flow := NewAlertFlow(alerts, nil, nil)
	created, err := flow.CreateAlert(context.Background(), validAlertRequest(1))
	require.NoError(t, err)

	_, err = flow.GetAlert(context.Background(), 2, created.Alert.UUID)
	assert.True(t, IsAlertAccessDenied(err))
	assert.Equal(t, "FORBIDDEN", businessCode(t, err))

	_, err = flow.GetAlert(context.Background(), 1, "not-a-uuid")
	assert.True(t, IsAlertNotFound(err))

	err = flow.DeleteAlert(context.Background(), 2, created.Alert.UUID)
	assert.True(t, IsAlertAccessDenied(err))
	assert.NotNil(t, alerts.get(created.Alert.ID))
}

func TestAlertFlow_UpdateDiscardsPendingAndRescans(t *testing.T) {
	alerts := newAlertStore()
	scanner := &scanRecorder{}
	pending := &discardRecorder{}
	flow := NewAlertFlow(alerts, scanner, pending)
	created, err := flow.CreateAlert(context.Background(), validAlertRequest(1))
	require.NoError(t, err)

	req := validAlertRequest(1)
	req.Location = nil
	req.Frequency = "daily"
	resp, err := flow.UpdateAlert(context.Background(), created.Alert.UUID, req)
	require.NoError(t, err)

	assert.Nil(t, resp.Alert.Location)
	assert.Equal(t, "daily", resp.Alert.Frequency)
	assert.Equal(t, []uint{created.Alert.ID}, pending.ids)
	assert.Len(t, scanner.alerts, 2)
}

func TestAlertFlow_PauseResume(t *testing.T) {
	alerts := newAlertStore()
	scanner := &scanRecorder{}
	pending := &discardRecorder{}
	flow := NewAlertFlow(alerts, scanner, pending)
	created, err := flow.CreateAlert(context.Background(), validAlertRequest(1))
	require.NoError(t, err)
	id := created.Alert.ID

	paused, err := flow.PauseAlert(context.Background(), 1, created.Alert.UUID)
	require.NoError(t, err)
	assert.False(t, paused.Alert.IsActive)
	assert.False(t, alerts.get(id).Active())
	assert.Equal(t, []uint{id}, pending.ids)

	// Pausing twice is harmless
	_, err = flow.PauseAlert(context.Background(), 1, created.Alert.UUID)
	require.NoError(t, err)

	resumed, err := flow.ResumeAlert(context.Background(), 1, created.Alert.UUID)
	require.NoError(t, err)
	assert.True(t, resumed.Alert.IsActive)
	assert.NotNil(t, resumed.Scan)
	assert.True(t, alerts.get(id).Active())
	assert.Equal(t, []uint{id, id}, scanner.alerts)

	again, err := flow.ResumeAlert(context.Background(), 1, created.Alert.UUID)
	require.NoError(t, err)
	assert.Nil(t, again.Scan)
}

func TestAlertFlow_DeleteDiscards(t *testing.T) {
	alerts := newAlertStore()
	pending := &discardRecorder{}
	flow := NewAlertFlow(alerts, nil, pending)
	created, err := flow.CreateAlert(context.Background(), validAlertRequest(1))
	require.NoError(t, err)

	require.NoError(t, flow.DeleteAlert(context.Background(), 1, created.Alert.UUID))
	assert.Nil(t, alerts.get(created.Alert.ID))
	assert.Equal(t, []uint{created.Alert.ID}, pending.ids)

	_, err = flow.GetAlert(context.Background(), 1, created.Alert.UUID)
	assert.True(t, IsAlertNotFound(err))
}

func TestAlertFlow_ListPages(t *testing.T) {
	flow := NewAlertFlow(newAlertStore(), nil, nil)
	for i := 0; i < 3; i++ {
		_, err := flow.CreateAlert(context.Background(), validAlertRequest(1))
		require.NoError(t, err)
	}
	_, err := flow.CreateAlert(context.Background(), validAlertRequest(2))
	require.NoError(t, err)

	resp, err := flow.ListAlerts(context.Background(), &dto.ListAlertPreferencesRequest{OwnerID: 1, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, uint(2), resp.Page)

	resp, err = flow.ListAlerts(context.Background(), &dto.ListAlertPreferencesRequest{OwnerID: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 3)
	assert.Equal(t, uint(defaultPageSize), resp.PageSize)
}
