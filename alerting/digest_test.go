package alerting

import (
	"strings"
	"testing"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDigest_OrdersByPostedAt(t *testing.T) {
	base := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	jobs := []*models.Job{
		{ID: 3, Title: "ג", PostedAt: base.Add(3 * time.Minute), PaymentKind: models.PaymentKindHourly, HourlyRate: utils.ToPtr(60.0)},
		{ID: 1, Title: "א", PostedAt: base.Add(1 * time.Minute), PaymentKind: models.PaymentKindGlobal, GlobalAmount: utils.ToPtr(500.0)},
		{ID: 2, Title: "ב", PostedAt: base.Add(2 * time.Minute), PaymentKind: models.PaymentKindHourly},
	}

	p := BuildDigest("דנה", "ערב", jobs, time.UTC)
	require.Len(t, p.Jobs, 3)
	assert.Equal(t, []uint{1, 2, 3}, []uint{p.Jobs[0].ID, p.Jobs[1].ID, p.Jobs[2].ID})
	assert.Equal(t, uint(3), jobs[0].ID, "input must not be reordered")

	assert.Equal(t, "₪500 סה\"כ", p.Jobs[0].PaymentLabel)
	assert.Equal(t, "לפי סיכום", p.Jobs[1].PaymentLabel)
	assert.Equal(t, "₪60 לשעה", p.Jobs[2].PaymentLabel)
	assert.Equal(t, "04/03/2026 08:01", p.Jobs[0].PostedAtLabel)
}

func TestRenderDigest(t *testing.T) {
	p := DigestPayload{
		RecipientName: "דנה",
		AlertName:     "ערב",
		Jobs: []DigestJob{
			{ID: 7, Title: "מלצרות", Location: "חיפה", PaymentLabel: "₪60 לשעה"},
			{ID: 9, Title: "<b>סבלות</b>", Location: "חיפה", PaymentLabel: "₪60 לשעה"},
		},
	}

	html, err := RenderDigestHTML(p)
	require.NoError(t, err)
	assert.Contains(t, html, `dir="rtl"`)
	assert.Less(t, strings.Index(html, `data-job-id="7"`), strings.Index(html, `data-job-id="9"`))
	assert.NotContains(t, html, "<b>סבלות</b>")

	text := RenderDigestText(p)
	assert.Equal(t, 3, len(strings.Split(text, "\n")))
	assert.Contains(t, DigestSubject(p), "2")

	p.Jobs = p.Jobs[:1]
	assert.Contains(t, DigestSubject(p), "מלצרות")
}

func TestNewRelease(t *testing.T) {
	base := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	alert := &models.AlertPreference{ID: 5}
	jobs := []*models.Job{
		{ID: 2, PostedAt: base.Add(time.Hour)},
		nil,
		{ID: 1, PostedAt: base},
	}
	matched := map[uint]time.Time{2: base.Add(2 * time.Hour)}

	r := NewRelease(alert, jobs, matched, base.Add(5*time.Hour), false)
	require.Len(t, r.Jobs, 2)
	assert.Equal(t, uint(1), r.Jobs[0].ID)
	assert.Equal(t, base.Add(2*time.Hour), r.Events[2].MatchedAt)
	assert.Equal(t, base.Add(5*time.Hour), r.Events[1].MatchedAt)
	assert.Equal(t, uint(5), r.Events[1].AlertID)
}

func TestEnabledChannelsAndContacts(t *testing.T) {
	alert := &models.AlertPreference{
		IsActive:       utils.ToPtr(true),
		NotifyEmail:    true,
		NotifyPhone:    true,
		ContactEmail:   utils.ToPtr(" a@b.co "),
		ContactPhone:   utils.ToPtr("0501234567"),
		MessagingPhone: nil,
	}
	assert.Equal(t, []models.NotificationChannel{models.ChannelEmail, models.ChannelPhone}, EnabledChannels(alert))
	assert.True(t, IsDeliverable(alert))
	assert.Equal(t, "a@b.co", ContactFor(alert, models.ChannelEmail))
	assert.Equal(t, "", ContactFor(alert, models.ChannelMessaging))

	alert.IsActive = utils.ToPtr(false)
	assert.False(t, IsDeliverable(alert))
}
