// Package alerting holds the pure parts of the job alert engine: the match
// predicate, delivery gates, digest windows and digest payloads.
package alerting

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/google/uuid"
)

var (
	ErrMalformedDimension = errors.New("malformed alert dimension")
	ErrInvalidClock       = errors.New("invalid HH:MM value")
	ErrVolumeContention   = errors.New("volume counter contention")
)

// MatchEvent records that a job satisfied an alert
type MatchEvent struct {
	AlertID   uint      `json:"alert_id"`
	JobID     uint      `json:"job_id"`
	MatchedAt time.Time `json:"matched_at"`
}

// Release is a batch of matches handed to the channel fan-out at once.
// Jobs are ordered by PostedAt ascending.
type Release struct {
	ID     uuid.UUID
	Alert  *models.AlertPreference
	Jobs   []*models.Job
	Events map[uint]MatchEvent
	Forced bool
}

// NewRelease orders jobs and attaches their match events. Jobs without a
// known match time are stamped with at.
func NewRelease(alert *models.AlertPreference, jobs []*models.Job, matchedAt map[uint]time.Time, at time.Time, forced bool) *Release {
	ordered := make([]*models.Job, 0, len(jobs))
	for _, j := range jobs {
		if j != nil {
			ordered = append(ordered, j)
		}
	}
	SortJobsByPostedAt(ordered)

	events := make(map[uint]MatchEvent, len(ordered))
	for _, j := range ordered {
		ts, ok := matchedAt[j.ID]
		if !ok || ts.IsZero() {
			ts = at
		}
		events[j.ID] = MatchEvent{AlertID: alert.ID, JobID: j.ID, MatchedAt: ts}
	}

	return &Release{
		ID:     uuid.New(),
		Alert:  alert,
		Jobs:   ordered,
		Events: events,
		Forced: forced,
	}
}

// SortJobsByPostedAt sorts oldest first; ties fall back to id
func SortJobsByPostedAt(jobs []*models.Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		if jobs[i].PostedAt.Equal(jobs[k].PostedAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].PostedAt.Before(jobs[k].PostedAt)
	})
}

// EnabledChannels returns the channels the alert opted into, in fan-out order
func EnabledChannels(alert *models.AlertPreference) []models.NotificationChannel {
	if alert == nil {
		return nil
	}
	out := make([]models.NotificationChannel, 0, len(models.AllChannels))
	for _, ch := range models.AllChannels {
		if channelEnabled(alert, ch) {
			out = append(out, ch)
		}
	}
	return out
}

func channelEnabled(alert *models.AlertPreference, ch models.NotificationChannel) bool {
	switch ch {
	case models.ChannelSite:
		return alert.NotifySite
	case models.ChannelEmail:
		return alert.NotifyEmail
	case models.ChannelMessaging:
		return alert.NotifyMessaging
	case models.ChannelPhone:
		return alert.NotifyPhone
	default:
		return false
	}
}

// IsDeliverable reports whether an alert is active and has somewhere to deliver to
func IsDeliverable(alert *models.AlertPreference) bool {
	return alert.Active() && len(EnabledChannels(alert)) > 0
}

// ContactFor returns the per-channel contact target of the alert, "" when unset.
// The site channel always targets the owner.
func ContactFor(alert *models.AlertPreference, ch models.NotificationChannel) string {
	var v *string
	switch ch {
	case models.ChannelEmail:
		v = alert.ContactEmail
	case models.ChannelMessaging:
		v = alert.MessagingPhone
	case models.ChannelPhone:
		v = alert.ContactPhone
	default:
		return ""
	}
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
