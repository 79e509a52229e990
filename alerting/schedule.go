package alerting

import (
	"time"

	"github.com/amirphl/jobboard-alerts/models"
)

// BucketState is the lifecycle of a digest bucket
type BucketState string

const (
	BucketAccumulating BucketState = "accumulating"
	BucketReady        BucketState = "ready"
	BucketFlushed      BucketState = "flushed"
)

// WindowBoundary returns when a match made at t is released. Instant
// matches fire at t; daily windows close at the next local midnight;
// weekly windows close at 00:00 of the next digestDay strictly after t.
func WindowBoundary(freq models.AlertFrequency, t time.Time, loc *time.Location, digestDay time.Weekday) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch freq {
	case models.AlertFrequencyDaily:
		return midnight.AddDate(0, 0, 1)
	case models.AlertFrequencyWeekly:
		days := (int(digestDay) - int(local.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return midnight.AddDate(0, 0, days)
	default:
		return t
	}
}

// StateAt derives the bucket state from its boundary and content
func StateAt(boundary, now time.Time, size int) BucketState {
	switch {
	case size == 0:
		return BucketFlushed
	case now.Before(boundary):
		return BucketAccumulating
	default:
		return BucketReady
	}
}
