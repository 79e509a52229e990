package alerting

import (
	"testing"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/stretchr/testify/assert"
)

func TestWindowBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// Wednesday 2026-03-04 15:20 local
	now := time.Date(2026, 3, 4, 15, 20, 0, 0, loc)

	t.Run("instant", func(t *testing.T) {
		assert.Equal(t, now, WindowBoundary(models.AlertFrequencyInstant, now, loc, time.Sunday))
	})
	t.Run("daily", func(t *testing.T) {
		want := time.Date(2026, 3, 5, 0, 0, 0, 0, loc)
		assert.True(t, want.Equal(WindowBoundary(models.AlertFrequencyDaily, now, loc, time.Sunday)))
	})
	t.Run("weekly", func(t *testing.T) {
		want := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)
		assert.True(t, want.Equal(WindowBoundary(models.AlertFrequencyWeekly, now, loc, time.Sunday)))
	})
	t.Run("weekly on digest day rolls a full week", func(t *testing.T) {
		want := time.Date(2026, 3, 11, 0, 0, 0, 0, loc)
		assert.True(t, want.Equal(WindowBoundary(models.AlertFrequencyWeekly, now, loc, time.Wednesday)))
	})
}

func TestStateAt(t *testing.T) {
	boundary := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, BucketAccumulating, StateAt(boundary, boundary.Add(-time.Minute), 2))
	assert.Equal(t, BucketReady, StateAt(boundary, boundary, 2))
	assert.Equal(t, BucketFlushed, StateAt(boundary, boundary.Add(time.Hour), 0))
}
