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

func hourlyJobRequest(poster uint) *dto.CreateJobRequest {
	return &dto.CreateJobRequest{
		PosterID:           poster,
		Title:              " Waiter ",
		Area:               "חיפה",
		PaymentKind:        "hourly",
		HourlyRate:         utils.ToPtr(55.0),
		SuitableForGeneral: true,
		DateType:           "today",
	}
}

func TestJobFlow_CreateRunsMatchingPass(t *testing.T) {
	jobs := newJobStore()
	scanner := &scanRecorder{result: scheduler.ScanResult{Evaluated: 3, Matched: 1, Failed: 1}}
	flow := NewJobFlow(jobs, scanner)

	resp, err := flow.CreateJob(context.Background(), hourlyJobRequest(4))
	require.NoError(t, err)

	assert.Equal(t, "Waiter", resp.Job.Title)
	assert.Equal(t, dto.ScanSummary{Evaluated: 3, Matched: 1, Errors: 1}, resp.Scan)
	assert.Equal(t, []uint{resp.Job.ID}, scanner.jobs)

	stored, _ := jobs.ByID(context.Background(), resp.Job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, uint(4), stored.PosterID)
	assert.False(t, stored.PostedAt.IsZero())
}

func TestJobFlow_ScanErrorDoesNotFailCreate(t *testing.T) {
	jobs := newJobStore()
	flow := NewJobFlow(jobs, &scanRecorder{err: errors.New("no alerts")})

	resp, err := flow.CreateJob(context.Background(), hourlyJobRequest(4))
	require.NoError(t, err)
	n, _ := jobs.Count(context.Background(), models.JobFilter{})
	assert.Equal(t, int64(1), n)
	assert.Zero(t, resp.Scan.Matched)
}

func TestJobFlow_CreateValidation(t *testing.T) {
	flow := NewJobFlow(newJobStore(), nil)

	req := hourlyJobRequest(1)
	req.HourlyRate = nil
	_, err := flow.CreateJob(context.Background(), req)
	assert.ErrorIs(t, err, ErrJobPaymentMissing)

	req = hourlyJobRequest(1)
	req.DateType = "specificDate"
	_, err = flow.CreateJob(context.Background(), req)
	assert.ErrorIs(t, err, ErrJobDateMissing)

	req.SpecificDate = utils.ToPtr("2024-06-01")
	resp, err := flow.CreateJob(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", *resp.Job.SpecificDate)

	req = hourlyJobRequest(1)
	req.SuitableForGeneral = false
	_, err = flow.CreateJob(context.Background(), req)
	assert.True(t, IsJobValidation(err))
}

func TestJobFlow_Delete(t *testing.T) {
	jobs := newJobStore()
	flow := NewJobFlow(jobs, nil)
	created, err := flow.CreateJob(context.Background(), hourlyJobRequest(4))
	require.NoError(t, err)

	err = flow.DeleteJob(context.Background(), 5, false, created.Job.ID)
	assert.True(t, IsJobAccessDenied(err))

	require.NoError(t, flow.DeleteJob(context.Background(), 5, true, created.Job.ID))
	_, err = flow.GetJob(context.Background(), created.Job.ID)
	assert.True(t, IsJobNotFound(err))

	err = flow.DeleteJob(context.Background(), 4, false, created.Job.ID)
	assert.Equal(t, "JOB_NOT_FOUND", businessCode(t, err))
}
