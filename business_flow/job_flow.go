package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/app/scheduler"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/amirphl/jobboard-alerts/utils"
)

// JobScanHook matches a freshly posted job against the active alerts
type JobScanHook interface {
	ScanJob(ctx context.Context, job *models.Job) (scheduler.ScanResult, error)
}

// JobFlow defines operations on posted jobs
type JobFlow interface {
	CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*dto.CreateJobResponse, error)
	GetJob(ctx context.Context, id uint) (*dto.JobItem, error)
	DeleteJob(ctx context.Context, requesterID uint, isAdmin bool, id uint) error
}

// JobFlowImpl implements JobFlow
type JobFlowImpl struct {
	jobRepo repository.JobRepository
	scanner JobScanHook
}

func NewJobFlow(jobRepo repository.JobRepository, scanner JobScanHook) JobFlow {
	return &JobFlowImpl{jobRepo: jobRepo, scanner: scanner}
}

// CreateJob stores the job and runs the matching pass before returning.
// Deliveries caused by the pass run in the background.
func (f *JobFlowImpl) CreateJob(ctx context.Context, req *dto.CreateJobRequest) (*dto.CreateJobResponse, error) {
	job, err := buildJob(req)
	if err != nil {
		return nil, err
	}
	if err := f.jobRepo.Save(ctx, job); err != nil {
		return nil, NewBusinessError("JOB_CREATE_FAILED", "Failed to create job", err)
	}

	resp := &dto.CreateJobResponse{
		Message: "Job created successfully",
		Job:     ToJobItem(*job),
	}
	if f.scanner != nil {
		res, err := f.scanner.ScanJob(ctx, job)
		if err != nil {
			// The sweep picks the job up later
			log.Printf("jobs: scan job id=%d failed: %v", job.ID, err)
		}
		resp.Scan = toScanSummary(res)
	}
	return resp, nil
}

func (f *JobFlowImpl) GetJob(ctx context.Context, id uint) (*dto.JobItem, error) {
	job, err := f.jobRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("JOB_FETCH_FAILED", "Failed to fetch job", err)
	}
	if job == nil {
		return nil, NewBusinessError("JOB_NOT_FOUND", "Job not found", ErrJobNotFound)
	}
	item := ToJobItem(*job)
	return &item, nil
}

// DeleteJob removes the job. Matches still waiting for release are dropped
// when their release loads jobs.
func (f *JobFlowImpl) DeleteJob(ctx context.Context, requesterID uint, isAdmin bool, id uint) error {
	job, err := f.jobRepo.ByID(ctx, id)
	if err != nil {
		return NewBusinessError("JOB_FETCH_FAILED", "Failed to fetch job", err)
	}
	if job == nil {
		return NewBusinessError("JOB_NOT_FOUND", "Job not found", ErrJobNotFound)
	}
	if !isAdmin && job.PosterID != requesterID {
		return NewBusinessError("FORBIDDEN", "You can only delete your own jobs", ErrJobAccessDenied)
	}
	if err := f.jobRepo.Delete(ctx, id); err != nil {
		return NewBusinessError("JOB_DELETE_FAILED", "Failed to delete job", err)
	}
	return nil
}

func buildJob(req *dto.CreateJobRequest) (*models.Job, error) {
	job := &models.Job{
		PosterID:             req.PosterID,
		Title:                strings.TrimSpace(req.Title),
		Description:          cleanString(req.Description),
		Area:                 strings.TrimSpace(req.Area),
		Difficulty:           cleanString(req.Difficulty),
		PaymentKind:          models.PaymentKind(req.PaymentKind),
		PaymentMethod:        cleanString(req.PaymentMethod),
		SuitableForMen:       req.SuitableForMen,
		SuitableForWomen:     req.SuitableForWomen,
		SuitableForGeneral:   req.SuitableForGeneral,
		MinAge:               req.MinAge,
		DateType:             models.JobDateType(req.DateType),
		DurationHours:        req.DurationHours,
		IsFlexible:           req.IsFlexible,
		NumberOfPeopleNeeded: req.NumberOfPeopleNeeded,
		PostedAt:             utils.UTCNow(),
	}

	switch job.PaymentKind {
	case models.PaymentKindHourly:
		if req.HourlyRate == nil {
			return nil, NewBusinessError("INVALID_JOB", "hourly_rate is required for hourly jobs", ErrJobPaymentMissing)
		}
		job.HourlyRate = req.HourlyRate
	case models.PaymentKindGlobal:
		if req.GlobalAmount == nil {
			return nil, NewBusinessError("INVALID_JOB", "global_amount is required for global jobs", ErrJobPaymentMissing)
		}
		job.GlobalAmount = req.GlobalAmount
	}

	if job.DateType == models.JobDateSpecificDate {
		day, err := parseDate(req.SpecificDate)
		if err != nil || day == nil {
			return nil, NewBusinessError("INVALID_JOB", "specific_date is required for specificDate jobs", ErrJobDateMissing)
		}
		job.SpecificDate = day
	}

	if !job.SuitableForMen && !job.SuitableForWomen && !job.SuitableForGeneral {
		return nil, NewBusinessError("INVALID_JOB", "mark the job suitable for at least one group", ErrJobSuitabilityEmpty)
	}
	return job, nil
}
