// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"
	"strconv"

	"github.com/amirphl/jobboard-alerts/app/dto"
	businessflow "github.com/amirphl/jobboard-alerts/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// JobHandlerInterface defines the contract for job handlers
type JobHandlerInterface interface {
	Create(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

// JobHandler handles job posting HTTP requests
type JobHandler struct {
	flow      businessflow.JobFlow
	validator *validator.Validate
}

func (h *JobHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *JobHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewJobHandler creates a new job handler
func NewJobHandler(flow businessflow.JobFlow) *JobHandler {
	return &JobHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// Create Job
// @Summary Post a job
// @Description Store a job and match it against every active alert before answering. Deliveries run in the background.
// @Tags Jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateJobRequest true "Job"
// @Success 201 {object} dto.APIResponse{data=dto.CreateJobResponse} "Job created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/jobs [post]
func (h *JobHandler) Create(c fiber.Ctx) error {
	var req dto.CreateJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.PosterID = userID

	ctx, cancel := createRequestContext(c, "/api/v1/jobs")
	defer cancel()

	result, err := h.flow.CreateJob(ctx, &req)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "INVALID_JOB":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Error())
			}
		}
		log.Println("Failed to create job", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create job", "JOB_CREATE_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Job created successfully", result)
}

// Get Job
// @Summary Get a job
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Job ID"
// @Success 200 {object} dto.APIResponse{data=dto.JobItem}
// @Failure 404 {object} dto.APIResponse "Job not found"
// @Router /api/v1/jobs/{id} [get]
func (h *JobHandler) Get(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid job id", "INVALID_JOB_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/jobs/:id")
	defer cancel()

	result, err := h.flow.GetJob(ctx, uint(id))
	if err != nil {
		if businessflow.IsJobNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Job not found", "JOB_NOT_FOUND", nil)
		}
		log.Println("Failed to fetch job", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch job", "JOB_FETCH_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Job retrieved successfully", result)
}

// Delete Job
// @Summary Delete a job
// @Description Remove a job. Matches of the job still waiting for release are skipped when their window is flushed.
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Job ID"
// @Success 200 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse "Job posted by another user"
// @Failure 404 {object} dto.APIResponse "Job not found"
// @Router /api/v1/jobs/{id} [delete]
func (h *JobHandler) Delete(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid job id", "INVALID_JOB_ID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	isAdmin, _ := c.Locals("is_admin").(bool)

	ctx, cancel := createRequestContext(c, "/api/v1/jobs/:id")
	defer cancel()

	if err := h.flow.DeleteJob(ctx, userID, isAdmin, uint(id)); err != nil {
		if businessflow.IsJobNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Job not found", "JOB_NOT_FOUND", nil)
		}
		if businessflow.IsJobAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "You can only delete your own jobs", "FORBIDDEN", nil)
		}
		log.Println("Failed to delete job", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete job", "JOB_DELETE_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Job deleted successfully", nil)
}
