// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/amirphl/jobboard-alerts/app/dto"
	businessflow "github.com/amirphl/jobboard-alerts/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AlertHandlerInterface defines the contract for alert preference handlers
type AlertHandlerInterface interface {
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Pause(c fiber.Ctx) error
	Resume(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

// AlertHandler handles alert preference HTTP requests
type AlertHandler struct {
	flow      businessflow.AlertFlow
	validator *validator.Validate
}

func (h *AlertHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AlertHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(flow businessflow.AlertFlow) *AlertHandler {
	return &AlertHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// Create Alert
// @Summary Create alert preference
// @Description Create a job alert for the authenticated user. The new alert is matched right away against recently posted jobs.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AlertPreferenceRequest true "Alert preference"
// @Success 201 {object} dto.APIResponse{data=dto.AlertPreferenceResponse} "Alert created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/alerts [post]
func (h *AlertHandler) Create(c fiber.Ctx) error {
	var req dto.AlertPreferenceRequest
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
	req.OwnerID = userID

	ctx, cancel := createRequestContext(c, "/api/v1/alerts")
	defer cancel()

	result, err := h.flow.CreateAlert(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "Failed to create alert", "ALERT_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Alert created successfully", result)
}

// Update Alert
// @Summary Update alert preference
// @Description Replace every field of an alert. Matches still waiting for release are dropped and the alert is matched again.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Alert UUID"
// @Param request body dto.AlertPreferenceRequest true "Alert preference"
// @Success 200 {object} dto.APIResponse{data=dto.AlertPreferenceResponse} "Alert updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Alert belongs to another user"
// @Failure 404 {object} dto.APIResponse "Alert not found"
// @Router /api/v1/alerts/{uuid} [put]
func (h *AlertHandler) Update(c fiber.Ctx) error {
	var req dto.AlertPreferenceRequest
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
	req.OwnerID = userID

	ctx, cancel := createRequestContext(c, "/api/v1/alerts/:uuid")
	defer cancel()

	result, err := h.flow.UpdateAlert(ctx, c.Params("uuid"), &req)
	if err != nil {
		return h.handleError(c, err, "Failed to update alert", "ALERT_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Alert updated successfully", result)
}

// Get Alert
// @Summary Get alert preference
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Alert UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AlertPreferenceResponse}
// @Failure 403 {object} dto.APIResponse "Alert belongs to another user"
// @Failure 404 {object} dto.APIResponse "Alert not found"
// @Router /api/v1/alerts/{uuid} [get]
func (h *AlertHandler) Get(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/alerts/:uuid")
	defer cancel()

	result, err := h.flow.GetAlert(ctx, userID, c.Params("uuid"))
	if err != nil {
		return h.handleError(c, err, "Failed to fetch alert", "ALERT_FETCH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Alert retrieved successfully", result)
}

// List Alerts
// @Summary List my alert preferences
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param page query integer false "Page number (default: 1)"
// @Param page_size query integer false "Items per page (default: 20, max: 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListAlertPreferencesResponse}
// @Router /api/v1/alerts [get]
func (h *AlertHandler) List(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListAlertPreferencesRequest{
		OwnerID:  userID,
		Page:     queryUint(c, "page"),
		PageSize: queryUint(c, "page_size"),
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/alerts")
	defer cancel()

	result, err := h.flow.ListAlerts(ctx, &req)
	if err != nil {
		return h.handleError(c, err, "Failed to list alerts", "ALERT_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Alerts retrieved successfully", result)
}

// Pause Alert
// @Summary Pause alert
// @Description Stop matching and drop every match still waiting for release. Pausing a paused alert is a no-op.
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Alert UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AlertPreferenceResponse}
// @Router /api/v1/alerts/{uuid}/pause [post]
func (h *AlertHandler) Pause(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/alerts/:uuid/pause")
	defer cancel()

	result, err := h.flow.PauseAlert(ctx, userID, c.Params("uuid"))
	if err != nil {
		return h.handleError(c, err, "Failed to pause alert", "ALERT_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Resume Alert
// @Summary Resume alert
// @Description Reactivate a paused alert and match it against recently posted jobs.
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Alert UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AlertPreferenceResponse}
// @Router /api/v1/alerts/{uuid}/resume [post]
func (h *AlertHandler) Resume(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/alerts/:uuid/resume")
	defer cancel()

	result, err := h.flow.ResumeAlert(ctx, userID, c.Params("uuid"))
	if err != nil {
		return h.handleError(c, err, "Failed to resume alert", "ALERT_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Delete Alert
// @Summary Delete alert
// @Tags Alerts
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Alert UUID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "Alert not found"
// @Router /api/v1/alerts/{uuid} [delete]
func (h *AlertHandler) Delete(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/alerts/:uuid")
	defer cancel()

	if err := h.flow.DeleteAlert(ctx, userID, c.Params("uuid")); err != nil {
		return h.handleError(c, err, "Failed to delete alert", "ALERT_DELETE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Alert deleted successfully", nil)
}

func (h *AlertHandler) handleError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsAlertNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Alert not found", "ALERT_NOT_FOUND", nil)
	}
	if businessflow.IsAlertAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "You can only manage your own alerts", "FORBIDDEN", nil)
	}
	if be, ok := err.(*businessflow.BusinessError); ok {
		switch be.Code {
		case "INVALID_ALERT":
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Error())
		}
	}
	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
