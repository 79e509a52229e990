// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"
	"time"

	"github.com/amirphl/jobboard-alerts/app/dto"
	businessflow "github.com/amirphl/jobboard-alerts/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AlertAdminHandlerInterface defines the contract for admin alert engine handlers
type AlertAdminHandlerInterface interface {
	Stats(c fiber.Ctx) error
	GetSettings(c fiber.Ctx) error
	UpdateSettings(c fiber.Ctx) error
	Dispatch(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// AlertAdminHandler exposes the alert engine to admins
type AlertAdminHandler struct {
	flow      businessflow.AlertAdminFlow
	validator *validator.Validate
}

func (h *AlertAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AlertAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAlertAdminHandler creates a new admin alert handler
func NewAlertAdminHandler(flow businessflow.AlertAdminFlow) *AlertAdminHandler {
	return &AlertAdminHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// Stats Alert Engine
// @Summary Alert delivery statistics
// @Description Counters of today's deliveries by channel and outcome, calls used against the daily cap and matches waiting for release.
// @Tags Admin Alerts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AlertStatsResponse}
// @Failure 403 {object} dto.APIResponse "Admin role required"
// @Router /api/v1/admin/alerts/stats [get]
func (h *AlertAdminHandler) Stats(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/admin/alerts/stats")
	defer cancel()

	result, err := h.flow.GetStats(ctx)
	if err != nil {
		log.Println("Failed to load alert stats", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load statistics", "STATS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", result)
}

// GetSettings Alert Engine
// @Summary Get alert engine settings
// @Tags Admin Alerts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AlertSettingsResponse}
// @Router /api/v1/admin/alerts/settings [get]
func (h *AlertAdminHandler) GetSettings(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/admin/alerts/settings")
	defer cancel()

	result, err := h.flow.GetSettings(ctx)
	if err != nil {
		log.Println("Failed to load alert settings", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load settings", "SETTINGS_FETCH_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings retrieved successfully", result)
}

// UpdateSettings Alert Engine
// @Summary Update alert engine settings
// @Description Only the fields present in the body change. Send an empty string to clear the quiet hours.
// @Tags Admin Alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateAlertSettingsRequest true "Settings patch"
// @Success 200 {object} dto.APIResponse{data=dto.AlertSettingsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/admin/alerts/settings [put]
func (h *AlertAdminHandler) UpdateSettings(c fiber.Ctx) error {
	var req dto.UpdateAlertSettingsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	adminID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin ID not found in context", "MISSING_ADMIN_ID", nil)
	}
	req.AdminID = adminID

	ctx, cancel := createRequestContext(c, "/api/v1/admin/alerts/settings")
	defer cancel()

	result, err := h.flow.UpdateSettings(ctx, &req)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok && businessflow.IsSettingsValidation(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Error())
		}
		log.Println("Failed to update alert settings", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update settings", "SETTINGS_UPDATE_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Settings updated successfully", result)
}

// Dispatch Alert Engine
// @Summary Force dispatch
// @Description Release every pending match now, ignoring quiet hours and open digest windows. The daily call cap still applies.
// @Tags Admin Alerts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ForceDispatchResponse}
// @Failure 409 {object} dto.APIResponse "Scheduler disabled in this process or a dispatch run in progress"
// @Router /api/v1/admin/alerts/dispatch [post]
func (h *AlertAdminHandler) Dispatch(c fiber.Ctx) error {
	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/admin/alerts/dispatch", 2*time.Minute)
	defer cancel()

	result, err := h.flow.ForceDispatch(ctx)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "SCHEDULER_DISABLED", "DISPATCH_BUSY":
				return h.ErrorResponse(c, fiber.StatusConflict, be.Message, be.Code, nil)
			}
		}
		log.Println("Force dispatch failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Force dispatch failed", "FORCE_DISPATCH_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pending matches released", result)
}

// Export Send Records
// @Summary Export channel send records
// @Description Download delivery records as an xlsx workbook. Defaults to the last 30 days.
// @Tags Admin Alerts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param since query string false "First day (YYYY-MM-DD)"
// @Param until query string false "Last day, inclusive (YYYY-MM-DD)"
// @Param channel query string false "site, email, messaging or phone"
// @Param status query string false "sent, failed, skipped_quiet_hours or skipped_volume_cap"
// @Success 200 {file} file
// @Failure 400 {object} dto.APIResponse "Invalid range"
// @Router /api/v1/admin/alerts/export [get]
func (h *AlertAdminHandler) Export(c fiber.Ctx) error {
	req := dto.ExportSendRecordsRequest{
		Since:   queryStringPtr(c, "since"),
		Until:   queryStringPtr(c, "until"),
		Channel: queryStringPtr(c, "channel"),
		Status:  queryStringPtr(c, "status"),
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/admin/alerts/export", 2*time.Minute)
	defer cancel()

	filename, data, err := h.flow.ExportSendRecords(ctx, &req)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "VALIDATION_ERROR":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
			}
		}
		log.Println("Failed to export send records", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export send records", "EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
