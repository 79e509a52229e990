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

// NotificationHandlerInterface defines the contract for in-app notification handlers
type NotificationHandlerInterface interface {
	List(c fiber.Ctx) error
	MarkRead(c fiber.Ctx) error
}

// NotificationHandler serves the in-app notification inbox
type NotificationHandler struct {
	flow      businessflow.SiteNotificationFlow
	validator *validator.Validate
}

func (h *NotificationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *NotificationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(flow businessflow.SiteNotificationFlow) *NotificationHandler {
	return &NotificationHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// List Notifications
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread_only query boolean false "Only unread notifications"
// @Param page query integer false "Page number (default: 1)"
// @Param page_size query integer false "Items per page (default: 20, max: 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListNotificationsResponse}
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	unreadOnly, _ := strconv.ParseBool(c.Query("unread_only"))
	req := dto.ListNotificationsRequest{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Page:       queryUint(c, "page"),
		PageSize:   queryUint(c, "page_size"),
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/notifications")
	defer cancel()

	result, err := h.flow.ListNotifications(ctx, &req)
	if err != nil {
		log.Println("Failed to list notifications", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list notifications", "NOTIFICATION_LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notifications retrieved successfully", result)
}

// MarkRead Notification
// @Summary Mark a notification as read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Notification ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "Notification not found"
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid notification id", "INVALID_NOTIFICATION_ID", nil)
	}
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/notifications/:id/read")
	defer cancel()

	if err := h.flow.MarkRead(ctx, userID, uint(id)); err != nil {
		if businessflow.IsNotificationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", "NOTIFICATION_NOT_FOUND", nil)
		}
		log.Println("Failed to mark notification read", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update notification", "NOTIFICATION_UPDATE_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notification marked as read", nil)
}
