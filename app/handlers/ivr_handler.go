// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/amirphl/jobboard-alerts/app/dto"
	businessflow "github.com/amirphl/jobboard-alerts/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// IVRHandlerInterface defines the contract for the phone provider callbacks
type IVRHandlerInterface interface {
	Webhook(c fiber.Ctx) error
}

// IVRHandler answers the phone provider during alert calls
type IVRHandler struct {
	flow      businessflow.IVRFlow
	validator *validator.Validate
}

func (h *IVRHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// NewIVRHandler creates a new IVR handler
func NewIVRHandler(flow businessflow.IVRFlow) *IVRHandler {
	return &IVRHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

// Webhook IVR
// @Summary Phone provider webhook
// @Description Called by the phone provider on call start, on every key press and on hangup. The body of a successful answer is the provider instruction, not the usual envelope.
// @Tags IVR
// @Accept json
// @Produce json
// @Param X-IVR-Token header string true "Shared webhook token"
// @Param request body dto.IVRWebhookRequest true "Call event"
// @Success 200 {object} dto.IVRWebhookResponse
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid webhook token"
// @Failure 500 {object} dto.APIResponse "Call session store failure"
// @Router /api/v1/ivr/webhook [post]
func (h *IVRHandler) Webhook(c fiber.Ctx) error {
	var req dto.IVRWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/ivr/webhook")
	defer cancel()

	result, err := h.flow.HandleWebhook(ctx, &req)
	if err != nil {
		log.Printf("IVR webhook failed call_id=%s event=%s: %v", req.CallID, req.Event, err)
		code := "IVR_WEBHOOK_FAILED"
		if be, ok := err.(*businessflow.BusinessError); ok {
			code = be.Code
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to handle call event", code, nil)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}
