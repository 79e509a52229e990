package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/jobboard-alerts/app/dto"
	businessflow "github.com/amirphl/jobboard-alerts/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ivrFlowStub struct {
	resp *dto.IVRWebhookResponse
	err  error
}

func (s ivrFlowStub) HandleWebhook(context.Context, *dto.IVRWebhookRequest) (*dto.IVRWebhookResponse, error) {
	return s.resp, s.err
}

func postIVR(t *testing.T, flow businessflow.IVRFlow, body any) *http.Response {
	t.Helper()
	app := fiber.New()
	app.Post("/ivr", NewIVRHandler(flow).Webhook)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/ivr", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestIVRHandler_Webhook(t *testing.T) {
	event := dto.IVRWebhookRequest{CallID: "call-1", Phone: "0501234567", Event: dto.IVREventStart}

	t.Run("answers with the flow instruction", func(t *testing.T) {
		flow := ivrFlowStub{resp: &dto.IVRWebhookResponse{CallID: "call-1", Action: dto.IVRActionGather, Text: "menu"}}
		resp := postIVR(t, flow, event)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body dto.IVRWebhookResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, dto.IVRActionGather, body.Action)
	})

	t.Run("session store failure is a server error", func(t *testing.T) {
		flow := ivrFlowStub{err: businessflow.NewBusinessError("CALL_SESSION_FAILED", "Failed to load call session", errors.New("redis down"))}
		resp := postIVR(t, flow, event)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		var body struct {
			Success bool            `json:"success"`
			Error   dto.ErrorDetail `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, "CALL_SESSION_FAILED", body.Error.Code)
	})

	t.Run("invalid event", func(t *testing.T) {
		resp := postIVR(t, ivrFlowStub{}, dto.IVRWebhookRequest{CallID: "call-1", Phone: "0501234567", Event: "ring"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}
