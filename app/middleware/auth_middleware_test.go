package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/jobboard-alerts/app/dto"
	"github.com/amirphl/jobboard-alerts/app/services"
	"github.com/amirphl/jobboard-alerts/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, services.TokenService) {
	t.Helper()
	tokens, err := services.NewTokenService(config.JWTConfig{SecretKey: "middleware-test-secret-0123456789abcdef"})
	require.NoError(t, err)
	auth := NewAuthMiddleware(tokens, "admin")

	app := fiber.New()
	whoami := func(c fiber.Ctx) error {
		id, _ := GetUserIDFromContext(c)
		return c.JSON(fiber.Map{"user_id": id, "is_admin": c.Locals("is_admin")})
	}
	app.Get("/me", auth.Authenticate(), whoami)
	app.Get("/admin", auth.Authenticate(), auth.RequireAdmin(), whoami)
	app.Post("/hook", WebhookToken("X-IVR-Token", "s3cret"), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, tokens
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Success bool            `json:"success"`
		Error   dto.ErrorDetail `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestAuthenticate(t *testing.T) {
	app, tokens := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_AUTHORIZATION_HEADER", errorCode(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_AUTHORIZATION_FORMAT", errorCode(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN_INVALID", errorCode(t, resp))

	token, err := tokens.SignAccessToken(42, "member", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID  uint `json:"user_id"`
		IsAdmin bool `json:"is_admin"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint(42), body.UserID)
	assert.False(t, body.IsAdmin)
}

func TestRequireAdmin(t *testing.T) {
	app, tokens := newTestApp(t)

	member, err := tokens.SignAccessToken(1, "member", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+member)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ADMIN_REQUIRED", errorCode(t, resp))

	admin, err := tokens.SignAccessToken(2, "admin", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookToken(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set("X-IVR-Token", "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set("X-IVR-Token", "s3cret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
