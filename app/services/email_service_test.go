package services

import (
	"context"
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHTMLMessage(t *testing.T) {
	html := strings.Repeat("<p>משרה חדשה</p>", 20)
	msg := string(buildHTMLMessage(
		mail.Address{Name: "Job Board", Address: "alerts@example.com"},
		"dana@example.com",
		"3 משרות חדשות",
		html,
		time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
	))

	headers, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, headers, "To: dana@example.com")
	assert.Contains(t, headers, "Subject: =?UTF-8?b?")
	assert.Contains(t, headers, "Content-Type: text/html; charset=UTF-8")

	for _, line := range strings.Split(strings.TrimSpace(body), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, html, string(decoded))
}

func TestMockEmailTransport(t *testing.T) {
	m := NewMockEmailTransport()
	require.NoError(t, m.SendHTML(context.Background(), "dana@example.com", "s", "<p/>"))
	assert.Error(t, m.SendHTML(context.Background(), "nobody", "s", "<p/>"))
	require.Len(t, m.Sent, 1)
}
