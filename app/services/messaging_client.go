package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/jobboard-alerts/config"
	"golang.org/x/time/rate"
)

// MessagingClient sends text messages through the messaging-app gateway
type MessagingClient interface {
	SendMessage(ctx context.Context, phone, text string) error
}

type messagingRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type messagingResponse struct {
	IDMessage string `json:"idMessage"`
}

// HTTPMessagingClient calls the gateway's sendMessage endpoint. Calls are
// throttled to the configured rate shared by all goroutines.
type HTTPMessagingClient struct {
	config  *config.MessagingConfig
	client  *http.Client
	limiter *rate.Limiter
	backoff time.Duration
}

func NewHTTPMessagingClient(cfg *config.MessagingConfig) *HTTPMessagingClient {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, perMinute/10)
	}
	return &HTTPMessagingClient{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		backoff: 500 * time.Millisecond,
	}
}

func (c *HTTPMessagingClient) SendMessage(ctx context.Context, phone, text string) error {
	chatID, err := ChatIDFromPhone(phone)
	if err != nil {
		return err
	}
	body, err := json.Marshal(messagingRequest{ChatID: chatID, Message: text})
	if err != nil {
		return fmt.Errorf("failed to marshal message request: %w", err)
	}

	return withRetry(ctx, c.config.RetryAttempts, c.backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.send(ctx, body)
	})
}

func (c *HTTPMessagingClient) send(ctx context.Context, body []byte) error {
	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", strings.TrimRight(c.config.BaseURL, "/"), c.config.InstanceID, c.config.APIToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return networkError("send message", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return statusError("send message", resp.StatusCode, string(raw))
	}
	var out messagingResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.IDMessage == "" {
		return fmt.Errorf("send message: gateway did not accept the message: %s", string(raw))
	}
	return nil
}

// ChatIDFromPhone turns a local or international mobile number into the
// gateway chat id ("972501234567@c.us").
func ChatIDFromPhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	switch {
	case strings.HasPrefix(digits, "972"):
	case strings.HasPrefix(digits, "0"):
		digits = "972" + digits[1:]
	default:
		return "", fmt.Errorf("invalid phone number: %q", phone)
	}
	if len(digits) < 11 || len(digits) > 12 {
		return "", fmt.Errorf("invalid phone number: %q", phone)
	}
	return digits + "@c.us", nil
}

// MockMessagingClient records messages instead of sending them
type MockMessagingClient struct {
	mu   sync.Mutex
	Sent []MockMessage
}

type MockMessage struct {
	Phone string
	Text  string
}

func NewMockMessagingClient() *MockMessagingClient {
	return &MockMessagingClient{}
}

func (m *MockMessagingClient) SendMessage(_ context.Context, phone, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Printf("Mock message sent to %s: %s", phone, text)
	m.Sent = append(m.Sent, MockMessage{Phone: phone, Text: text})
	return nil
}
