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
)

// PhoneListClient registers numbers in the outbound call list of the
// phone provider; the provider dials them and plays the spoken text.
type PhoneListClient interface {
	AddToCallList(ctx context.Context, phone, spokenText string) error
}

type callListRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

type callListResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HTTPPhoneListClient posts numbers to the provider's call list API
type HTTPPhoneListClient struct {
	config  *config.PhoneConfig
	client  *http.Client
	backoff time.Duration
}

func NewHTTPPhoneListClient(cfg *config.PhoneConfig) *HTTPPhoneListClient {
	return &HTTPPhoneListClient{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: time.Second,
	}
}

func (c *HTTPPhoneListClient) AddToCallList(ctx context.Context, phone, spokenText string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("add to call list: empty phone")
	}
	body, err := json.Marshal(callListRequest{Phone: phone, Text: spokenText})
	if err != nil {
		return fmt.Errorf("failed to marshal call list request: %w", err)
	}
	return withRetry(ctx, c.config.RetryAttempts, c.backoff, func(ctx context.Context) error {
		return c.add(ctx, body)
	})
}

func (c *HTTPPhoneListClient) add(ctx context.Context, body []byte) error {
	url := fmt.Sprintf("%s/lists/%s/contacts", strings.TrimRight(c.config.BaseURL, "/"), c.config.ListID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return networkError("add to call list", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("add to call list", resp.StatusCode, string(raw))
	}
	var out callListResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode call list response: %w", err)
	}
	if !strings.EqualFold(out.Status, "ok") {
		return fmt.Errorf("add to call list rejected: %s %s", out.Status, out.Message)
	}
	return nil
}

// MockPhoneListClient records numbers instead of calling them
type MockPhoneListClient struct {
	mu    sync.Mutex
	Calls []MockMessage
}

func NewMockPhoneListClient() *MockPhoneListClient {
	return &MockPhoneListClient{}
}

func (m *MockPhoneListClient) AddToCallList(_ context.Context, phone, spokenText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Printf("Mock call queued for %s: %s", phone, spokenText)
	m.Calls = append(m.Calls, MockMessage{Phone: phone, Text: spokenText})
	return nil
}
