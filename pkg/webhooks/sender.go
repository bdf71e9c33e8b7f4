package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Delivery headers
const (
	HeaderEvent     = "X-Backoffice-Event"
	HeaderEventID   = "X-Backoffice-Event-ID"
	HeaderDelivery  = "X-Backoffice-Delivery"
	HeaderSignature = "X-Backoffice-Signature"
)

// Event is the JSON envelope posted to the endpoint
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Delivery describes the outcome of Send
type Delivery struct {
	EventID    string
	Attempts   int
	StatusCode int
	Duration   time.Duration
}

// PermanentError marks a response that retrying cannot fix
type PermanentError struct {
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("webhook rejected with status %d", e.StatusCode)
}

// Config configures a Sender
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Retry   RetryConfig
}

// Sender posts signed events to a single endpoint
type Sender struct {
	url    string
	secret string
	client *http.Client
	policy *RetryPolicy
	sleep  func(context.Context, time.Duration) error
	now    func() time.Time
}

// NewSender creates a sender for cfg.URL
func NewSender(cfg Config) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sender{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: cfg.Timeout},
		policy: NewRetryPolicy(cfg.Retry),
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// Send posts one event, retrying transport errors and 5xx/429 responses
// with exponential backoff. It blocks until delivery succeeds, attempts run
// out, or ctx is done.
func (s *Sender) Send(ctx context.Context, eventType string, data interface{}) (*Delivery, error) {
	event := &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: s.now().UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	delivery := &Delivery{EventID: event.ID}
	start := s.now()
	for {
		delivery.Attempts++
		delivery.StatusCode, err = s.post(ctx, event, payload)
		if !s.policy.ShouldRetry(delivery.Attempts, err) {
			break
		}
		if werr := s.sleep(ctx, s.policy.NextRetryDelay(delivery.Attempts)); werr != nil {
			err = werr
			break
		}
	}
	delivery.Duration = s.now().Sub(start)
	if err != nil {
		return delivery, fmt.Errorf("deliver %s after %d attempts: %w", eventType, delivery.Attempts, err)
	}
	return delivery, nil
}

func (s *Sender) post(ctx context.Context, event *Event, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return 0, &PermanentError{}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.Type)
	req.Header.Set(HeaderEventID, event.ID)
	req.Header.Set(HeaderDelivery, s.now().UTC().Format(time.RFC3339))
	if s.secret != "" {
		req.Header.Set(HeaderSignature, Sign(payload, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	default:
		return resp.StatusCode, &PermanentError{StatusCode: resp.StatusCode}
	}
}

// Sign returns the HMAC-SHA256 signature header value for payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies a signature produced by Sign
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
