package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okna-market/pricing-api/internal/resilience"
)

// WebhookSender delivers event payloads to a single configured endpoint with
// an HMAC signature. Delivery retries and circuit breaking live in the
// wrapped HTTP client.
type WebhookSender struct {
	URL    string
	Secret string
	HTTP   *resilience.HTTPClient
	Logger zerolog.Logger
	Now    func() time.Time
}

func (s *WebhookSender) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Send posts the payload for one topic. A non-2xx response is an error so the
// task queue schedules a retry.
func (s *WebhookSender) Send(ctx context.Context, topic string, eventID string, payload []byte) error {
	if s.URL == "" {
		return errors.New("notify: webhook url not configured")
	}
	if s.HTTP == nil {
		return errors.New("notify: http client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	ts := s.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pricing-Topic", topic)
	req.Header.Set("X-Pricing-Event", eventID)
	req.Header.Set("X-Pricing-Timestamp", strconv.FormatInt(ts, 10))
	if s.Secret != "" {
		req.Header.Set("X-Pricing-Signature", ComputeSignature(s.Secret, ts, eventID, payload))
	}

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("notify: deliver %s: %w", topic, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: deliver %s: unexpected status %s", topic, resp.Status)
	}
	s.Logger.Debug().Str("topic", topic).Str("event_id", eventID).Int("status", resp.StatusCode).Msg("webhook delivered")
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the shared
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
