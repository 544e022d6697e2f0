package notify_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/okna-market/pricing-api/internal/notify"
	"github.com/okna-market/pricing-api/internal/resilience"
)

func fixedNow() time.Time {
	return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
}

func newSender(url string) *notify.WebhookSender {
	return &notify.WebhookSender{
		URL:    url,
		Secret: "s3cret",
		HTTP: &resilience.HTTPClient{
			Client:      &http.Client{Timeout: time.Second},
			Breaker:     resilience.NewBreaker(1, 1, time.Second),
			MaxAttempts: 1,
		},
		Logger: zerolog.Nop(),
		Now:    fixedNow,
	}
}

func TestSendDeliversSignedPayload(t *testing.T) {
	payload := []byte(`{"quoteId":"q-1","total":"138.00"}`)

	var gotBody []byte
	var gotSig, gotTopic, gotTS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Pricing-Signature")
		gotTopic = r.Header.Get("X-Pricing-Topic")
		gotTS = r.Header.Get("X-Pricing-Timestamp")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	sender := newSender(srv.URL)
	require.NoError(t, sender.Send(context.Background(), "quote.calculated", "q-1", payload))

	require.Equal(t, payload, gotBody)
	require.Equal(t, "quote.calculated", gotTopic)
	require.Equal(t, strconv.FormatInt(fixedNow().Unix(), 10), gotTS)
	require.Equal(t, notify.ComputeSignature("s3cret", fixedNow().Unix(), "q-1", payload), gotSig)
}

func TestSendFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	require.Error(t, newSender(srv.URL).Send(context.Background(), "quote.calculated", "q-1", []byte(`{}`)))
}

func TestSendRetriesThroughResilientClient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	sender := newSender(srv.URL)
	sender.HTTP.MaxAttempts = 3
	sender.HTTP.BaseBackoff = time.Millisecond
	sender.HTTP.Breaker = resilience.NewBreaker(10, 0.9, time.Second)

	require.NoError(t, sender.Send(context.Background(), "quote.calculated", "q-1", []byte(`{}`)))
	require.Equal(t, int32(2), calls.Load())
}

func TestSendRequiresConfiguration(t *testing.T) {
	sender := &notify.WebhookSender{}
	require.Error(t, sender.Send(context.Background(), "quote.calculated", "q-1", nil))
}
