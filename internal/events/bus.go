package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okna-market/pricing-api/internal/queue"
)

// QuoteCalculatedEvent is the payload published after every successful
// calculation. Downstream consumers (notification, analytics) read it from
// the task queue; the quote itself stays in the cache.
type QuoteCalculatedEvent struct {
	QuoteID           string    `json:"quoteId"`
	ProductTemplateID string    `json:"productTemplateId"`
	Fingerprint       string    `json:"fingerprint"`
	Total             string    `json:"total"`
	Currency          string    `json:"currency"`
	Region            string    `json:"region"`
	PromoCode         string    `json:"promoCode,omitempty"`
	FromCache         bool      `json:"fromCache"`
	CalculatedAt      time.Time `json:"calculatedAt"`
}

// PriceBookPublishedEvent announces a new active price book version.
type PriceBookPublishedEvent struct {
	PriceBookID       string    `json:"priceBookId"`
	ProductTemplateID string    `json:"productTemplateId"`
	Version           int32     `json:"version"`
	PublishedAt       time.Time `json:"publishedAt"`
}

// Enqueuer is the slice of the task queue the bus needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// Notifier reacts to emitted events in-process (metrics, logging hooks).
type Notifier interface {
	Notify(ctx context.Context, topic string, payload []byte) error
}

// Bus fans emitted events out to the task queue and any in-process
// notifiers. It is a fire-and-forget sink from the orchestrator's point of
// view: the caller decides whether a failed Emit matters.
type Bus struct {
	Queue     Enqueuer
	Notifiers []Notifier
}

// Emit serialises the payload and hands it to every configured sink.
func (b *Bus) Emit(ctx context.Context, topic string, dedupKey string, payload any) error {
	if b == nil {
		return errors.New("events: bus not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	if !knownTopic(topic) {
		return fmt.Errorf("events: unknown topic %q", topic)
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}

	var joined error
	if b.Queue != nil {
		task := queue.Task{
			Kind:           topicToKind(topic),
			Payload:        encoded,
			IdempotencyKey: dedupKey,
		}
		if err := b.Queue.Enqueue(ctx, task); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: enqueue %s: %w", topic, err))
		}
	}
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, topic, encoded); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return joined
}

// PublishQuoteCalculated implements the orchestrator's publish sink.
func (b *Bus) PublishQuoteCalculated(ctx context.Context, ev QuoteCalculatedEvent) error {
	return b.Emit(ctx, TopicQuoteCalculated, ev.QuoteID, ev)
}

// PublishPriceBookPublished announces a publish to downstream consumers.
func (b *Bus) PublishPriceBookPublished(ctx context.Context, ev PriceBookPublishedEvent) error {
	return b.Emit(ctx, TopicPriceBookPublished, ev.PriceBookID, ev)
}

func knownTopic(topic string) bool {
	for _, t := range DefaultTopics() {
		if t == topic {
			return true
		}
	}
	return false
}

// topicToKind maps "quote.calculated" onto a queue-safe task kind.
func topicToKind(topic string) string {
	return strings.ReplaceAll(topic, ".", ":")
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return encodePayload([]byte(v))
	default:
		return json.Marshal(v)
	}
}
