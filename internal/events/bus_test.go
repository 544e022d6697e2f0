package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/okna-market/pricing-api/internal/queue"
)

type recordingNotifier struct {
	topics []string
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, topic string, _ []byte) error {
	if n.err != nil {
		return n.err
	}
	n.topics = append(n.topics, topic)
	return nil
}

func newBus(t *testing.T) (*Bus, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Bus{Queue: queue.Enqueuer{R: client, Prefix: "pricing"}}, client
}

func TestPublishQuoteCalculatedEnqueuesTask(t *testing.T) {
	bus, client := newBus(t)
	ctx := context.Background()

	ev := QuoteCalculatedEvent{
		QuoteID:           "q-1",
		ProductTemplateID: "WINDOW-STD",
		Fingerprint:       "WINDOW-STD:abc",
		Total:             "138.00",
		Currency:          "RUB",
		Region:            "RU",
		CalculatedAt:      time.Now().UTC(),
	}
	require.NoError(t, bus.PublishQuoteCalculated(ctx, ev))

	members, err := client.ZRange(ctx, "pricing:queue:quote:calculated", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, members, 1)

	var msg struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(members[0]), &msg))
	require.Equal(t, "quote:calculated", msg.Kind)

	var decoded QuoteCalculatedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	require.Equal(t, ev.QuoteID, decoded.QuoteID)
	require.Equal(t, ev.Total, decoded.Total)
}

func TestPublishDeduplicatesByQuoteID(t *testing.T) {
	bus, client := newBus(t)
	ctx := context.Background()

	ev := QuoteCalculatedEvent{QuoteID: "q-1", Total: "138.00", Currency: "RUB"}
	require.NoError(t, bus.PublishQuoteCalculated(ctx, ev))
	require.NoError(t, bus.PublishQuoteCalculated(ctx, ev))

	n, err := client.ZCard(ctx, "pricing:queue:quote:calculated").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPublishPriceBookPublished(t *testing.T) {
	bus, client := newBus(t)
	ctx := context.Background()

	ev := PriceBookPublishedEvent{PriceBookID: "pb-1", ProductTemplateID: "WINDOW-STD", Version: 2}
	require.NoError(t, bus.PublishPriceBookPublished(ctx, ev))

	n, err := client.ZCard(ctx, "pricing:queue:pricebook:published").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestEmitFansOutToNotifiers(t *testing.T) {
	bus, _ := newBus(t)
	notifier := &recordingNotifier{}
	bus.Notifiers = []Notifier{notifier}

	require.NoError(t, bus.Emit(context.Background(), TopicQuoteCalculated, "q-2", QuoteCalculatedEvent{QuoteID: "q-2"}))
	require.Equal(t, []string{TopicQuoteCalculated}, notifier.topics)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	bus, client := newBus(t)
	sinkErr := errors.New("sink down")
	bus.Notifiers = []Notifier{&recordingNotifier{err: sinkErr}}

	err := bus.Emit(context.Background(), TopicQuoteCalculated, "q-3", QuoteCalculatedEvent{QuoteID: "q-3"})
	require.ErrorIs(t, err, sinkErr)

	// The queue write still happened despite the notifier failure.
	n, zerr := client.ZCard(context.Background(), "pricing:queue:quote:calculated").Result()
	require.NoError(t, zerr)
	require.Equal(t, int64(1), n)
}

func TestEmitRequiresTopic(t *testing.T) {
	bus, _ := newBus(t)
	require.Error(t, bus.Emit(context.Background(), "  ", "", nil))
}

func TestEmitRejectsUnknownTopic(t *testing.T) {
	bus, _ := newBus(t)
	require.Error(t, bus.Emit(context.Background(), "invoice.settled", "", nil))
}

func TestDefaultTopicsAreEmittable(t *testing.T) {
	bus, _ := newBus(t)
	for _, topic := range DefaultTopics() {
		require.NoError(t, bus.Emit(context.Background(), topic, "", nil))
	}
}
