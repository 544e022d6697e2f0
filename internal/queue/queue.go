package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
}

type taskMessage struct {
	Kind        string          `json:"kind"`
	Key         string          `json:"key,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"maxAttempts"`
	AvailableAt int64           `json:"availableAt"`
}

// Enqueuer publishes tasks to Redis-backed delayed queues (sorted sets scored
// by availability time).
type Enqueuer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Enqueue inserts the task. With an idempotency key the task is enqueued at
// most once per deduplication window.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return errors.New("queue: redis client not configured")
	}
	kind := sanitizeKind(t.Kind)
	if kind == "" {
		return errors.New("queue: task kind is required")
	}
	msg := taskMessage{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		MaxAttempts: t.MaxAttempts,
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = 10
	}
	msg.AvailableAt = time.Now().Add(t.Delay).UnixNano()

	if msg.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, e.dedupKey(kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.R.ZAdd(ctx, e.queueKey(kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

func (e Enqueuer) queueKey(kind string) string {
	return prefixed(e.Prefix, "queue:"+kind)
}

func (e Enqueuer) dedupKey(kind, key string) string {
	return prefixed(e.Prefix, fmt.Sprintf("dedup:%s:%s", kind, key))
}

func prefixed(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + ":" + suffix
}

func sanitizeKind(kind string) string {
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == ':':
		default:
			return ""
		}
	}
	return kind
}

// Worker consumes tasks of a single kind.
type Worker struct {
	R           *redis.Client
	Prefix      string
	Kind        string
	Concurrency int
	RetryBase   time.Duration
	RetryJitter float64
	Logger      *zerolog.Logger
	Handler     func(context.Context, Task) error
}

// Run processes tasks until the context is cancelled.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return errors.New("queue: worker kind is required")
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	retryBase := w.RetryBase
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}
	queueKey := prefixed(w.Prefix, "queue:"+kind)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		res, err := w.R.ZPopMin(ctx, queueKey, 1).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				wg.Wait()
				return nil
			}
			if err == redis.Nil {
				sleepCtx(ctx, 100*time.Millisecond)
				continue
			}
			return err
		}
		if len(res) == 0 {
			sleepCtx(ctx, 100*time.Millisecond)
			continue
		}
		member, ok := res[0].Member.(string)
		if !ok {
			continue
		}
		var msg taskMessage
		if err := json.Unmarshal([]byte(member), &msg); err != nil {
			if w.Logger != nil {
				w.Logger.Error().Err(err).Str("kind", kind).Msg("drop undecodable task")
			}
			continue
		}
		if now := time.Now().UnixNano(); msg.AvailableAt > now {
			// Not due yet: push back and wait out the gap (capped).
			w.pushBack(ctx, queueKey, member, msg.AvailableAt)
			gap := time.Duration(msg.AvailableAt - now)
			if gap > time.Second {
				gap = time.Second
			}
			sleepCtx(ctx, gap)
			continue
		}

		msg.Attempt++
		sem <- struct{}{}
		wg.Add(1)
		go func(m taskMessage) {
			defer func() { <-sem }()
			defer wg.Done()
			err := w.Handler(ctx, Task{Kind: kind, Payload: m.Payload, IdempotencyKey: m.Key})
			if err != nil {
				w.retry(ctx, queueKey, m, retryBase)
			}
		}(msg)
	}
}

// pushBack re-inserts a popped task that is not due yet. The pop already
// removed the member, so a failed re-insert loses the task; that is worth a
// loud log even though nothing else can be done about it here.
func (w Worker) pushBack(ctx context.Context, queueKey, member string, availableAt int64) {
	err := w.R.ZAdd(ctx, queueKey, redis.Z{Score: float64(availableAt), Member: member}).Err()
	if err != nil && w.Logger != nil {
		w.Logger.Error().Err(err).Str("queue", queueKey).Msg("push back not-due task")
	}
}

func (w Worker) retry(ctx context.Context, queueKey string, msg taskMessage, base time.Duration) {
	if msg.MaxAttempts > 0 && msg.Attempt >= msg.MaxAttempts {
		raw, err := json.Marshal(msg)
		if err != nil {
			return
		}
		_ = w.R.LPush(ctx, prefixed(w.Prefix, "dlq:"+msg.Kind), raw).Err()
		if w.Logger != nil {
			w.Logger.Error().Str("kind", msg.Kind).Int("attempts", msg.Attempt).Msg("task moved to dlq")
		}
		return
	}
	msg.AvailableAt = time.Now().Add(backoff(base, msg.Attempt, w.RetryJitter)).UnixNano()
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = w.R.ZAdd(ctx, queueKey, redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

// backoff grows exponentially with attempt and applies proportional jitter.
func backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base << uint(attempt-1)
	if d > time.Minute {
		d = time.Minute
	}
	if jitter > 0 {
		spread := float64(d) * jitter
		d += time.Duration(rand.Float64()*2*spread - spread)
		if d < 0 {
			d = base
		}
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
