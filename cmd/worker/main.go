package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/okna-market/pricing-api/internal/config"
	"github.com/okna-market/pricing-api/internal/events"
	"github.com/okna-market/pricing-api/internal/notify"
	"github.com/okna-market/pricing-api/internal/obs"
	"github.com/okna-market/pricing-api/internal/queue"
	"github.com/okna-market/pricing-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var sender *notify.WebhookSender
	if cfg.WebhookURL != "" {
		sender = &notify.WebhookSender{
			URL:    cfg.WebhookURL,
			Secret: cfg.WebhookSecret,
			HTTP: &resilience.HTTPClient{
				Client:      notify.HTTPClient(cfg.WebhookTimeout),
				Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("webhook-delivery").WithLogger(logger),
				BaseBackoff: cfg.QueueRetryBase,
				MaxAttempts: 3,
				Jitter:      0.2,
			},
			Logger: logger,
		}
	}

	worker := queue.Worker{
		R:           redisClient,
		Prefix:      cfg.QueuePrefix,
		Kind:        "quote:calculated",
		Concurrency: cfg.QueueConcurrency,
		RetryBase:   cfg.QueueRetryBase,
		RetryJitter: 0.2,
		Logger:      &logger,
		Handler: func(jobCtx context.Context, task queue.Task) error {
			return handleQuoteCalculated(jobCtx, logger, sender, task)
		},
	}

	logger.Info().Msg("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

func handleQuoteCalculated(ctx context.Context, logger zerolog.Logger, sender *notify.WebhookSender, task queue.Task) error {
	var ev events.QuoteCalculatedEvent
	if err := json.Unmarshal(task.Payload, &ev); err != nil {
		// Undecodable payloads would never succeed; drop instead of retrying.
		logger.Error().Err(err).Msg("drop undecodable quote event")
		return nil
	}
	logger.Info().
		Str("quote_id", ev.QuoteID).
		Str("product_template_id", ev.ProductTemplateID).
		Str("total", ev.Total).
		Str("currency", ev.Currency).
		Bool("from_cache", ev.FromCache).
		Msg("quote calculated")

	if sender == nil {
		return nil
	}
	return sender.Send(ctx, events.TopicQuoteCalculated, ev.QuoteID, task.Payload)
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}
