package quote

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/okna-market/pricing-api/internal/money"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &Cache{R: client, TTL: time.Minute}, mr
}

func cachedQuote(fingerprint string, validUntil time.Time) Quote {
	total, _ := money.FromString("138.00", "RUB")
	return Quote{
		QuoteID:           uuid.New(),
		ProductTemplateID: "WINDOW-STD",
		Fingerprint:       fingerprint,
		Total:             total,
		CalculatedAt:      validUntil.Add(-15 * time.Minute),
		ValidUntil:        validUntil,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	fp := "WINDOW-STD:abc"
	q := cachedQuote(fp, time.Now().Add(10*time.Minute))
	require.NoError(t, cache.Put(ctx, q))

	got, hit, err := cache.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, q.QuoteID, got.QuoteID)
	require.True(t, q.Total.Equal(got.Total))
}

func TestCacheMissUnknownFingerprint(t *testing.T) {
	cache, _ := newTestCache(t)
	_, hit, err := cache.Get(context.Background(), "WINDOW-STD:missing")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheExpiredQuoteIsMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	fp := "WINDOW-STD:stale"
	require.NoError(t, cache.Put(ctx, cachedQuote(fp, time.Now().Add(-time.Minute))))

	_, hit, err := cache.Get(ctx, fp)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCacheRecachesAfterQuoteValidityLapses(t *testing.T) {
	cache, _ := newTestCache(t)
	cache.TTL = time.Hour
	ctx := context.Background()

	fp := "WINDOW-STD:lapsed"
	require.NoError(t, cache.Put(ctx, cachedQuote(fp, time.Now().Add(-time.Minute))))

	// The lapsed entry reads as a miss and must not block the store-if-absent
	// write of the recomputed quote, even with the Redis TTL far from expiry.
	_, hit, err := cache.Get(ctx, fp)
	require.NoError(t, err)
	require.False(t, hit)

	fresh := cachedQuote(fp, time.Now().Add(10*time.Minute))
	require.NoError(t, cache.Put(ctx, fresh))

	got, hit, err := cache.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, fresh.QuoteID, got.QuoteID)
}

func TestCachePutDoesNotOverwrite(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	fp := "WINDOW-STD:race"
	first := cachedQuote(fp, time.Now().Add(10*time.Minute))
	second := cachedQuote(fp, time.Now().Add(10*time.Minute))
	require.NoError(t, cache.Put(ctx, first))
	require.NoError(t, cache.Put(ctx, second))

	got, hit, err := cache.Get(ctx, fp)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, first.QuoteID, got.QuoteID)
}

func TestCacheEntriesExpireWithTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	fp := "WINDOW-STD:ttl"
	require.NoError(t, cache.Put(ctx, cachedQuote(fp, time.Now().Add(time.Hour))))
	mr.FastForward(2 * time.Minute)

	_, hit, err := cache.Get(ctx, fp)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestEvictByProductTemplateID(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	keep := cachedQuote("DOOR-STD:keep", time.Now().Add(time.Hour))
	keep.ProductTemplateID = "DOOR-STD"
	require.NoError(t, cache.Put(ctx, cachedQuote("WINDOW-STD:a", time.Now().Add(time.Hour))))
	require.NoError(t, cache.Put(ctx, cachedQuote("WINDOW-STD:b", time.Now().Add(time.Hour))))
	require.NoError(t, cache.Put(ctx, keep))

	require.NoError(t, cache.EvictByProductTemplateID(ctx, "WINDOW-STD"))

	_, hit, err := cache.Get(ctx, "WINDOW-STD:a")
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = cache.Get(ctx, "WINDOW-STD:b")
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = cache.Get(ctx, "DOOR-STD:keep")
	require.NoError(t, err)
	require.True(t, hit)
}
