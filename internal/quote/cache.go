package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "quote:"

// Cache stores computed quotes in Redis keyed by fingerprint. TTL expiry is
// passive: a stale entry is simply not returned. Put uses store-if-absent so
// two identical concurrent calculations do not overwrite each other; whichever
// lands first wins and both results are equivalent.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
	Now func() time.Time
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func cacheKey(fingerprint string) string {
	return cacheKeyPrefix + fingerprint
}

// Get returns the cached quote for the fingerprint when present and still
// valid. An entry whose ValidUntil has passed is treated as a miss and deleted,
// so Put's store-if-absent can land the recomputed quote before the Redis TTL
// would have reclaimed the key.
func (c *Cache) Get(ctx context.Context, fingerprint string) (Quote, bool, error) {
	if c == nil || c.R == nil {
		return Quote{}, false, nil
	}
	data, err := c.R.Get(ctx, cacheKey(fingerprint)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Quote{}, false, nil
		}
		return Quote{}, false, err
	}
	var cached Quote
	if err := json.Unmarshal(data, &cached); err != nil {
		return Quote{}, false, fmt.Errorf("quote cache: decode %s: %w", fingerprint, err)
	}
	if cached.Expired(c.now()) {
		_ = c.R.Del(ctx, cacheKey(fingerprint)).Err()
		return Quote{}, false, nil
	}
	return cached, true, nil
}

// Put stores the quote under its fingerprint with the cache TTL.
func (c *Cache) Put(ctx context.Context, q Quote) error {
	if c == nil || c.R == nil {
		return nil
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("quote cache: encode %s: %w", q.Fingerprint, err)
	}
	return c.R.SetNX(ctx, cacheKey(q.Fingerprint), data, ttl).Err()
}

// EvictByProductTemplateID drops every cached quote for the template. The
// fingerprint starts with the template id, so the keys share a scannable
// prefix.
func (c *Cache) EvictByProductTemplateID(ctx context.Context, productTemplateID string) error {
	if c == nil || c.R == nil {
		return nil
	}
	pattern := cacheKeyPrefix + productTemplateID + ":*"
	var cursor uint64
	for {
		keys, next, err := c.R.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("quote cache: scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.R.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("quote cache: delete %d keys: %w", len(keys), err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
