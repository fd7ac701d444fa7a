package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "challenges:catalog"

// CatalogCache caches the full challenge catalog in Redis and falls back to
// a loader (the Postgres store) on cache miss. The catalog is small and read
// on every session open, so one JSON blob with TTL beats per-row keys.
type CatalogCache struct {
	client *redis.Client
	loader app.ChallengeRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

var _ app.ChallengeRepository = (*CatalogCache)(nil)

func NewCatalogCache(client *redis.Client, loader app.ChallengeRepository, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	if catalog, ok := c.cached(ctx); ok {
		return catalog, nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if catalog, ok := c.cached(ctx); ok {
			return catalog, nil
		}
		catalog, err := c.loader.ListChallenges(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(catalog); err == nil {
			_ = c.client.Set(ctx, catalogKey, data, c.ttlWithJitter()).Err()
		}
		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Challenge), nil
}

func (c *CatalogCache) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	if catalog, ok := c.cached(ctx); ok {
		for _, challenge := range catalog {
			if challenge.ID == id {
				return challenge, nil
			}
		}
	}
	return c.loader.GetChallenge(ctx, id)
}

func (c *CatalogCache) cached(ctx context.Context) ([]domain.Challenge, bool) {
	data, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var catalog []domain.Challenge
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, false
	}
	return catalog, true
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
