package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/model"
	"github.com/redis/go-redis/v9"
)

// CachedProvider puts a redis cache in front of reverse geocoding. Keys are
// coordinates quantised to ~1 metre so repeated lookups of the same drawn
// marker hit the cache. Redis being down or absent degrades to direct
// provider calls; cache errors are never surfaced to the caller.
//
// Forward place search is not cached: queries are free text and the caller
// already debounces them.
type CachedProvider struct {
	inner Provider
	rdb   *redis.Client
	ttl   time.Duration
	log   logging.Logger
}

// NewCachedProvider wraps inner with a redis cache. A nil client disables
// caching entirely.
func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration, log logging.Logger) *CachedProvider {
	if log == nil {
		log = logging.Noop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedProvider{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(p model.Point) string {
	return fmt.Sprintf("revgeo:%.5f:%.5f", p.Lat, p.Lon)
}

// ReverseGeocode serves from redis when possible, falling through to the
// wrapped provider and populating the cache on success.
func (c *CachedProvider) ReverseGeocode(ctx context.Context, p model.Point) (model.Address, error) {
	key := cacheKey(p)
	if c.rdb != nil {
		if s, err := c.rdb.Get(ctx, key).Result(); err == nil && s != "" {
			var addr model.Address
			if err := json.Unmarshal([]byte(s), &addr); err == nil {
				c.log.Debug(ctx, "geocode cache hit", logging.String("key", key))
				return addr, nil
			}
		}
	}

	addr, err := c.inner.ReverseGeocode(ctx, p)
	if err != nil {
		return addr, err
	}

	if c.rdb != nil {
		if b, err := json.Marshal(addr); err == nil {
			if err := c.rdb.Set(ctx, key, string(b), c.ttl).Err(); err != nil {
				c.log.Warn(ctx, "geocode cache write failed", logging.Err(err))
			}
		}
	}
	return addr, nil
}

// SearchPlaces delegates straight to the wrapped provider.
func (c *CachedProvider) SearchPlaces(ctx context.Context, query, nearCity string) ([]model.PlaceCandidate, error) {
	return c.inner.SearchPlaces(ctx, query, nearCity)
}
