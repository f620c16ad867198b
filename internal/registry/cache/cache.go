package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"provenance/internal/registry"
)

// RecordCache is a Redis read-through cache for content lookups. Records are
// immutable except for ownership, so entries only need invalidating on
// transfer. A nil *RecordCache is a no-op, matching how the rest of the
// codebase treats optional infrastructure.
type RecordCache struct {
	client *redis.Client
	ttl    time.Duration
}

const keyPrefix = "provenance:content:"

func New(client *redis.Client, ttl time.Duration) *RecordCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RecordCache{client: client, ttl: ttl}
}

type cachedRecord struct {
	Fingerprint string `json:"fingerprint"`
	Owner       string `json:"owner"`
}

// Get returns the cached record and true on a hit. Redis failures degrade to
// a miss; the store remains the source of truth.
func (c *RecordCache) Get(ctx context.Context, id registry.ContentID) (*registry.ContentRecord, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var cached cachedRecord
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	return &registry.ContentRecord{
		Fingerprint: registry.Fingerprint(cached.Fingerprint),
		Owner:       registry.Principal(cached.Owner),
	}, true
}

// Set stores a record under its id. Errors are swallowed deliberately: a
// cache write failure must never fail a read.
func (c *RecordCache) Set(ctx context.Context, id registry.ContentID, rec *registry.ContentRecord) {
	if c == nil || rec == nil {
		return
	}
	payload, err := json.Marshal(cachedRecord{
		Fingerprint: string(rec.Fingerprint),
		Owner:       string(rec.Owner),
	})
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(id), payload, c.ttl).Err()
}

// Invalidate drops the cached record after an ownership transfer.
func (c *RecordCache) Invalidate(ctx context.Context, id registry.ContentID) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate content cache: %w", err)
	}
	return nil
}

func key(id registry.ContentID) string {
	return fmt.Sprintf("%s%d", keyPrefix, uint64(id))
}
