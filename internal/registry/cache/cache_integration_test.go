//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"provenance/internal/registry"
	"provenance/internal/registry/cache"
)

type RecordCacheSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	cache     *cache.RecordCache
}

func TestRecordCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RecordCacheSuite))
}

func (s *RecordCacheSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	addr, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(addr)
	s.Require().NoError(err)
	s.client = redis.NewClient(opts)
	s.Require().NoError(s.client.Ping(ctx).Err())

	s.cache = cache.New(s.client, time.Minute)
}

func (s *RecordCacheSuite) TearDownSuite() {
	ctx := context.Background()
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(ctx)
	}
}

func (s *RecordCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RecordCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	rec := &registry.ContentRecord{Fingerprint: "ipfs:QmA", Owner: "alice"}

	_, ok := s.cache.Get(ctx, 1)
	s.False(ok)

	s.cache.Set(ctx, 1, rec)

	got, ok := s.cache.Get(ctx, 1)
	s.Require().True(ok)
	s.Equal(rec.Fingerprint, got.Fingerprint)
	s.Equal(rec.Owner, got.Owner)
}

func (s *RecordCacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.cache.Set(ctx, 1, &registry.ContentRecord{Fingerprint: "ipfs:QmA", Owner: "alice"})

	s.Require().NoError(s.cache.Invalidate(ctx, 1))

	_, ok := s.cache.Get(ctx, 1)
	s.False(ok)
}

func (s *RecordCacheSuite) TestNilCacheIsNoOp() {
	ctx := context.Background()
	var nilCache *cache.RecordCache

	_, ok := nilCache.Get(ctx, 1)
	s.False(ok)
	nilCache.Set(ctx, 1, &registry.ContentRecord{})
	s.Require().NoError(nilCache.Invalidate(ctx, 1))
}
