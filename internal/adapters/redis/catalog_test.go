package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnem/agentgraph/internal/adapters/redis"
	"github.com/arcnem/agentgraph/pkg/graph"
)

type countingSource struct {
	models []graph.Model
	tools  []graph.Tool
	calls  int
}

func (s *countingSource) Models(context.Context) ([]graph.Model, error) {
	s.calls++
	return s.models, nil
}

func (s *countingSource) Tools(context.Context) ([]graph.Tool, error) {
	s.calls++
	return s.tools, nil
}

func TestCatalogCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	source := &countingSource{
		models: []graph.Model{{ID: "m1", Provider: "openai", Name: "gpt-4o-mini"}},
		tools:  []graph.Tool{{ID: "t1", Name: "frame_lookup", InputFields: []string{"url"}}},
	}
	cache := redis.NewFromClient(client, source, redis.WithTTL(time.Minute))
	ctx := context.Background()

	models, err := cache.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, source.models, models)
	assert.Equal(t, 1, source.calls)

	// Second read is served from the cache.
	models, err = cache.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, source.models, models)
	assert.Equal(t, 1, source.calls)

	tools, err := cache.Tools(ctx)
	require.NoError(t, err)
	assert.Equal(t, source.tools, tools)
	assert.Equal(t, 2, source.calls)

	// Expiry refetches.
	mr.FastForward(2 * time.Minute)
	_, err = cache.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

func TestCatalogCache_Invalidate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	source := &countingSource{models: []graph.Model{{ID: "m1"}}}
	cache := redis.NewFromClient(client, source)
	ctx := context.Background()

	_, err = cache.Models(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))

	_, err = cache.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCatalogCache_CorruptEntryIsAMiss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	source := &countingSource{models: []graph.Model{{ID: "m1"}}}
	cache := redis.NewFromClient(client, source, redis.WithPrefix("test:"))

	require.NoError(t, mr.Set("test:models", "{not json"))

	models, err := cache.Models(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 1)
	assert.Equal(t, 1, source.calls)
}
