package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "payfast:1089250:COMPLETE", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "payfast:1089250:COMPLETE", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		processed, err := store.IsProcessed(ctx, "payfast:1089250:COMPLETE")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("expired claims can be taken again", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }

		ok, _ := store.MarkProcessed(ctx, "short", time.Minute)
		assert.True(t, ok)

		now = now.Add(2 * time.Minute)
		ok, _ = store.MarkProcessed(ctx, "short", time.Minute)
		assert.True(t, ok)

		now = now.Add(2 * time.Minute)
		store.cleanup()
		processed, _ := store.IsProcessed(ctx, "short")
		assert.False(t, processed)
	})

	t.Run("release allows a retry", func(t *testing.T) {
		ok, _ := store.MarkProcessed(ctx, "retry-me", time.Hour)
		require.True(t, ok)
		require.NoError(t, store.Release(ctx, "retry-me"))
		ok, _ = store.MarkProcessed(ctx, "retry-me", time.Hour)
		assert.True(t, ok)
	})
}

func TestInMemoryIdempotencyStore_Concurrent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkProcessed(context.Background(), "same-key", time.Hour); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestSessionFlagStore(t *testing.T) {
	mem := NewInMemoryIdempotencyStore()
	defer mem.Close()
	flags := NewSessionFlagStore(mem, time.Hour)
	ctx := context.Background()

	first, err := flags.MarkShown(ctx, "sess-1", reset.Level3Days)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := flags.MarkShown(ctx, "sess-1", reset.Level3Days)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := flags.MarkShown(ctx, "sess-2", reset.Level3Days)
	require.NoError(t, err)
	assert.True(t, other, "flags are per session")

	nextLevel, err := flags.MarkShown(ctx, "sess-1", reset.Level1Day)
	require.NoError(t, err)
	assert.True(t, nextLevel, "flags are per level")
}

func TestNewStores_InMemoryWhenRedisNotConfigured(t *testing.T) {
	stores, err := NewStores(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	defer stores.Close()

	assert.Nil(t, stores.Client)
	assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)
}

func TestNewStores_NoFallback(t *testing.T) {
	// nothing listens on port 1
	_, err := NewStores(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: 1}, WithInMemoryFallback(false))
	assert.Error(t, err)
}
