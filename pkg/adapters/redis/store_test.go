package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cogflow/pkg/adapters/redis"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunRunStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))

	require.NoError(t, store.Save(context.Background(), domain.NewRunRecord("r1", "quiz", "main", nil)))
	assert.True(t, mr.Exists("test:r1"))
	assert.True(t, mr.Exists("test:index"))
}

func TestRedisStore_RestoresIntegers(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	run := domain.NewRunRecord("r2", "quiz", "main", map[string]any{"nums": []any{1, 2}})
	run.Outputs = map[string]any{"answer": 3, "score": 0.5}
	require.NoError(t, store.Save(ctx, run))

	loaded, err := store.Load(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, loaded.Inputs["nums"])
	assert.Equal(t, 3, loaded.Outputs["answer"])
	assert.Equal(t, 0.5, loaded.Outputs["score"])
}

func TestRedisStore_TTLExpiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewRunRecord("short", "quiz", "main", nil)))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "short")

	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	// The index is pruned against the wall clock.
	time.Sleep(1200 * time.Millisecond)
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
