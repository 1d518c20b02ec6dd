package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/cache"
	"github.com/yeisme/syncvault/pkg/internal/storage/kv"
)

type sweepSummary struct {
	RunID   string    `json:"run_id"`
	Removed int       `json:"removed"`
	At      time.Time `json:"at"`
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c := cache.New(kv.NewMemoryKV(nil), "reconcile.")

	in := sweepSummary{RunID: "01J", Removed: 3, At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, cache.Set(ctx, c, "last", in, time.Hour))

	out, err := cache.Get[sweepSummary](ctx, c, "last")
	require.NoError(t, err)
	assert.Equal(t, in.RunID, out.RunID)
	assert.Equal(t, in.Removed, out.Removed)
	assert.True(t, in.At.Equal(out.At))

	ok, err := c.Exists(ctx, "last")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMiss(t *testing.T) {
	c := cache.New(kv.NewMemoryKV(nil), "x:")

	_, err := cache.Get[sweepSummary](context.Background(), c, "nope")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	c := cache.New(kv.NewMemoryKV(nil), "x:")
	calls := 0

	getter := func() (int, error) {
		calls++

		return 42, nil
	}

	for range 3 {
		v, err := cache.GetOrSet(ctx, c, "answer", getter, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}

	assert.Equal(t, 1, calls)

	_, err := cache.GetOrSet(ctx, c, "broken", func() (int, error) { return 0, errors.New("db down") }, time.Minute)
	assert.Error(t, err)
}

func TestNamespaceKeysAndClear(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV(nil)
	a := cache.New(store, "a:")
	b := cache.New(store, "b:")

	require.NoError(t, cache.Set(ctx, a, "1", 1, 0))
	require.NoError(t, cache.Set(ctx, a, "2", 2, 0))
	require.NoError(t, cache.Set(ctx, b, "1", 1, 0))

	keys, err := a.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, keys)

	require.NoError(t, a.Clear(ctx))

	keys, err = a.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	ok, err := b.Exists(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
}
