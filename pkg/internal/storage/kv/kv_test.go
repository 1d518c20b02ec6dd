package kv_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/storage/kv"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := kv.NewMemoryKV(clock)

	require.NoError(t, store.Set(ctx, "reconcile:last", []byte("report"), 0))
	require.NoError(t, store.Set(ctx, "reconcile:tmp", []byte("short"), time.Minute))
	require.NoError(t, store.Set(ctx, "other", []byte("x"), 0))

	v, err := store.Get(ctx, "reconcile:last")
	require.NoError(t, err)
	assert.Equal(t, "report", string(v))

	v, err = store.Get(ctx, "reconcile:tmp")
	require.NoError(t, err)
	assert.Equal(t, "short", string(v))

	keys, err := store.Keys(ctx, "reconcile:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"reconcile:last", "reconcile:tmp"}, keys)

	clock.Advance(2 * time.Minute)

	_, err = store.Get(ctx, "reconcile:tmp")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	ok, err := store.Exists(ctx, "reconcile:tmp")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "reconcile:last"))

	keys, err = store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, keys)
}

func TestMemoryKVCopiesValue(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV(nil)

	buf := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestNewClient(t *testing.T) {
	c, err := kv.New(context.Background(), &configs.KVConfig{Type: "memory"})
	require.NoError(t, err)
	assert.Equal(t, kv.KVTypeMemory, c.Type())

	_, err = kv.New(context.Background(), &configs.KVConfig{Type: "etcd"})
	assert.Error(t, err)
}

// 设置 REDIS_ADDR 后运行.
func TestRedisKV(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("set REDIS_ADDR to enable")
	}

	ctx := context.Background()
	store, err := kv.NewRedisKV(ctx, &configs.RedisKVConfig{Addr: addr, Prefix: "syncvault-test:"})
	require.NoError(t, err)

	defer store.Close()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	keys, err := store.Keys(ctx, "k*")
	require.NoError(t, err)
	assert.Contains(t, keys, "k")

	require.NoError(t, store.Delete(ctx, "k"))

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

// 设置 NATS_URL（需开启 JetStream）后运行.
func TestNATSKV(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("set NATS_URL to enable")
	}

	ctx := context.Background()
	store, err := kv.NewNATSKV(ctx, &configs.NATSKVConfig{URL: url, Bucket: "syncvault-test"})
	require.NoError(t, err)

	defer store.Close()

	require.NoError(t, store.Set(ctx, "reconcile.last", []byte("report"), 0))
	require.NoError(t, store.Set(ctx, "reconcile.gone", []byte("x"), time.Millisecond))

	time.Sleep(5 * time.Millisecond)

	v, err := store.Get(ctx, "reconcile.last")
	require.NoError(t, err)
	assert.Equal(t, "report", string(v))

	_, err = store.Get(ctx, "reconcile.gone")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	keys, err := store.Keys(ctx, "reconcile.*")
	require.NoError(t, err)
	assert.Equal(t, []string{"reconcile.last"}, keys)

	require.NoError(t, store.Delete(ctx, "reconcile.last"))
	require.NoError(t, store.Delete(ctx, "reconcile.last"))

	ok, err := store.Exists(ctx, "reconcile.last")
	require.NoError(t, err)
	assert.False(t, ok)
}

func BenchmarkMemoryKV(b *testing.B) {
	ctx := context.Background()
	store := kv.NewMemoryKV(nil)
	val := []byte("value")

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = store.Set(ctx, "bench", val, time.Minute)
			_, _ = store.Get(ctx, "bench")
		}
	})
}
