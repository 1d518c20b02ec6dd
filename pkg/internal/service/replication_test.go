package service_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/internal/service"
)

func TestReplicateSetsRemoteURL(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "a.txt", "0123456789")
	env.replicate(t, rec)

	stored, err := env.records.GetByUID(ctx, rec.UID)
	require.NoError(t, err)
	require.NotNil(t, stored.RemoteURL)
	assert.Equal(t, "http://remote.test/bucket/"+rec.UID+"_a.txt", *stored.RemoteURL)

	obj, ok := env.remote.get(rec.UID + "_a.txt")
	require.True(t, ok)
	assert.Equal(t, "0123456789", string(obj.data))
	assert.Equal(t, "text/plain", obj.contentType)

	// 本地副本保留
	_, err = os.Stat(rec.LocalPath)
	require.NoError(t, err)

	// 再次执行被跳过
	env.replicate(t, rec)
	assert.Equal(t, 1, env.remote.puts())
	assert.EqualValues(t, 1, env.repl.Stats().Skipped)
}

func TestReplicatorWorkers(t *testing.T) {
	env := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.repl.Start(ctx)

	rec := env.upload(t, "w.txt", "worker")

	assert.Eventually(t, func() bool {
		stored, err := env.records.GetByUID(ctx, rec.UID)

		return err == nil && stored.RemoteURL != nil
	}, 5*time.Second, 10*time.Millisecond)

	stats := env.repl.Stats()
	assert.True(t, stats.Running)
	assert.EqualValues(t, 1, stats.Succeeded)
}

func TestReplicateRetryThenSucceed(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "retry.txt", "retry")

	env.remote.mu.Lock()
	env.remote.failPuts = 2
	env.remote.mu.Unlock()

	env.replicate(t, rec)

	assert.Equal(t, 3, env.remote.puts())

	stored, err := env.records.GetByUID(context.Background(), rec.UID)
	require.NoError(t, err)
	assert.NotNil(t, stored.RemoteURL)
	assert.Zero(t, stored.ReplicationAttempts)
}

func TestReplicateFailureIsRecorded(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "down.txt", "down")

	env.remote.mu.Lock()
	env.remote.failPuts = 100
	env.remote.mu.Unlock()

	err := env.repl.Replicate(ctx, service.ReplicationTask{UID: rec.UID, LocalPath: rec.LocalPath})
	require.ErrorIs(t, err, service.ErrReplication)
	require.ErrorIs(t, err, errRemoteDown)

	var rerr *service.ReplicationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 3, rerr.Attempts)
	assert.Equal(t, 3, env.remote.puts())

	stored, err := env.records.GetByUID(ctx, rec.UID)
	require.NoError(t, err)
	assert.Nil(t, stored.RemoteURL)
	assert.Equal(t, 1, stored.ReplicationAttempts)
	assert.Contains(t, stored.LastReplicationError, "remote down")

	// 上传本身不受影响
	_, err = env.files.Get(ctx, rec.UID)
	require.NoError(t, err)
}

func TestReplicateMissingFileIsPermanent(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "lost.txt", "lost")
	require.NoError(t, os.Remove(rec.LocalPath))

	err := env.repl.Replicate(context.Background(), service.ReplicationTask{UID: rec.UID, LocalPath: rec.LocalPath})
	require.ErrorIs(t, err, service.ErrMissingOnDisk)
	assert.Zero(t, env.remote.puts())
}

func TestReplicateDeletedRecordIsNoop(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "del.txt", "x")
	require.NoError(t, env.files.Delete(context.Background(), rec.UID))

	require.NoError(t, env.repl.Replicate(context.Background(), service.ReplicationTask{UID: rec.UID, LocalPath: rec.LocalPath}))
	assert.Zero(t, env.remote.puts())
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	env := newEnv(t)

	cfg := replicationConfig()
	cfg.QueueSize = 1
	repl := service.NewReplicator(cfg, env.records, env.blobs, env.remote, nil, env.clock)

	assert.True(t, repl.Enqueue(service.ReplicationTask{UID: "a"}))
	assert.False(t, repl.Enqueue(service.ReplicationTask{UID: "b"}))

	stats := repl.Stats()
	assert.Equal(t, 1, stats.Depth)
	assert.Equal(t, 1, stats.Capacity)
	assert.EqualValues(t, 1, stats.Dropped)

	repl.Stop()
	assert.False(t, repl.Enqueue(service.ReplicationTask{UID: "c"}))
	assert.EqualValues(t, 2, repl.Stats().Dropped)
}

func TestRequeue(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	cfg := replicationConfig()
	repl := service.NewReplicator(cfg, env.records, env.blobs, env.remote, nil, env.clock)

	fresh := env.upload(t, "fresh.txt", "1")
	failed := env.upload(t, "failed.txt", "2")
	done := env.upload(t, "done.txt", "3")
	env.replicate(t, done)

	for range cfg.MaxRequeues {
		require.NoError(t, env.records.MarkReplicationFailure(ctx, failed.UID, "boom"))
	}

	// 还没超过 requeue_after
	res, err := repl.Requeue(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)

	env.clock.Advance(cfg.RequeueAfter + time.Minute)

	res, err = repl.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.RequeueResult{Scanned: 1, Enqueued: 1}, res)
	assert.Equal(t, 1, repl.Stats().Depth)

	require.NoError(t, repl.Replicate(ctx, service.ReplicationTask{UID: fresh.UID, LocalPath: fresh.LocalPath}))

	stored, err := env.records.GetByUID(ctx, fresh.UID)
	require.NoError(t, err)
	assert.NotNil(t, stored.RemoteURL)
}
