package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/storage/kv"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
)

const grace = time.Hour

func reconcileConfig() configs.ReconcileConfig {
	return configs.ReconcileConfig{
		GraceWindow:     grace,
		OpTimeout:       5 * time.Second,
		MetadataTimeout: 5 * time.Second,
		RunTimeout:      time.Minute,
		ReportTTL:       time.Hour,
		ReportLimit:     100,
	}
}

func (e *testEnv) reconciler(open service.Opener, reports kv.Store) *service.Reconciler {
	if open == nil {
		open = e.opener()
	}

	return service.NewReconciler(reconcileConfig(), open, e.blobs, e.remote, reports, nil, e.clock)
}

func (e *testEnv) stray(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(e.blobs.Root(), name)
	require.NoError(t, os.WriteFile(path, []byte("stray"), 0o644))

	return path
}

func TestReconcileRemovesOldLocalOrphan(t *testing.T) {
	env := newEnv(t)

	kept := env.upload(t, "kept.txt", "keep me")
	orphan := env.stray(t, "orphan_x.bin")

	env.clock.Advance(grace + time.Minute)

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{Trigger: service.TriggerManual})
	require.NoError(t, err)

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))

	// 被引用的文件无论多旧都不动
	_, err = os.Stat(kept.LocalPath)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Records)
	assert.Equal(t, 2, rep.LocalFiles)
	assert.Equal(t, 1, rep.LocalOrphansRemoved)
	assert.Zero(t, rep.Failures)
	assert.Len(t, rep.RunID, 26)
	require.Len(t, rep.Orphans, 1)
	assert.True(t, rep.Orphans[0].Removed)
}

func TestReconcileKeepsYoungOrphan(t *testing.T) {
	env := newEnv(t)

	orphan := env.stray(t, "young.bin")

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	_, err = os.Stat(orphan)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SkippedYoung)
	assert.Zero(t, rep.LocalOrphansRemoved)
}

func TestReconcileGraceBoundary(t *testing.T) {
	env := newEnv(t)

	inside := env.stray(t, "inside.bin")
	outside := env.stray(t, "outside.bin")

	now := env.clock.Now()
	require.NoError(t, os.Chtimes(inside, now, now.Add(-grace+time.Second)))
	require.NoError(t, os.Chtimes(outside, now, now.Add(-grace-time.Second)))

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	_, err = os.Stat(inside)
	require.NoError(t, err)

	_, err = os.Stat(outside)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, rep.SkippedYoung)
}

func TestReconcileRemovesRemoteOrphan(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "r.txt", "remote")
	env.replicate(t, rec)

	env.remote.put("stray-object", []byte("x"), env.clock.Now())
	env.clock.Advance(grace + time.Minute)
	env.remote.put("fresh-object", []byte("y"), env.clock.Now())

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	_, ok := env.remote.get("stray-object")
	assert.False(t, ok)

	_, ok = env.remote.get("fresh-object")
	assert.True(t, ok)

	_, ok = env.remote.get(rec.UID + "_r.txt")
	assert.True(t, ok)

	assert.Equal(t, 3, rep.RemoteObjects)
	assert.Equal(t, 1, rep.RemoteOrphansRemoved)
	assert.Equal(t, 1, rep.SkippedYoung)
}

func TestReconcileKeepsObjectOfUnconfirmedRecord(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "u.txt", "unconfirmed")
	// 对象已上传但 remote_url 尚未回写
	env.remote.put(rec.RemoteKey(), []byte("unconfirmed"), env.clock.Now())
	env.clock.Advance(grace + time.Minute)

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	_, ok := env.remote.get(rec.RemoteKey())
	assert.True(t, ok)
	assert.Equal(t, 1, rep.SkippedReferenced)
}

func TestReconcileReportsInconsistentRecord(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "lost.txt", "lost")
	require.NoError(t, os.Remove(rec.LocalPath))

	rep, err := env.reconciler(nil, nil).Run(ctx, service.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.InconsistentCount)
	require.Len(t, rep.Inconsistent, 1)
	assert.Equal(t, rec.UID, rep.Inconsistent[0].UID)

	// 记录不会被删除
	_, err = env.records.GetByUID(ctx, rec.UID)
	require.NoError(t, err)
}

func TestReconcileMetadataFailureAborts(t *testing.T) {
	env := newEnv(t)

	orphan := env.stray(t, "orphan.bin")
	env.remote.put("stray-object", []byte("x"), env.clock.Now())
	env.clock.Advance(grace + time.Minute)

	broken := func(context.Context) (service.ScopedRecords, error) {
		return nil, errors.New("connection refused")
	}

	rep, err := env.reconciler(broken, nil).Run(context.Background(), service.RunOptions{})
	require.Error(t, err)
	require.NotNil(t, rep)
	assert.NotEmpty(t, rep.Error)

	_, err = os.Stat(orphan)
	require.NoError(t, err)

	_, ok := env.remote.get("stray-object")
	assert.True(t, ok)
}

func TestReconcileIsolatesCleanupFailures(t *testing.T) {
	env := newEnv(t)

	env.remote.put("bad", []byte("x"), env.clock.Now())
	env.remote.put("good", []byte("y"), env.clock.Now())
	env.remote.failRemove["bad"] = true
	env.clock.Advance(grace + time.Minute)

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failures)
	assert.Equal(t, 1, rep.RemoteOrphansRemoved)

	_, ok := env.remote.get("good")
	assert.False(t, ok)

	_, ok = env.remote.get("bad")
	assert.True(t, ok)
}

func TestReconcileRemoteListingFailure(t *testing.T) {
	env := newEnv(t)

	orphan := env.stray(t, "orphan.bin")
	env.remote.listErr = errRemoteDown
	env.clock.Advance(grace + time.Minute)

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failures)
	assert.Equal(t, 1, rep.LocalOrphansRemoved)

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}

func TestReconcileDryRun(t *testing.T) {
	env := newEnv(t)

	orphan := env.stray(t, "orphan.bin")
	env.remote.put("stray-object", []byte("x"), env.clock.Now())
	env.clock.Advance(grace + time.Minute)

	rep, err := env.reconciler(nil, nil).Run(context.Background(), service.RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, rep.DryRun)
	assert.Len(t, rep.Orphans, 2)
	assert.Zero(t, rep.LocalOrphansRemoved)
	assert.Zero(t, rep.RemoteOrphansRemoved)

	_, err = os.Stat(orphan)
	require.NoError(t, err)

	_, ok := env.remote.get("stray-object")
	assert.True(t, ok)
}

func TestReconcileCancelled(t *testing.T) {
	env := newEnv(t)

	orphan := env.stray(t, "orphan.bin")
	env.clock.Advance(grace + time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := env.reconciler(nil, nil).Run(ctx, service.RunOptions{})
	require.ErrorIs(t, err, context.Canceled)

	// 发起者拿到部分报告
	require.NotNil(t, rep)
	assert.NotEmpty(t, rep.Error)
	assert.False(t, rep.FinishedAt.IsZero())

	_, err = os.Stat(orphan)
	require.NoError(t, err)
}

func TestReconcileCancelledDuringRun(t *testing.T) {
	env := newEnv(t)
	env.stray(t, "orphan.bin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := env.opener()
	open := func(octx context.Context) (service.ScopedRecords, error) {
		store, err := base(octx)
		cancel()

		return store, err
	}

	r := env.reconciler(open, nil)

	rep, err := r.Run(ctx, service.RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.NotEmpty(t, rep.Error)

	last, err := r.LastReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, last.RunID)
}

func TestReconcileRunIDsAreMonotonic(t *testing.T) {
	env := newEnv(t)
	r := env.reconciler(nil, nil)

	first, err := r.Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	second, err := r.Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	a, err := ulid.Parse(first.RunID)
	require.NoError(t, err)

	b, err := ulid.Parse(second.RunID)
	require.NoError(t, err)

	// 同一毫秒内也递增
	assert.Equal(t, -1, a.Compare(b))
}

// partialBlobs 遍历时把 hidden 当作不可读条目上报.
type partialBlobs struct {
	*local.Store
	hidden string
}

func (p *partialBlobs) Walk(ctx context.Context, fn func(local.Entry) error, onErr func(string, error)) error {
	return p.Store.Walk(ctx, func(e local.Entry) error {
		if filepath.Clean(e.Path) == filepath.Clean(p.hidden) {
			onErr(e.Path, os.ErrPermission)

			return nil
		}

		return fn(e)
	}, onErr)
}

func TestReconcileIncompleteWalkSkipsInconsistency(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "locked.txt", "locked")
	orphan := env.stray(t, "orphan.bin")
	env.clock.Advance(grace + time.Minute)

	blobs := &partialBlobs{Store: env.blobs, hidden: rec.LocalPath}
	r := service.NewReconciler(reconcileConfig(), env.opener(), blobs, env.remote, nil, nil, env.clock)

	rep, err := r.Run(context.Background(), service.RunOptions{})
	require.NoError(t, err)

	assert.Zero(t, rep.InconsistentCount)
	assert.Empty(t, rep.Inconsistent)
	assert.Equal(t, 1, rep.Failures)

	// 孤儿清理照常进行
	assert.Equal(t, 1, rep.LocalOrphansRemoved)
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}

func TestReconcileSingleFlight(t *testing.T) {
	env := newEnv(t)

	var opens atomic.Int32

	release := make(chan struct{})
	base := env.opener()
	slow := func(ctx context.Context) (service.ScopedRecords, error) {
		opens.Add(1)
		<-release

		return base(ctx)
	}

	r := env.reconciler(slow, nil)

	type result struct {
		rep *service.Report
		err error
	}

	results := make(chan result, 2)
	run := func() {
		rep, err := r.Run(context.Background(), service.RunOptions{})
		results <- result{rep, err}
	}

	go run()

	require.Eventually(t, func() bool { return opens.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	go run()

	time.Sleep(50 * time.Millisecond)
	close(release)

	first, second := <-results, <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, first.rep.RunID, second.rep.RunID)
}

func TestReconcileLastReportCached(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	store := kv.NewMemoryKV(env.clock)

	none, err := env.reconciler(nil, store).LastReport(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	rep, err := env.reconciler(nil, store).Run(ctx, service.RunOptions{Trigger: service.TriggerSchedule})
	require.NoError(t, err)

	// 新实例从 KV 读取
	last, err := env.reconciler(nil, store).LastReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, rep.RunID, last.RunID)
	assert.Equal(t, service.TriggerSchedule, last.Trigger)
}
