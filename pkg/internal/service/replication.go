package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/model"
	"github.com/yeisme/syncvault/pkg/internal/storage/db"
	nlog "github.com/yeisme/syncvault/pkg/log"
	"github.com/yeisme/syncvault/pkg/metrics"
	"github.com/yeisme/syncvault/pkg/queue"
	"github.com/yeisme/syncvault/pkg/tracing"
)

// bookkeepingTimeout 失败记账使用的超时，不受任务 ctx 取消影响.
const bookkeepingTimeout = 5 * time.Second

// ReplicationTask 复制任务.
type ReplicationTask struct {
	UID       string
	LocalPath string
}

// ReplicationStats 复制队列状态.
type ReplicationStats struct {
	Running   bool   `json:"running"`
	Workers   int    `json:"workers"`
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
	Dropped   uint64 `json:"dropped"`
}

// RequeueResult 一次重新入队扫描的结果.
type RequeueResult struct {
	Scanned  int `json:"scanned"`
	Enqueued int `json:"enqueued"`
	Dropped  int `json:"dropped"`
}

// Replicator 有界队列 + 固定 worker 池，把本地文件复制到远端.
// 队列满或已停止时任务被丢弃，记录保持 remote_url 为空，由重新入队扫描补偿.
type Replicator struct {
	cfg     configs.ReplicationConfig
	records RecordStore
	blobs   BlobStore
	remote  ObjectStore
	events  *queue.Emitter
	clock   clockwork.Clock
	log     zerolog.Logger

	tasks chan ReplicationTask

	mu      sync.RWMutex
	running bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	succeeded atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	dropped   atomic.Uint64
}

// NewReplicator 创建复制器；clock 为 nil 时使用真实时钟.
func NewReplicator(
	cfg configs.ReplicationConfig,
	records RecordStore,
	blobs BlobStore,
	remote ObjectStore,
	events *queue.Emitter,
	clock clockwork.Clock,
) *Replicator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if cfg.QueueSize < 1 {
		cfg.QueueSize = configs.DefaultReplicationQueueSize
	}

	if cfg.Workers < 1 {
		cfg.Workers = configs.DefaultReplicationWorkers
	}

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = configs.DefaultReplicationTimeout
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = configs.DefaultReplicationBackoff
	}

	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &Replicator{
		cfg:     cfg,
		records: records,
		blobs:   blobs,
		remote:  remote,
		events:  events,
		clock:   clock,
		log:     nlog.Component("replication"),
		tasks:   make(chan ReplicationTask, cfg.QueueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start 启动 worker；ctx 取消或 Stop 后 worker 退出.
func (r *Replicator) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.stopped {
		return
	}

	r.running = true

	for i := range r.cfg.Workers {
		r.wg.Add(1)

		go r.worker(ctx, i)
	}

	r.log.Info().Int("workers", r.cfg.Workers).Int("queue_size", r.cfg.QueueSize).Msg("replication workers started")
}

// Stop 停止接收任务并等待 worker 退出；队列中剩余任务被放弃.
func (r *Replicator) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()

		return
	}

	r.stopped = true
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()

	if n := len(r.tasks); n > 0 {
		r.log.Warn().Int("abandoned", n).Msg("replication queue abandoned on shutdown")
	}
}

// Enqueue 非阻塞投递；队列满或已停止时丢弃并返回 false.
func (r *Replicator) Enqueue(task ReplicationTask) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.stopped {
		select {
		case r.tasks <- task:
			metrics.ReplicationQueueDepth.Set(float64(len(r.tasks)))

			return true
		default:
		}
	}

	r.dropped.Add(1)
	metrics.ReplicationTasks.WithLabelValues(metrics.ResultDropped).Inc()
	r.log.Warn().
		Str("uid", task.UID).
		Bool("stopped", r.stopped).
		Int("capacity", cap(r.tasks)).
		Msg("replication queue full, task dropped")

	return false
}

// Stats 返回队列状态.
func (r *Replicator) Stats() ReplicationStats {
	r.mu.RLock()
	running := r.running
	r.mu.RUnlock()

	return ReplicationStats{
		Running:   running,
		Workers:   r.cfg.Workers,
		Depth:     len(r.tasks),
		Capacity:  cap(r.tasks),
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
		Skipped:   r.skipped.Load(),
		Dropped:   r.dropped.Load(),
	}
}

func (r *Replicator) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	log := r.log.With().Int("worker", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case task := <-r.tasks:
			metrics.ReplicationQueueDepth.Set(float64(len(r.tasks)))

			if err := r.Replicate(ctx, task); err != nil {
				log.Error().Err(err).Str("uid", task.UID).Msg("replication failed")
			}
		}
	}
}

// Replicate 执行单个复制任务：上传本地文件并回写 remote_url.
// 记录已删除或已复制时直接返回 nil.
func (r *Replicator) Replicate(ctx context.Context, task ReplicationTask) (err error) {
	ctx, span := tracing.StartSpan(ctx, "replication.task",
		trace.WithAttributes(attribute.String("file.uid", task.UID)))
	defer func() { tracing.EndSpan(span, err) }()

	start := r.clock.Now()

	rec, err := r.records.GetByUID(ctx, task.UID)
	if errors.Is(err, db.ErrNotFound) {
		r.skip(task.UID, "record deleted before replication")

		return nil
	}

	if err != nil {
		r.failed.Add(1)
		metrics.ReplicationTasks.WithLabelValues(metrics.ResultFailure).Inc()

		return &ReplicationError{UID: task.UID, Err: fmt.Errorf("load record: %w", err)}
	}

	if rec.Replicated() {
		r.skip(task.UID, "already replicated")

		return nil
	}

	key := rec.RemoteKey()
	attempts := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++

		return struct{}{}, r.upload(ctx, rec, key)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(r.cfg.WorstCase()),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.Warn().Err(err).Str("uid", rec.UID).Int("attempt", attempts).Dur("retry_in", next).Msg("replication attempt failed")
		}),
	)

	metrics.ReplicationDuration.Observe(r.clock.Since(start).Seconds())

	if err != nil {
		return r.fail(ctx, rec, attempts, err)
	}

	url := r.remote.ObjectURL(key)

	updated, err := r.records.SetRemoteURL(ctx, rec.UID, url)
	if err != nil {
		// 对象已上传，下次重新入队会覆盖同名对象后再回写
		return r.fail(ctx, rec, attempts, fmt.Errorf("write remote url: %w", err))
	}

	r.succeeded.Add(1)
	metrics.ReplicationTasks.WithLabelValues(metrics.ResultSuccess).Inc()

	if !updated {
		r.log.Info().Str("uid", rec.UID).Str("key", key).Msg("record gone after upload, object left for reconciliation")

		return nil
	}

	rec.RemoteURL = &url
	r.events.FileReplicated(ctx, fileRef(rec))
	r.log.Debug().Str("uid", rec.UID).Str("url", url).Int("attempts", attempts).Msg("file replicated")

	return nil
}

// upload 单次上传尝试，受 replication.timeout 限制.
func (r *Replicator) upload(ctx context.Context, rec *model.FileRecord, key string) error {
	f, err := r.blobs.Open(rec.LocalPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrMissingOnDisk, rec.LocalPath))
		}

		return fmt.Errorf("open %s: %w", rec.LocalPath, err)
	}
	defer f.Close()

	info, err := r.blobs.Stat(rec.LocalPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", rec.LocalPath, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	return r.remote.Put(attemptCtx, key, f, info.Size(), rec.ContentType)
}

func (r *Replicator) skip(uid, reason string) {
	r.skipped.Add(1)
	metrics.ReplicationTasks.WithLabelValues(metrics.ResultSkipped).Inc()
	r.log.Debug().Str("uid", uid).Msg(reason)
}

// fail 记录最终失败；停机导致的取消不计入失败次数.
func (r *Replicator) fail(ctx context.Context, rec *model.FileRecord, attempts int, cause error) error {
	r.failed.Add(1)
	metrics.ReplicationTasks.WithLabelValues(metrics.ResultFailure).Inc()

	rerr := &ReplicationError{UID: rec.UID, Attempts: attempts, Err: cause}

	if ctx.Err() != nil {
		return rerr
	}

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	if err := r.records.MarkReplicationFailure(bctx, rec.UID, cause.Error()); err != nil {
		r.log.Error().Err(err).Str("uid", rec.UID).Msg("record replication failure")
	}

	r.events.ReplicationFailed(ctx, queue.ReplicationFailedPayload{
		File:     fileRef(rec),
		Attempts: rec.ReplicationAttempts + 1,
		Error:    cause.Error(),
	})

	return rerr
}

// Requeue 把创建时间早于 requeue_after 且未复制的记录重新投递.
func (r *Replicator) Requeue(ctx context.Context) (RequeueResult, error) {
	var res RequeueResult

	before := r.clock.Now().Add(-r.cfg.RequeueAfter)

	recs, err := r.records.ListUnreplicated(ctx, before, r.cfg.MaxRequeues, r.cfg.RequeueBatch)
	if err != nil {
		return res, fmt.Errorf("list unreplicated records: %w", err)
	}

	res.Scanned = len(recs)

	for i := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if r.Enqueue(ReplicationTask{UID: recs[i].UID, LocalPath: recs[i].LocalPath}) {
			res.Enqueued++
		} else {
			res.Dropped++
		}
	}

	metrics.RequeuedTotal.Add(float64(res.Enqueued))

	if res.Scanned > 0 {
		r.log.Info().
			Int("scanned", res.Scanned).
			Int("enqueued", res.Enqueued).
			Int("dropped", res.Dropped).
			Msg("requeued unreplicated records")
	}

	return res, nil
}
