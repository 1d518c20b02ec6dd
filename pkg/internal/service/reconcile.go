package service

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/syncvault/pkg/cache"
	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/storage/kv"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
	"github.com/yeisme/syncvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/syncvault/pkg/log"
	"github.com/yeisme/syncvault/pkg/metrics"
	"github.com/yeisme/syncvault/pkg/queue"
	"github.com/yeisme/syncvault/pkg/tracing"
)

const (
	reportCachePrefix = "reconcile."
	lastReportKey     = "last"

	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// RunOptions 单次对账参数.
type RunOptions struct {
	DryRun  bool
	Trigger string
}

// Orphan 一个未被记录引用的文件或对象.
type Orphan struct {
	Location string    `json:"location"`
	Path     string    `json:"path"`
	ModTime  time.Time `json:"mod_time"`
	Removed  bool      `json:"removed"`
	Error    string    `json:"error,omitempty"`
}

// Report 对账报告；列表字段最多保留 reconcile.report_limit 条.
type Report struct {
	RunID      string        `json:"run_id"`
	Trigger    string        `json:"trigger,omitempty"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	Records       int `json:"records"`
	LocalFiles    int `json:"local_files"`
	RemoteObjects int `json:"remote_objects"`

	LocalOrphansRemoved  int `json:"local_orphans_removed"`
	RemoteOrphansRemoved int `json:"remote_orphans_removed"`
	// SkippedYoung 未超过宽限期而保留的孤儿数
	SkippedYoung int `json:"skipped_young"`
	// SkippedReferenced 有记录但尚未回写 remote_url 的远端对象数
	SkippedReferenced int `json:"skipped_referenced"`
	Failures          int `json:"failures"`
	InconsistentCount int `json:"inconsistent_count"`

	Orphans      []Orphan             `json:"orphans,omitempty"`
	Inconsistent []InconsistentRecord `json:"inconsistent,omitempty"`
	Error        string               `json:"error,omitempty"`

	limit int
}

func (r *Report) addOrphan(o Orphan) {
	if r.limit <= 0 || len(r.Orphans) < r.limit {
		r.Orphans = append(r.Orphans, o)
	}
}

func (r *Report) addInconsistent(ir InconsistentRecord) {
	r.InconsistentCount++

	if r.limit <= 0 || len(r.Inconsistent) < r.limit {
		r.Inconsistent = append(r.Inconsistent, ir)
	}
}

// Reconciler 对账与垃圾回收：删除没有记录引用且超过宽限期的本地文件与远端对象.
// 从不删除记录；单飞运行，可通过 ctx 中断.
type Reconciler struct {
	cfg     configs.ReconcileConfig
	open    Opener
	blobs   BlobStore
	remote  ObjectStore
	reports *cache.Cache
	events  *queue.Emitter
	clock   clockwork.Clock
	log     zerolog.Logger

	group    singleflight.Group
	flightMu sync.Mutex
	flights  map[string]bool

	mu   sync.RWMutex
	last *Report

	entropyMu sync.Mutex
	entropy   io.Reader
}

// NewReconciler 创建对账器；reports 为 nil 时报告只保存在内存.
func NewReconciler(
	cfg configs.ReconcileConfig,
	open Opener,
	blobs BlobStore,
	remote ObjectStore,
	reports kv.Store,
	events *queue.Emitter,
	clock clockwork.Clock,
) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	r := &Reconciler{
		cfg:     cfg,
		open:    open,
		blobs:   blobs,
		remote:  remote,
		events:  events,
		clock:   clock,
		log:     nlog.Component("reconcile"),
		flights: make(map[string]bool, 2),
		entropy: ulid.Monotonic(crand.Reader, 0),
	}

	if reports != nil {
		r.reports = cache.New(reports, reportCachePrefix)
	}

	return r
}

func (r *Reconciler) newRunID() string {
	r.entropyMu.Lock()
	defer r.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(r.clock.Now()), r.entropy).String()
}

// Run 执行一次对账；已有同类型对账在运行时加入该次运行并返回其报告.
// 中断时返回已完成部分的报告与 ctx 错误；加入者中断时只返回 ctx 错误.
func (r *Reconciler) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	key := "sweep"
	if opts.DryRun {
		key = "dry-run"
	}

	// 发起者必须等 run 收尾，run 自身响应 ctx 并返回部分报告
	r.flightMu.Lock()
	leader := !r.flights[key]
	if leader {
		r.flights[key] = true
	}

	ch := r.group.DoChan(key, func() (any, error) {
		defer func() {
			r.flightMu.Lock()
			delete(r.flights, key)
			r.flightMu.Unlock()
		}()

		return r.run(ctx, opts)
	})
	r.flightMu.Unlock()

	if leader {
		res := <-ch
		rep, _ := res.Val.(*Report)

		return rep, res.Err
	}

	select {
	case res := <-ch:
		rep, _ := res.Val.(*Report)
		r.log.Debug().Str("mode", key).Msg("joined in-flight reconciliation")

		return rep, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LastReport 返回最近一次完成的报告.
func (r *Reconciler) LastReport(ctx context.Context) (*Report, error) {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()

	if last != nil {
		return last, nil
	}

	if r.reports == nil {
		return nil, nil
	}

	rep, err := cache.Get[Report](ctx, r.reports, lastReportKey)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("load last report: %w", err)
	}

	return &rep, nil
}

func (r *Reconciler) run(ctx context.Context, opts RunOptions) (rep *Report, err error) {
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	rep = &Report{
		RunID:     r.newRunID(),
		Trigger:   opts.Trigger,
		DryRun:    opts.DryRun,
		StartedAt: r.clock.Now(),
		limit:     r.cfg.ReportLimit,
	}

	ctx, span := tracing.StartSpan(ctx, "reconcile.run", trace.WithAttributes(
		attribute.String("reconcile.run_id", rep.RunID),
		attribute.Bool("reconcile.dry_run", opts.DryRun),
	))

	log := r.log.With().Str("run_id", rep.RunID).Bool("dry_run", opts.DryRun).Logger()
	log.Info().Str("trigger", opts.Trigger).Msg("reconciliation started")

	defer func() {
		r.finish(ctx, rep, err, log)
		tracing.EndSpan(span, err)
	}()

	err = r.sweep(ctx, rep, log)

	return rep, err
}

func (r *Reconciler) sweep(ctx context.Context, rep *Report, log zerolog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store, err := r.open(ctx)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer store.Close()

	if err := ctx.Err(); err != nil {
		return err
	}

	mctx, cancel := context.WithTimeout(ctx, r.metadataTimeout())
	recs, err := store.All(mctx)

	cancel()

	if err != nil {
		// 元数据不完整时不做任何删除
		return fmt.Errorf("read records: %w", err)
	}

	rep.Records = len(recs)

	// P：记录引用的本地路径；R：已复制记录的远端 key；K：所有记录派生的 key
	referenced := make(map[string]string, len(recs))
	replicated := make(map[string]struct{}, len(recs))
	known := make(map[string]struct{}, len(recs))

	for i := range recs {
		referenced[filepath.Clean(recs[i].LocalPath)] = recs[i].UID

		key := recs[i].RemoteKey()
		known[key] = struct{}{}

		if recs[i].Replicated() {
			replicated[key] = struct{}{}
		}
	}

	if err := r.sweepLocal(ctx, rep, referenced, log); err != nil {
		return err
	}

	return r.sweepRemote(ctx, rep, replicated, known, log)
}

// sweepLocal 删除 L \ P 中超过宽限期的文件并上报 P \ L.
func (r *Reconciler) sweepLocal(ctx context.Context, rep *Report, referenced map[string]string, log zerolog.Logger) error {
	seen := make(map[string]struct{}, len(referenced))

	var (
		candidates []local.Entry
		incomplete bool
	)

	walkErr := r.blobs.Walk(ctx, func(e local.Entry) error {
		rep.LocalFiles++

		path := filepath.Clean(e.Path)
		if _, ok := referenced[path]; ok {
			seen[path] = struct{}{}

			return nil
		}

		candidates = append(candidates, e)

		return nil
	}, func(path string, err error) {
		incomplete = true
		rep.Failures++
		log.Warn().Err(err).Str("path", path).Msg("skip unreadable local entry")
	})

	if walkErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// 列举不完整时无法判断 P \ L，跳过本地阶段
		rep.Failures++
		log.Error().Err(walkErr).Msg("local walk failed, local phase skipped")

		return nil
	}

	now := r.clock.Now()

	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !r.expired(now, e.ModTime) {
			rep.SkippedYoung++

			continue
		}

		o := Orphan{Location: metrics.LocationLocal, Path: e.Path, ModTime: e.ModTime}

		if !rep.DryRun {
			if err := r.blobs.Remove(e.Path); err != nil {
				r.cleanupFailed(rep, &o, &OrphanCleanupError{Location: o.Location, Path: e.Path, Err: err}, log)

				continue
			}

			o.Removed = true
			rep.LocalOrphansRemoved++
			metrics.OrphansRemoved.WithLabelValues(metrics.LocationLocal).Inc()
			r.events.OrphanRemoved(ctx, queue.OrphanRemovedPayload{
				RunID: rep.RunID, Location: o.Location, Path: o.Path, ModTime: o.ModTime,
			})
		}

		rep.addOrphan(o)
		log.Info().Str("path", e.Path).Time("mod_time", e.ModTime).Bool("removed", o.Removed).Msg("local orphan")
	}

	// 有条目读不到时 L 不完整，缺失的路径可能只是不可读
	if incomplete {
		log.Warn().Msg("local walk incomplete, inconsistency check skipped")

		return nil
	}

	for path, uid := range referenced {
		if _, ok := seen[path]; ok {
			continue
		}

		rep.addInconsistent(InconsistentRecord{UID: uid, LocalPath: path})
		metrics.InconsistentRecords.Inc()
		r.events.RecordInconsistent(ctx, queue.InconsistentRecordPayload{RunID: rep.RunID, UID: uid, LocalPath: path})
		log.Warn().Str("uid", uid).Str("path", path).Msg("inconsistent record: local file missing")
	}

	return nil
}

// sweepRemote 删除 C \ R 中超过宽限期的对象.
func (r *Reconciler) sweepRemote(
	ctx context.Context,
	rep *Report,
	replicated, known map[string]struct{},
	log zerolog.Logger,
) error {
	var candidates []s3.Object

	listErr := r.remote.List(ctx, func(obj s3.Object) error {
		rep.RemoteObjects++

		if _, ok := replicated[obj.Key]; !ok {
			candidates = append(candidates, obj)
		}

		return nil
	})
	if listErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rep.Failures++
		log.Error().Err(listErr).Msg("remote listing failed, remote phase skipped")

		return nil
	}

	now := r.clock.Now()

	for _, obj := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, ok := known[obj.Key]; ok {
			// 记录仍在，只是 remote_url 尚未回写
			rep.SkippedReferenced++

			continue
		}

		if !r.expired(now, obj.LastModified) {
			rep.SkippedYoung++

			continue
		}

		o := Orphan{Location: metrics.LocationRemote, Path: obj.Key, ModTime: obj.LastModified}

		if !rep.DryRun {
			opCtx, cancel := context.WithTimeout(ctx, r.opTimeout())
			err := r.remote.Remove(opCtx, obj.Key)

			cancel()

			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				r.cleanupFailed(rep, &o, &OrphanCleanupError{Location: o.Location, Path: obj.Key, Err: err}, log)

				continue
			}

			o.Removed = true
			rep.RemoteOrphansRemoved++
			metrics.OrphansRemoved.WithLabelValues(metrics.LocationRemote).Inc()
			r.events.OrphanRemoved(ctx, queue.OrphanRemovedPayload{
				RunID: rep.RunID, Location: o.Location, Path: o.Path, ModTime: o.ModTime,
			})
		}

		rep.addOrphan(o)
		log.Info().Str("key", obj.Key).Time("mod_time", obj.LastModified).Bool("removed", o.Removed).Msg("remote orphan")
	}

	return nil
}

// expired 严格早于宽限期才允许删除.
func (r *Reconciler) expired(now, modTime time.Time) bool {
	return now.Sub(modTime) > r.cfg.GraceWindow
}

func (r *Reconciler) cleanupFailed(rep *Report, o *Orphan, err *OrphanCleanupError, log zerolog.Logger) {
	rep.Failures++
	o.Error = err.Err.Error()
	rep.addOrphan(*o)
	metrics.OrphanCleanupFailures.WithLabelValues(err.Location).Inc()
	log.Error().Err(err).Msg("orphan cleanup failed")
}

func (r *Reconciler) metadataTimeout() time.Duration {
	if r.cfg.MetadataTimeout > 0 {
		return r.cfg.MetadataTimeout
	}

	return configs.DefaultMetadataTimeout
}

func (r *Reconciler) opTimeout() time.Duration {
	if r.cfg.OpTimeout > 0 {
		return r.cfg.OpTimeout
	}

	return configs.DefaultReconcileOpTimeout
}

// finish 汇总指标、缓存报告并发布完成事件.
func (r *Reconciler) finish(ctx context.Context, rep *Report, err error, log zerolog.Logger) {
	rep.FinishedAt = r.clock.Now()
	rep.Duration = rep.FinishedAt.Sub(rep.StartedAt)

	result := metrics.ResultSuccess

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = metrics.ResultCancelled
		rep.Error = err.Error()
	case err != nil:
		result = metrics.ResultFailure
		rep.Error = err.Error()
	}

	metrics.ReconcileRuns.WithLabelValues(result).Inc()
	metrics.ReconcileDuration.Observe(rep.Duration.Seconds())
	metrics.LastReconcileTimestamp.Set(float64(rep.FinishedAt.Unix()))

	r.mu.Lock()
	r.last = rep
	r.mu.Unlock()

	if r.reports != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
		if cerr := cache.Set(cctx, r.reports, lastReportKey, *rep, r.cfg.ReportTTL); cerr != nil {
			log.Warn().Err(cerr).Msg("cache reconcile report failed")
		}

		cancel()
	}

	r.events.ReconcileCompleted(ctx, queue.ReconcileCompletedPayload{
		RunID:                rep.RunID,
		DryRun:               rep.DryRun,
		Records:              rep.Records,
		LocalOrphansRemoved:  rep.LocalOrphansRemoved,
		RemoteOrphansRemoved: rep.RemoteOrphansRemoved,
		Failures:             rep.Failures,
		Inconsistent:         rep.InconsistentCount,
		Duration:             rep.Duration,
		Error:                rep.Error,
	})

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}

	ev.Int("records", rep.Records).
		Int("local_files", rep.LocalFiles).
		Int("remote_objects", rep.RemoteObjects).
		Int("local_removed", rep.LocalOrphansRemoved).
		Int("remote_removed", rep.RemoteOrphansRemoved).
		Int("skipped_young", rep.SkippedYoung).
		Int("failures", rep.Failures).
		Int("inconsistent", rep.InconsistentCount).
		Dur("duration", rep.Duration).
		Msg("reconciliation finished")
}
