package queue

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/syncvault/pkg/configs"
	nlog "github.com/yeisme/syncvault/pkg/log"
)

// Producer 事件生产者名称.
const Producer = "syncvault"

// Emitter 按事件开关把领域事件发布到事件总线；发布失败只记录日志.
// 零值与 nil 均可安全调用，表示不发布.
type Emitter struct {
	pub  message.Publisher
	cfg  configs.EventsConfig
	wait time.Duration
	log  zerolog.Logger
}

// NewEmitter 创建事件发布器；pub 为 nil 时所有事件被丢弃.
func NewEmitter(pub message.Publisher, cfg configs.EventsConfig, wait time.Duration) *Emitter {
	if wait <= 0 {
		wait = configs.DefaultPublishWait
	}

	return &Emitter{pub: pub, cfg: cfg, wait: wait, log: nlog.Component("events")}
}

// enabled 先判空再读配置，nil Emitter 不发布.
func (e *Emitter) enabled(flag func(configs.EventsConfig) bool) bool {
	if e == nil || e.pub == nil || !e.cfg.Enabled {
		return false
	}

	return flag(e.cfg)
}

// FileStored 发布 sv.file.stored.
func (e *Emitter) FileStored(ctx context.Context, ref FileRef) {
	if e.enabled(func(c configs.EventsConfig) bool { return c.File.Stored }) {
		publish(ctx, e, TopicFileStored, FilePayload{File: ref})
	}
}

// FileReplicated 发布 sv.file.replicated.
func (e *Emitter) FileReplicated(ctx context.Context, ref FileRef) {
	if e.enabled(func(c configs.EventsConfig) bool { return c.File.Replicated }) {
		publish(ctx, e, TopicFileReplicated, FilePayload{File: ref})
	}
}

// ReplicationFailed 发布 sv.file.replication.failed.
func (e *Emitter) ReplicationFailed(ctx context.Context, p ReplicationFailedPayload) {
	if e.enabled(func(c configs.EventsConfig) bool { return c.File.ReplicationFailed }) {
		publish(ctx, e, TopicFileReplicationFailed, p)
	}
}

// FileDeleted 发布 sv.file.deleted.
func (e *Emitter) FileDeleted(ctx context.Context, ref FileRef) {
	if e.enabled(func(c configs.EventsConfig) bool { return c.File.Deleted }) {
		publish(ctx, e, TopicFileDeleted, FilePayload{File: ref})
	}
}

// OrphanRemoved 发布 sv.orphan.removed.
func (e *Emitter) OrphanRemoved(ctx context.Context, p OrphanRemovedPayload) {
	if e.enabled(func(c configs.EventsConfig) bool { return c.Sweep.OrphanRemoved }) {
		publish(ctx, e, TopicOrphanRemoved, p)
	}
}

// RecordInconsistent 发布 sv.record.inconsistent.
func (e *Emitter) RecordInconsistent(ctx context.Context, p InconsistentRecordPayload) {
	if e.enabled(func(c configs.EventsConfig) bool { return c.Sweep.Inconsistent }) {
		publish(ctx, e, TopicRecordInconsistent, p)
	}
}

// ReconcileCompleted 发布 sv.reconcile.completed.
func (e *Emitter) ReconcileCompleted(ctx context.Context, p ReconcileCompletedPayload) {
	if e.enabled(func(c configs.EventsConfig) bool { return c.Sweep.Completed }) {
		publish(ctx, e, TopicReconcileCompleted, p)
	}
}

func publish[T any](ctx context.Context, e *Emitter, topic string, payload T) {
	msg, err := NewMessage(ctx, topic, payload)
	if err != nil {
		e.log.Error().Err(err).Str("topic", topic).Msg("encode event failed")

		return
	}

	// 调用方 ctx 取消后事件仍应发出，只受 wait 限制
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.wait)
	defer cancel()

	msg.SetContext(pubCtx)

	done := make(chan error, 1)

	go func() { done <- e.pub.Publish(topic, msg) }()

	select {
	case err = <-done:
	case <-pubCtx.Done():
		err = pubCtx.Err()
	}

	if err != nil {
		e.log.Warn().Err(err).Str("topic", topic).Msg("publish event failed")
	}
}
