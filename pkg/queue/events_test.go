package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/queue"
)

func emitAll(ctx context.Context, e *queue.Emitter) {
	ref := queue.FileRef{UID: "u1", OriginalName: "a.txt", Size: 10}

	e.FileStored(ctx, ref)
	e.FileReplicated(ctx, ref)
	e.ReplicationFailed(ctx, queue.ReplicationFailedPayload{})
	e.FileDeleted(ctx, ref)
	e.OrphanRemoved(ctx, queue.OrphanRemovedPayload{})
	e.RecordInconsistent(ctx, queue.InconsistentRecordPayload{})
	e.ReconcileCompleted(ctx, queue.ReconcileCompletedPayload{})
}

func TestNilEmitterIsNoop(t *testing.T) {
	var e *queue.Emitter

	assert.NotPanics(t, func() { emitAll(context.Background(), e) })
}

func TestEmitterWithoutPublisherIsNoop(t *testing.T) {
	cfg := configs.EventsConfig{Enabled: true}
	cfg.File.Stored = true
	cfg.Sweep.Completed = true

	e := queue.NewEmitter(nil, cfg, time.Second)

	assert.NotPanics(t, func() { emitAll(context.Background(), e) })
}
