// Package queue 定义文件生命周期事件的信封、主题与负载，并负责把事件发布到事件总线.
//
// 信封结构：
//
//	{
//	  "header": {"topic": "sv.file.stored", "trace_id": "...", "producer": "syncvault",
//	             "occurred_at": "2025-01-02T03:04:05.123456Z", "version": "v1"},
//	  "payload": { ... }
//	}
//
// 订阅方按主题解出负载：
//
//	ch, _ := client.Subscribe(ctx, queue.TopicFileStored)
//	for m := range ch {
//		env, _ := queue.ParseWatermillMessage[queue.FilePayload](m)
//		m.Ack()
//	}
//
// occurred_at 为 UTC；消费者应忽略未知字段.
package queue

import (
	"context"
	"fmt"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/trace"
)

// PayloadVersionV1 当前负载版本.
const PayloadVersionV1 = "v1"

// 消息元数据键，供不解码负载的中间件过滤使用.
const (
	MetaTopic      = "topic"
	MetaVersion    = "version"
	MetaTraceID    = "trace_id"
	MetaOccurredAt = "occurred_at"
)

// NewMessage 构造事件消息：当前 span 的 trace id 写入头部与元数据.
func NewMessage[T any](ctx context.Context, topic string, payload T) (*message.Message, error) {
	hdr := EventHeader{
		Topic:      topic,
		Producer:   Producer,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		hdr.TraceID = sc.TraceID().String()
	}

	data, err := sonic.Marshal(Message[T]{Header: hdr, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewULID(), data)
	msg.Metadata.Set(MetaTopic, topic)
	msg.Metadata.Set(MetaVersion, hdr.Version)
	msg.Metadata.Set(MetaOccurredAt, hdr.OccurredAt.Format(time.RFC3339Nano))

	if hdr.TraceID != "" {
		msg.Metadata.Set(MetaTraceID, hdr.TraceID)
	}

	return msg, nil
}

// ParseWatermillMessage 解出信封与泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	var m Message[T]
	if err := sonic.Unmarshal(msg.Payload, &m); err != nil {
		return m, fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}

	return m, nil
}
