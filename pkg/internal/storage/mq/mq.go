// Package mq 基于 Watermill 提供统一的事件总线客户端，通过工厂模式支持不同实现.
//
// 支持的类型：
//   - gochannel：进程内总线（默认）
//   - nats：NATS / JetStream（watermill-nats）
//   - redis：Redis Pub/Sub
//
// 使用示例：
//
//	client, err := mq.New(ctx, &cfg.MQ, mq.WithMetrics(registry, "syncvault"))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	ch, err := client.Subscribe(ctx, queue.TopicFileStored)
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/syncvault/pkg/configs"
	nlog "github.com/yeisme/syncvault/pkg/log"
)

// ErrClosed 客户端已关闭.
var ErrClosed = errors.New("mq client closed")

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredTypes 返回已注册的 MQ 类型.
func GetRegisteredTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	kind       configs.MQType

	mu     sync.Mutex
	closed bool
}

// Option 调整客户端构造.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	namespace  string
}

// WithMetrics 用 watermill prometheus 指标装饰 publisher 与 subscriber.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registerer = reg
		o.namespace = namespace
	}
}

// New 按配置创建事件总线客户端.
func New(ctx context.Context, cfg *configs.MQConfig, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kind := cfg.Type
	if kind == "" {
		kind = configs.MQTypeGoChannel
	}

	factory, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", kind)
	}

	l := nlog.Component("mq")
	logger := NewLoggerAdapter(&l)

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", kind, err)
	}

	if o.registerer != nil && cfg.EnableMetrics {
		builder := metrics.NewPrometheusMetricsBuilder(o.registerer, o.namespace, "events")

		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	l.Info().Str("type", string(kind)).Msg("事件总线已初始化")

	return &Client{publisher: pub, subscriber: sub, kind: kind}, nil
}

// Type 返回实现类型.
func (c *Client) Type() configs.MQType {
	return c.kind
}

// Publisher 返回底层 Publisher，供事件发布器使用.
func (c *Client) Publisher() message.Publisher {
	return c.publisher
}

// Publish 便捷发布.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	if err := c.check(); err != nil {
		return err
	}

	for _, m := range msgs {
		m.SetContext(ctx)

		if err := c.publisher.Publish(topic, m); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	}

	return nil
}

// Subscribe 便捷订阅，ctx 结束时通道关闭.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	ch, err := c.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	return ch, nil
}

// HealthCheck 客户端未关闭即视为可用；外部连接由各实现自行重连.
func (c *Client) HealthCheck(_ context.Context) error {
	return c.check()
}

func (c *Client) check() error {
	if c == nil || c.publisher == nil || c.subscriber == nil {
		return fmt.Errorf("mq not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	return nil
}

// Close 关闭资源，可重复调用.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.mu.Unlock()

	return errors.Join(c.publisher.Close(), c.subscriber.Close())
}
