// Package kv 提供键值存储的接口和实现，用于保存对账报告等短期状态.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yeisme/syncvault/pkg/configs"
)

// ErrNotFound 键不存在或已过期.
var ErrNotFound = errors.New("kv: key not found")

// Store 定义键值存储接口.
type Store interface {
	// Get 获取键的值，不存在时返回 ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 设置键的值，ttl<=0 表示不过期.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除键.
	Delete(ctx context.Context, key string) error
	// Exists 检查键是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// Keys 获取匹配 glob 模式的键，空模式表示全部.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Close 关闭存储连接.
	Close() error
}

// Client 包装具体的 Store 实现.
type Client struct {
	Store

	kind KVType
}

// Type 返回底层实现类型.
func (c *Client) Type() KVType {
	return c.kind
}

// KVType 键值存储类型.
type KVType string

const (
	KVTypeMemory KVType = "memory"
	KVTypeRedis  KVType = "redis"
	KVTypeNATS   KVType = "nats"
)

// Factory 定义创建 Store 的工厂函数类型.
type Factory func(ctx context.Context, cfg *configs.KVConfig) (Store, error)

var factories = make(map[KVType]Factory)

// RegisterFactory 注册 KV 工厂函数.
func RegisterFactory(kvType KVType, factory Factory) {
	factories[kvType] = factory
}

// GetRegisteredKVTypes 返回已注册的 KV 类型列表.
func GetRegisteredKVTypes() []KVType {
	types := make([]KVType, 0, len(factories))
	for kvType := range factories {
		types = append(types, kvType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// New 按配置创建 KV 客户端.
func New(ctx context.Context, cfg *configs.KVConfig) (*Client, error) {
	kind := KVType(cfg.Type)
	if kind == "" {
		kind = KVTypeMemory
	}

	factory, exists := factories[kind]
	if !exists {
		return nil, fmt.Errorf("unsupported KV type: %s", kind)
	}

	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init kv (%s): %w", kind, err)
	}

	return &Client{Store: store, kind: kind}, nil
}
