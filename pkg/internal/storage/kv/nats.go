//go:build !no_nats

package kv

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yeisme/syncvault/pkg/configs"
)

// NATSKV 基于 JetStream KV bucket 的实现.
// bucket 级 TTL 会作用于所有键，因此按键过期仍使用 ttl 包装值，读取时惰性删除.
// 键只允许 [-/_=.a-zA-Z0-9]，报告缓存使用 "reconcile." 前缀.
type NATSKV struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSKV 连接 NATS 并创建或复用 bucket.
func NewNATSKV(ctx context.Context, cfg *configs.NATSKVConfig) (*NATSKV, error) {
	opts := []nats.Option{nats.Name("syncvault-kv")}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(nats.Context(ctx))
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bucket, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		history := cfg.History
		if history == 0 {
			history = 1
		}

		bucket, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: cfg.Bucket, History: history})
	}

	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to open KV bucket %q: %w", cfg.Bucket, err)
	}

	return &NATSKV{conn: nc, kv: bucket}, nil
}

func newNATSStore(ctx context.Context, cfg *configs.KVConfig) (Store, error) {
	return NewNATSKV(ctx, &cfg.NATS)
}

// load 读取并解包，已过期的键被删除并视为不存在.
func (n *NATSKV) load(key string) ([]byte, error) {
	entry, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	val, expired, _, err := decodeWithTTL(entry.Value(), time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		_ = n.kv.Delete(key)

		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return val, nil
}

// Get 获取键的值.
func (n *NATSKV) Get(_ context.Context, key string) ([]byte, error) {
	return n.load(key)
}

// Set 设置键的值.
func (n *NATSKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, _, err := encodeWithTTL(value, ttl, time.Now())
	if err != nil {
		return err
	}

	if _, err := n.kv.Put(key, data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return nil
}

// Delete 删除键，不存在不报错.
func (n *NATSKV) Delete(_ context.Context, key string) error {
	if err := n.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Exists 检查键是否存在.
func (n *NATSKV) Exists(_ context.Context, key string) (bool, error) {
	_, err := n.load(key)
	if isNotFound(err) {
		return false, nil
	}

	return err == nil, err
}

// Keys 获取匹配模式的键（path.Match 语义）.
func (n *NATSKV) Keys(_ context.Context, pattern string) ([]string, error) {
	all, err := n.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	keys := make([]string, 0, len(all))

	for _, k := range all {
		if pattern != "" {
			ok, err := path.Match(pattern, k)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
			}

			if !ok {
				continue
			}
		}

		if _, err := n.load(k); err != nil {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys, nil
}

// Close 关闭连接.
func (n *NATSKV) Close() error {
	n.conn.Close()

	return nil
}

func init() {
	RegisterFactory(KVTypeNATS, newNATSStore)
}
