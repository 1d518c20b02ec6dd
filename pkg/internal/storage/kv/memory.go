package kv

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yeisme/syncvault/pkg/configs"
)

// MemoryKV 进程内 KV 实现，过期时间通过 ttl 包装值实现，读取时惰性清理.
type MemoryKV struct {
	mu    sync.RWMutex
	data  map[string][]byte
	clock clockwork.Clock
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(clock clockwork.Clock) *MemoryKV {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &MemoryKV{data: make(map[string][]byte), clock: clock}
}

func newMemoryStore(_ context.Context, _ *configs.KVConfig) (Store, error) {
	return NewMemoryKV(nil), nil
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	value, expired, _, err := decodeWithTTL(raw, m.clock.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, wrapped, err := encodeWithTTL(value, ttl, m.clock.Now())
	if err != nil {
		return err
	}

	if !wrapped {
		data = append([]byte(nil), value...)
	}

	m.mu.Lock()
	m.data[key] = data
	m.mu.Unlock()

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if err == nil {
		return true, nil
	}

	if isNotFound(err) {
		return false, nil
	}

	return false, err
}

// Keys 获取匹配模式的键（path.Match 语义），已过期的键不返回.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := m.clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))

	for k, raw := range m.data {
		if pattern != "" {
			ok, err := path.Match(pattern, k)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
			}

			if !ok {
				continue
			}
		}

		if _, expired, _, err := decodeWithTTL(raw, now); err != nil || expired {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys, nil
}

// Close 关闭存储（内存实现无需操作）.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterFactory(KVTypeMemory, newMemoryStore)
}
