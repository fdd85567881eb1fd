// Package redistest 提供内存版 AsyncCacheService，SubmitTask 同步执行，便于断言
package redistest

import (
	"context"
	"sync"
	"time"

	myredis "tutor_chat_server/internal/dao/redis"
)

type item struct {
	value    string
	expireAt time.Time
}

// MemoryCache 线程安全的内存缓存
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]item
	// Fail 非 nil 时所有操作返回该错误，模拟 Redis 不可用
	Fail error
}

// NewMemoryCache 创建空缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]item)}
}

func (m *MemoryCache) getLocked(key string) (string, bool) {
	it, ok := m.items[key]
	if !ok {
		return "", false
	}
	if !it.expireAt.IsZero() && time.Now().After(it.expireAt) {
		delete(m.items, key)
		return "", false
	}
	return it.value, true
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	it := item{value: value}
	if ttl > 0 {
		it.expireAt = time.Now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *MemoryCache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	if m.Fail != nil {
		m.mu.Unlock()
		return false, m.Fail
	}
	_, exists := m.getLocked(key)
	m.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return "", m.Fail
	}
	v, _ := m.getLocked(key)
	return v, nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// SubmitTask 同步执行
func (m *MemoryCache) SubmitTask(action func()) {
	action()
}

// Has 测试断言用
func (m *MemoryCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.getLocked(key)
	return ok
}

var _ myredis.AsyncCacheService = (*MemoryCache)(nil)
