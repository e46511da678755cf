package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache 基于进程内map的缓存实现
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	defaultTTL time.Duration
	now        Clock
	counters   counters
}

// entry 表示缓存中的一条记录，仅在 now < expireAt 时可见
type entry struct {
	value    []byte
	expireAt time.Time
}

// MemoryOption 配置MemoryCache
type MemoryOption func(*MemoryCache)

// WithClock 替换缓存使用的时钟
func WithClock(clock Clock) MemoryOption {
	return func(c *MemoryCache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewMemoryCache 创建新的内存缓存
func NewMemoryCache(defaultTTL time.Duration, opts ...MemoryOption) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	c := &MemoryCache{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
		counters:   newCounters(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 从缓存获取值
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		c.counters.misses.Inc()
		return nil, false
	}

	// 检查是否过期
	if !c.now().Before(e.expireAt) {
		c.counters.misses.Inc()
		go c.deleteExpired(key)
		return nil, false
	}

	c.counters.hits.Inc()

	// 返回副本避免调用方修改缓存内容
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

// Set 设置缓存记录
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) {
	stored := make([]byte, len(value))
	copy(stored, value)

	expireAt := c.now().Add(resolveTTL(c.defaultTTL, ttl))

	c.mu.Lock()
	c.entries[key] = &entry{value: stored, expireAt: expireAt}
	c.mu.Unlock()

	c.counters.sets.Inc()
}

// Delete 从缓存删除记录
func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.counters.deletes.Inc()
}

// Stats 返回缓存统计
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return c.counters.snapshot("memory", n)
}

// Len 返回物理保留的条目数，包含尚未清理的过期条目
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// deleteExpired 删除过期记录
func (c *MemoryCache) deleteExpired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 再次检查，获取锁期间条目可能已被刷新
	e, found := c.entries[key]
	if found && !c.now().Before(e.expireAt) {
		delete(c.entries, key)
	}
}

// CleanupExpired 清理所有过期条目
func (c *MemoryCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expireAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine 启动定期清理过期条目的协程，ctx结束时退出
func (c *MemoryCache) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanupExpired()
			}
		}
	}()
}
