// Package cache 提供带过期时间的键值缓存，用于减少对上游用户目录的重复调用。
//
// 缓存只按时间过期，没有容量上限；键的数量受一个TTL窗口内实际请求的不同用户数约束。
// 所有操作都不会向调用方返回错误，后端不可用时退化为"永远未命中"。
package cache

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// DefaultTTL 未配置时的默认过期时间
const DefaultTTL = 60 * time.Second

// Cache 定义缓存接口
type Cache interface {
	// Get 读取缓存，条目不存在或已过期时返回false
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set 写入缓存，ttl省略或非正数时使用默认TTL
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration)

	// Delete 删除缓存条目
	Delete(ctx context.Context, key string)

	// Stats 返回命中统计
	Stats() Stats
}

// Clock 返回当前时间，测试中可替换为假时钟
type Clock func() time.Time

// Stats 缓存统计快照
type Stats struct {
	Backend string `json:"backend"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Sets    int64  `json:"sets"`
	Deletes int64  `json:"deletes"`
	Entries int    `json:"entries"`
}

// HitRate 返回命中率，没有读取时为0
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// counters 各后端共用的计数器
type counters struct {
	hits    *atomic.Int64
	misses  *atomic.Int64
	sets    *atomic.Int64
	deletes *atomic.Int64
}

func newCounters() counters {
	return counters{
		hits:    atomic.NewInt64(0),
		misses:  atomic.NewInt64(0),
		sets:    atomic.NewInt64(0),
		deletes: atomic.NewInt64(0),
	}
}

func (c counters) snapshot(backend string, entries int) Stats {
	return Stats{
		Backend: backend,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
		Entries: entries,
	}
}

// resolveTTL 选择调用方覆盖的TTL或默认TTL
func resolveTTL(defaultTTL time.Duration, ttl []time.Duration) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return ttl[0]
	}
	return defaultTTL
}
