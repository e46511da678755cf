package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache 基于Redis的缓存实现，适合多实例部署共享缓存
//
// 任何Redis错误都只记录日志，读取按未命中处理，写入和删除静默失败。
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	logger     config.Logger
	counters   counters
}

// NewRedisClient 根据配置创建Redis客户端
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.DialTimeout,
		MaxRetries:   -1,
	})
}

// NewRedisCache 创建Redis缓存
func NewRedisCache(client redis.UniversalClient, prefix string, defaultTTL time.Duration, logger config.Logger) *RedisCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RedisCache{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		logger:     logger,
		counters:   newCounters(),
	}
}

// Get 从Redis读取值
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Redis读取失败，按未命中处理", zap.String("key", key), zap.Error(err))
		}
		c.counters.misses.Inc()
		return nil, false
	}

	c.counters.hits.Inc()
	return value, true
}

// Set 写入Redis
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) {
	if err := c.client.Set(ctx, c.prefix+key, value, resolveTTL(c.defaultTTL, ttl)).Err(); err != nil {
		c.logger.Warn("Redis写入失败", zap.String("key", key), zap.Error(err))
		return
	}
	c.counters.sets.Inc()
}

// Delete 从Redis删除键
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("Redis删除失败", zap.String("key", key), zap.Error(err))
		return
	}
	c.counters.deletes.Inc()
}

// Stats 返回缓存统计，Redis后端不统计条目数
func (c *RedisCache) Stats() Stats {
	return c.counters.snapshot("redis", -1)
}

// Ping 检查Redis连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭Redis客户端
func (c *RedisCache) Close() error {
	return c.client.Close()
}
