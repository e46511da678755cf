package etcd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/config"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultPrefix 状态日志在etcd中的默认键前缀
const DefaultPrefix = "/avatar-gateway/status/"

// Client 封装etcd客户端
type Client struct {
	client *clientv3.Client
	prefix string
}

// NewClient 创建新的etcd客户端
func NewClient(cfg config.EtcdConfig) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd地址不能为空")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("连接etcd失败: %w", err)
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if _, err := client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		return nil, fmt.Errorf("etcd连接测试失败: %w", err)
	}

	return &Client{
		client: client,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

// Close 关闭etcd客户端连接
func (c *Client) Close() error {
	return c.client.Close()
}

// GetClient 获取原始etcd客户端
func (c *Client) GetClient() *clientv3.Client {
	return c.client
}

// GetStatusPrefix 获取所有状态日志的前缀
func (c *Client) GetStatusPrefix() string {
	return c.prefix
}

// GetServicePrefix 获取某个服务状态日志的前缀
func (c *Client) GetServicePrefix(serviceName string) string {
	return c.prefix + serviceName + "/"
}

// GetLogKey 获取一条状态日志的键，时间戳补零保证按字典序即按时间排序
func (c *Client) GetLogKey(serviceName string, checkedAt time.Time, id string) string {
	return c.GetServicePrefix(serviceName) + timeKey(checkedAt) + "-" + id
}

// GetSinceKey 获取某个服务在since时刻之后的起始键
func (c *Client) GetSinceKey(serviceName string, since time.Time) string {
	return c.GetServicePrefix(serviceName) + timeKey(since)
}

// ServiceFromKey 从状态日志的键中取出服务名称
func (c *Client) ServiceFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, c.prefix)
	if !ok {
		return "", false
	}
	name, _, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func timeKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
