package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// leaseBucket 同一时间段内写入的日志共用一个租约
const leaseBucket = time.Hour

// StatusStore 实现基于etcd的状态日志存储
//
// 日志按时间段共用租约，租约时长为保留时长加一个时间段，
// 保证段内最后写入的日志也至少保留retention，过期后由etcd自动删除。
type StatusStore struct {
	client    *Client
	retention time.Duration
	now       func() time.Time
	leases    *leaseCache
}

// NewStatusStore 创建etcd状态存储
func NewStatusStore(client *Client, retention time.Duration) *StatusStore {
	if retention <= 0 {
		retention = storage.Window30d
	}
	return &StatusStore{
		client:    client,
		retention: retention,
		now:       time.Now,
		leases:    newLeaseCache(retention, leaseBucket),
	}
}

// grantFunc 创建指定秒数的租约
type grantFunc func(ctx context.Context, ttl int64) (clientv3.LeaseID, error)

// leaseCache 缓存当前时间段的租约
type leaseCache struct {
	mu     sync.Mutex
	ttl    int64
	bucket time.Duration
	id     clientv3.LeaseID
	index  int64
	valid  bool
}

func newLeaseCache(retention, bucket time.Duration) *leaseCache {
	return &leaseCache{
		ttl:    int64((retention + bucket).Seconds()),
		bucket: bucket,
	}
}

// get 返回now所在时间段的租约，没有时通过grant创建
func (l *leaseCache) get(ctx context.Context, now time.Time, grant grantFunc) (clientv3.LeaseID, error) {
	index := now.UnixNano() / int64(l.bucket)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.valid && l.index == index {
		return l.id, nil
	}
	id, err := grant(ctx, l.ttl)
	if err != nil {
		return 0, err
	}
	l.id, l.index, l.valid = id, index, true
	return id, nil
}

// invalidate 丢弃缓存的租约，下次写入重新创建
func (l *leaseCache) invalidate(id clientv3.LeaseID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.id == id {
		l.valid = false
	}
}

func (s *StatusStore) grant(ctx context.Context, ttl int64) (clientv3.LeaseID, error) {
	resp, err := s.client.GetClient().Grant(ctx, ttl)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// SaveStatusLog 保存一次探测结果
func (s *StatusStore) SaveStatusLog(ctx context.Context, serviceName, status string, responseTime float64, message string) error {
	if serviceName == "" {
		return storage.NewInvalidArgumentError("服务名称不能为空")
	}
	if !storage.ValidStatus(status) {
		return storage.NewInvalidArgumentError("无效的状态值: " + status)
	}

	log := storage.StatusLog{
		ID:           uuid.NewString(),
		ServiceName:  serviceName,
		Status:       status,
		ResponseTime: responseTime,
		Message:      message,
		CheckedAt:    s.now().UTC(),
	}

	data, err := json.Marshal(log)
	if err != nil {
		return storage.NewInternalError(fmt.Sprintf("序列化状态日志失败: %v", err))
	}

	leaseID, err := s.leases.get(ctx, log.CheckedAt, s.grant)
	if err != nil {
		return storage.NewInternalError(fmt.Sprintf("创建etcd租约失败: %v", err))
	}

	key := s.client.GetLogKey(serviceName, log.CheckedAt, log.ID)
	if _, err := s.client.GetClient().Put(ctx, key, string(data), clientv3.WithLease(leaseID)); err != nil {
		// 租约可能已被撤销，下次写入重新创建
		s.leases.invalidate(leaseID)
		return storage.NewInternalError(fmt.Sprintf("写入etcd失败: %v", err))
	}
	return nil
}

// GetServiceUptime 获取服务在最近hours小时内的可用率
func (s *StatusStore) GetServiceUptime(ctx context.Context, serviceName string, hours int) (float64, error) {
	if hours <= 0 {
		return 0, storage.NewInvalidArgumentError("时间窗口必须大于0")
	}

	logs, err := s.serviceLogs(ctx, serviceName, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return 0, err
	}

	uptime, ok := storage.UptimePercentage(logs)
	if !ok {
		return 0, storage.NewNotFoundError("没有该服务的状态记录: " + serviceName)
	}
	return uptime, nil
}

// GetServiceIncidents 获取服务在最近days天内的异常记录
func (s *StatusStore) GetServiceIncidents(ctx context.Context, serviceName string, days int) ([]*storage.Incident, error) {
	if days <= 0 {
		return nil, storage.NewInvalidArgumentError("时间窗口必须大于0")
	}

	logs, err := s.serviceLogs(ctx, serviceName, s.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, err
	}
	return storage.Incidents(logs), nil
}

// GetUptimeSummary 获取所有服务的可用率汇总
func (s *StatusStore) GetUptimeSummary(ctx context.Context) (*storage.UptimeSummary, error) {
	now := s.now()
	byService, err := s.allLogs(ctx, now.Add(-storage.Window30d))
	if err != nil {
		return nil, err
	}
	return storage.Summarize(byService, now), nil
}

// GetAllServiceStatistics 获取所有服务在最近days天内的统计
func (s *StatusStore) GetAllServiceStatistics(ctx context.Context, days int) ([]*storage.ServiceStatistic, error) {
	if days <= 0 {
		return nil, storage.NewInvalidArgumentError("时间窗口必须大于0")
	}

	byService, err := s.allLogs(ctx, s.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, err
	}
	return storage.Statistics(byService), nil
}

// Close 关闭底层etcd连接
func (s *StatusStore) Close() error {
	return s.client.Close()
}

// serviceLogs 按键范围读取某个服务since之后的日志
func (s *StatusStore) serviceLogs(ctx context.Context, serviceName string, since time.Time) ([]storage.StatusLog, error) {
	start := s.client.GetSinceKey(serviceName, since)
	end := clientv3.GetPrefixRangeEnd(s.client.GetServicePrefix(serviceName))

	resp, err := s.client.GetClient().Get(ctx, start, clientv3.WithRange(end))
	if err != nil {
		return nil, storage.NewInternalError(fmt.Sprintf("从etcd读取失败: %v", err))
	}

	logs := make([]storage.StatusLog, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var log storage.StatusLog
		if err := json.Unmarshal(kv.Value, &log); err != nil {
			// 忽略无法解析的数据，继续处理其他数据
			continue
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// allLogs 按服务分别读取since之后的日志并按服务名分组
func (s *StatusStore) allLogs(ctx context.Context, since time.Time) (map[string][]storage.StatusLog, error) {
	names, err := s.serviceNames(ctx)
	if err != nil {
		return nil, err
	}

	byService := make(map[string][]storage.StatusLog, len(names))
	for _, name := range names {
		logs, err := s.serviceLogs(ctx, name, since)
		if err != nil {
			return nil, err
		}
		if len(logs) > 0 {
			byService[name] = logs
		}
	}
	return byService, nil
}

// serviceNames 跳跃扫描状态前缀，每个服务只读取一个键
func (s *StatusStore) serviceNames(ctx context.Context) ([]string, error) {
	prefix := s.client.GetStatusPrefix()
	end := clientv3.GetPrefixRangeEnd(prefix)

	var names []string
	start := prefix
	for {
		resp, err := s.client.GetClient().Get(ctx, start,
			clientv3.WithRange(end), clientv3.WithKeysOnly(), clientv3.WithLimit(1))
		if err != nil {
			return nil, storage.NewInternalError(fmt.Sprintf("从etcd读取失败: %v", err))
		}
		if len(resp.Kvs) == 0 {
			return names, nil
		}

		key := string(resp.Kvs[0].Key)
		name, ok := s.client.ServiceFromKey(key)
		if !ok {
			// 不符合日志键格式，跳过这个键
			start = key + "\x00"
			continue
		}
		names = append(names, name)
		start = clientv3.GetPrefixRangeEnd(s.client.GetServicePrefix(name))
	}
}
