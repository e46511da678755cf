package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
)

// StatusStore 是基于内存的状态日志存储，单实例部署或测试时使用
type StatusStore struct {
	logs      map[string][]storage.StatusLog
	mutex     sync.RWMutex
	retention time.Duration
	now       func() time.Time
}

// Option 配置StatusStore
type Option func(*StatusStore)

// WithClock 替换存储使用的时钟
func WithClock(now func() time.Time) Option {
	return func(s *StatusStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStatusStore 创建新的内存状态存储，retention为保留时长
func NewStatusStore(retention time.Duration, opts ...Option) *StatusStore {
	if retention <= 0 {
		retention = storage.Window30d
	}
	s := &StatusStore{
		logs:      make(map[string][]storage.StatusLog),
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveStatusLog 保存一次探测结果
func (s *StatusStore) SaveStatusLog(ctx context.Context, serviceName, status string, responseTime float64, message string) error {
	if serviceName == "" {
		return storage.NewInvalidArgumentError("服务名称不能为空")
	}
	if !storage.ValidStatus(status) {
		return storage.NewInvalidArgumentError("无效的状态值: " + status)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	logs := append(s.logs[serviceName], storage.StatusLog{
		ID:           uuid.NewString(),
		ServiceName:  serviceName,
		Status:       status,
		ResponseTime: responseTime,
		Message:      message,
		CheckedAt:    now,
	})

	// 丢弃超过保留时长的记录
	s.logs[serviceName] = storage.Since(logs, now.Add(-s.retention))
	return nil
}

// GetServiceUptime 获取服务在最近hours小时内的可用率
func (s *StatusStore) GetServiceUptime(ctx context.Context, serviceName string, hours int) (float64, error) {
	if hours <= 0 {
		return 0, storage.NewInvalidArgumentError("时间窗口必须大于0")
	}

	logs := s.window(serviceName, time.Duration(hours)*time.Hour)
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
	return storage.Incidents(s.window(serviceName, time.Duration(days)*24*time.Hour)), nil
}

// GetUptimeSummary 获取所有服务的可用率汇总
func (s *StatusStore) GetUptimeSummary(ctx context.Context) (*storage.UptimeSummary, error) {
	return storage.Summarize(s.snapshot(), s.now()), nil
}

// GetAllServiceStatistics 获取所有服务在最近days天内的统计
func (s *StatusStore) GetAllServiceStatistics(ctx context.Context, days int) ([]*storage.ServiceStatistic, error) {
	if days <= 0 {
		return nil, storage.NewInvalidArgumentError("时间窗口必须大于0")
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	byService := s.snapshot()
	for name, logs := range byService {
		byService[name] = storage.Since(logs, since)
	}
	return storage.Statistics(byService), nil
}

// Close 内存存储无需释放资源
func (s *StatusStore) Close() error {
	return nil
}

func (s *StatusStore) window(serviceName string, d time.Duration) []storage.StatusLog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return storage.Since(s.logs[serviceName], s.now().Add(-d))
}

func (s *StatusStore) snapshot() map[string][]storage.StatusLog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make(map[string][]storage.StatusLog, len(s.logs))
	for name, logs := range s.logs {
		copied := make([]storage.StatusLog, len(logs))
		copy(copied, logs)
		out[name] = copied
	}
	return out
}
