package storage

import (
	"context"
	"time"
)

// 状态日志中使用的状态值
const (
	StatusOperational = "operational"
	StatusDegraded    = "degraded"
	StatusDown        = "down"
)

// StatusLog 一次探测的持久化记录
type StatusLog struct {
	ID           string    `json:"id"`
	ServiceName  string    `json:"service_name"`
	Status       string    `json:"status"`
	ResponseTime float64   `json:"response_time"` // 毫秒
	Message      string    `json:"message"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Incident 非正常状态的探测记录
type Incident struct {
	ServiceName  string    `json:"service_name"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	ResponseTime float64   `json:"response_time"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ServiceStatistic 某个服务在回溯窗口内的统计
type ServiceStatistic struct {
	ServiceName      string  `json:"service_name"`
	UptimePercentage float64 `json:"uptime_percentage"`
	IncidentCount    int     `json:"incident_count"`
	AvgResponseTime  float64 `json:"avg_response_time"`
	TotalChecks      int     `json:"total_checks"`
}

// ServiceUptime 某个服务在多个窗口下的可用率
type ServiceUptime struct {
	ServiceName string  `json:"service_name"`
	Uptime24h   float64 `json:"uptime_24h"`
	Uptime7d    float64 `json:"uptime_7d"`
	Uptime30d   float64 `json:"uptime_30d"`
}

// UptimeSummary 所有服务的可用率汇总
type UptimeSummary struct {
	Services    []ServiceUptime `json:"services"`
	Overall24h  float64         `json:"overall_24h"`
	Overall7d   float64         `json:"overall_7d"`
	Overall30d  float64         `json:"overall_30d"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// StatusStore 定义历史状态存储接口
type StatusStore interface {
	// SaveStatusLog 保存一次探测结果
	SaveStatusLog(ctx context.Context, serviceName, status string, responseTime float64, message string) error

	// GetServiceUptime 获取服务在最近hours小时内的可用率，没有记录时返回ErrNotFound
	GetServiceUptime(ctx context.Context, serviceName string, hours int) (float64, error)

	// GetServiceIncidents 获取服务在最近days天内的异常记录，按时间倒序
	GetServiceIncidents(ctx context.Context, serviceName string, days int) ([]*Incident, error)

	// GetUptimeSummary 获取所有服务的可用率汇总
	GetUptimeSummary(ctx context.Context) (*UptimeSummary, error)

	// GetAllServiceStatistics 获取所有服务在最近days天内的统计
	GetAllServiceStatistics(ctx context.Context, days int) ([]*ServiceStatistic, error)

	// Close 释放资源
	Close() error
}

// StorageError 定义存储操作可能返回的错误类型
type StorageError struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *StorageError) Error() string {
	return e.Message
}

// 定义错误代码
const (
	// ErrNotFound 资源不存在
	ErrNotFound = iota + 1
	// ErrInvalidArgument 参数无效
	ErrInvalidArgument
	// ErrInternal 内部错误
	ErrInternal
)

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) *StorageError {
	return &StorageError{
		Code:    ErrNotFound,
		Message: message,
	}
}

// NewInvalidArgumentError 创建参数无效错误
func NewInvalidArgumentError(message string) *StorageError {
	return &StorageError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *StorageError {
	return &StorageError{
		Code:    ErrInternal,
		Message: message,
	}
}

// IsNotFound 判断是否为资源不存在错误
func IsNotFound(err error) bool {
	se, ok := err.(*StorageError)
	return ok && se.Code == ErrNotFound
}
