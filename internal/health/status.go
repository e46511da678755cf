// Package health 实现依赖探针、探测结果的汇总以及探测结果的异步持久化。
package health

import (
	"encoding/json"
	"math"
	"time"

	"github.com/hewenyu/avatar-gateway/pkg/storage"
)

// Status 探测状态
type Status string

const (
	// StatusOperational 正常
	StatusOperational Status = storage.StatusOperational
	// StatusDegraded 可用但存在问题
	StatusDegraded Status = storage.StatusDegraded
	// StatusDown 不可用
	StatusDown Status = storage.StatusDown
)

// 固定的服务名称，同时用作持久化时的服务标签
const (
	ServiceDiscordAPI    = "discord_api"
	ServiceGitHubAPI     = "github_api"
	ServiceImagePipeline = "image_pipeline"
	ServiceCache         = "cache_system"
)

// Rank 返回状态的严重程度，down(3) > degraded(2) > operational(1)
func (s Status) Rank() int {
	switch s {
	case StatusDown:
		return 3
	case StatusDegraded:
		return 2
	case StatusOperational:
		return 1
	default:
		return 0
	}
}

// ProbeResult 单次探测结果，创建后不再修改
type ProbeResult struct {
	Status  Status
	Latency time.Duration
	Message string
}

// LatencyMillis 以毫秒返回延迟
func (r ProbeResult) LatencyMillis() float64 {
	return float64(r.Latency) / float64(time.Millisecond)
}

type probeResultJSON struct {
	Status       Status `json:"status"`
	ResponseTime int64  `json:"response_time"`
	Message      string `json:"message"`
}

// MarshalJSON 延迟以整数毫秒输出
func (r ProbeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(probeResultJSON{
		Status:       r.Status,
		ResponseTime: int64(math.Round(r.LatencyMillis())),
		Message:      r.Message,
	})
}

// NamedResult 带服务名称的探测结果
type NamedResult struct {
	Name   string
	Result ProbeResult
}
