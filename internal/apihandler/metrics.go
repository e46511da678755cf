package apihandler

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/atomic"
)

// Metrics 进程级指标
type Metrics struct {
	APIRequestCount   int64          `json:"api_request_count"`
	APIErrorCount     int64          `json:"api_error_count"`
	AvgResponseTime   float64        `json:"avg_response_time"`
	CacheHitRate      float64        `json:"cache_hit_rate"`
	Uptime            string         `json:"uptime"`
	ResourceUsage     map[string]any `json:"resource_usage"`
	LastCollectedTime time.Time      `json:"last_collected_time"`
}

// requestMetrics 请求计数与平均响应时间
type requestMetrics struct {
	requests  *atomic.Int64
	errors    *atomic.Int64
	startTime time.Time

	mutex sync.Mutex
	// avgMillis 指数移动平均，单位毫秒
	avgMillis float64
}

func newRequestMetrics() *requestMetrics {
	return &requestMetrics{
		requests:  atomic.NewInt64(0),
		errors:    atomic.NewInt64(0),
		startTime: time.Now(),
	}
}

// middleware 统计每个请求的耗时，5xx计为错误
func (m *requestMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		m.requests.Inc()
		if c.Response().Status >= http.StatusInternalServerError {
			m.errors.Inc()
		}
		m.observe(float64(time.Since(start)) / float64(time.Millisecond))
		return nil
	}
}

func (m *requestMetrics) observe(millis float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.avgMillis == 0 {
		m.avgMillis = millis
	} else {
		m.avgMillis = (m.avgMillis*9 + millis) / 10
	}
}

func (m *requestMetrics) snapshot() Metrics {
	m.mutex.Lock()
	avg := m.avgMillis
	m.mutex.Unlock()

	return Metrics{
		APIRequestCount:   m.requests.Load(),
		APIErrorCount:     m.errors.Load(),
		AvgResponseTime:   avg,
		Uptime:            time.Since(m.startTime).Truncate(time.Second).String(),
		ResourceUsage:     getResourceUsage(),
		LastCollectedTime: time.Now(),
	}
}

// getMetricsHandler 返回进程级指标
func (h *EchoHandler) getMetricsHandler(c echo.Context) error {
	metrics := h.metrics.snapshot()
	if h.cache != nil {
		metrics.CacheHitRate = h.cache.Stats().HitRate()
	}
	return c.JSON(http.StatusOK, metrics)
}

// getResourceUsage 获取资源使用情况
func getResourceUsage() map[string]any {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]any{
		"memory_alloc":   formatBytes(memStats.Alloc),
		"memory_sys":     formatBytes(memStats.Sys),
		"memory_heap":    formatBytes(memStats.HeapAlloc),
		"num_gc":         memStats.NumGC,
		"num_goroutines": runtime.NumGoroutine(),
	}
}

// formatBytes 将字节数格式化为可读形式
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
