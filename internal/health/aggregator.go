package health

import (
	"math"

	"github.com/hewenyu/avatar-gateway/pkg/storage"
)

// DefaultUptime 没有历史统计时使用的可用率
const DefaultUptime = 99.0

// ServiceCounts 各状态的服务数量
type ServiceCounts struct {
	Total       int `json:"total"`
	Operational int `json:"operational"`
	Degraded    int `json:"degraded"`
	Down        int `json:"down"`
}

// HistorySummary 最近7天的历史汇总
type HistorySummary struct {
	Incidents       int     `json:"incidents"`
	AvgResponseTime float64 `json:"avg_response_time"`
}

// AggregateStatus 一轮探测的汇总结果
type AggregateStatus struct {
	Status       Status         `json:"status"`
	Uptime       float64        `json:"uptime"`
	ResponseTime int64          `json:"response_time"`
	Services     ServiceCounts  `json:"services"`
	Last7Days    HistorySummary `json:"last_7_days"`
}

// Aggregate 把本轮探测结果与最近7天的历史统计合并，stats可以为nil。
// 可用率按探针名称匹配历史统计，异常次数和历史平均延迟覆盖全部统计
func Aggregate(results []NamedResult, stats []*storage.ServiceStatistic) AggregateStatus {
	agg := AggregateStatus{Status: StatusOperational}
	var (
		latencyTotal float64
		uptimeTotal  float64
		histTotal    float64
		histCount    int
	)

	byName := make(map[string]*storage.ServiceStatistic, len(stats))
	for _, s := range stats {
		if s == nil {
			continue
		}
		byName[s.ServiceName] = s
		agg.Last7Days.Incidents += s.IncidentCount
		histTotal += s.AvgResponseTime
		histCount++
	}

	for _, r := range results {
		if r.Result.Status.Rank() > agg.Status.Rank() {
			agg.Status = r.Result.Status
		}
		switch r.Result.Status {
		case StatusOperational:
			agg.Services.Operational++
		case StatusDegraded:
			agg.Services.Degraded++
		case StatusDown:
			agg.Services.Down++
		}
		latencyTotal += r.Result.LatencyMillis()

		if stat, ok := byName[r.Name]; ok {
			uptimeTotal += stat.UptimePercentage
		} else {
			uptimeTotal += DefaultUptime
		}
	}
	agg.Services.Total = len(results)

	agg.Uptime = DefaultUptime
	if len(results) > 0 {
		agg.Uptime = math.Round(uptimeTotal/float64(len(results))*10) / 10
		agg.ResponseTime = int64(math.Round(latencyTotal / float64(len(results))))
	}
	if histCount > 0 {
		agg.Last7Days.AvgResponseTime = math.Round(histTotal/float64(histCount)*100) / 100
	} else {
		agg.Last7Days.AvgResponseTime = float64(agg.ResponseTime)
	}
	return agg
}
