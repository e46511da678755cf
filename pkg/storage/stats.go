package storage

import (
	"math"
	"sort"
	"time"
)

// 汇总使用的时间窗口
const (
	Window24h = 24 * time.Hour
	Window7d  = 7 * 24 * time.Hour
	Window30d = 30 * 24 * time.Hour
)

// IsUp 非down状态都计为可用
func IsUp(status string) bool {
	return status != StatusDown
}

// IsIncident 非operational状态都计为一次异常
func IsIncident(status string) bool {
	return status != StatusOperational
}

// ValidStatus 判断状态值是否合法
func ValidStatus(status string) bool {
	switch status {
	case StatusOperational, StatusDegraded, StatusDown:
		return true
	}
	return false
}

// Since 过滤出checkedAt不早于since的记录
func Since(logs []StatusLog, since time.Time) []StatusLog {
	out := make([]StatusLog, 0, len(logs))
	for _, l := range logs {
		if !l.CheckedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out
}

// UptimePercentage 计算可用率，保留两位小数；没有记录时ok为false
func UptimePercentage(logs []StatusLog) (uptime float64, ok bool) {
	if len(logs) == 0 {
		return 0, false
	}
	up := 0
	for _, l := range logs {
		if IsUp(l.Status) {
			up++
		}
	}
	return round2(float64(up) / float64(len(logs)) * 100), true
}

// Incidents 提取异常记录，按时间倒序
func Incidents(logs []StatusLog) []*Incident {
	incidents := make([]*Incident, 0)
	for _, l := range logs {
		if IsIncident(l.Status) {
			incidents = append(incidents, &Incident{
				ServiceName:  l.ServiceName,
				Status:       l.Status,
				Message:      l.Message,
				ResponseTime: l.ResponseTime,
				OccurredAt:   l.CheckedAt,
			})
		}
	}
	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].OccurredAt.After(incidents[j].OccurredAt)
	})
	return incidents
}

// Statistic 计算某个服务的统计
func Statistic(serviceName string, logs []StatusLog) *ServiceStatistic {
	stat := &ServiceStatistic{ServiceName: serviceName, TotalChecks: len(logs)}
	if len(logs) == 0 {
		return stat
	}

	var total float64
	for _, l := range logs {
		total += l.ResponseTime
		if IsIncident(l.Status) {
			stat.IncidentCount++
		}
	}
	stat.UptimePercentage, _ = UptimePercentage(logs)
	stat.AvgResponseTime = round2(total / float64(len(logs)))
	return stat
}

// Statistics 按服务名分组计算统计，结果按服务名排序，没有记录的服务不出现
func Statistics(byService map[string][]StatusLog) []*ServiceStatistic {
	stats := make([]*ServiceStatistic, 0, len(byService))
	for name, logs := range byService {
		if len(logs) == 0 {
			continue
		}
		stats = append(stats, Statistic(name, logs))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ServiceName < stats[j].ServiceName })
	return stats
}

// Summarize 计算所有服务的可用率汇总，没有记录的窗口按100%计
func Summarize(byService map[string][]StatusLog, now time.Time) *UptimeSummary {
	summary := &UptimeSummary{Services: make([]ServiceUptime, 0, len(byService)), GeneratedAt: now}

	var all24, all7, all30 []StatusLog
	for name, logs := range byService {
		w24 := Since(logs, now.Add(-Window24h))
		w7 := Since(logs, now.Add(-Window7d))
		w30 := Since(logs, now.Add(-Window30d))
		all24 = append(all24, w24...)
		all7 = append(all7, w7...)
		all30 = append(all30, w30...)

		summary.Services = append(summary.Services, ServiceUptime{
			ServiceName: name,
			Uptime24h:   uptimeOrFull(w24),
			Uptime7d:    uptimeOrFull(w7),
			Uptime30d:   uptimeOrFull(w30),
		})
	}
	sort.Slice(summary.Services, func(i, j int) bool {
		return summary.Services[i].ServiceName < summary.Services[j].ServiceName
	})

	summary.Overall24h = uptimeOrFull(all24)
	summary.Overall7d = uptimeOrFull(all7)
	summary.Overall30d = uptimeOrFull(all30)
	return summary
}

func uptimeOrFull(logs []StatusLog) float64 {
	if uptime, ok := UptimePercentage(logs); ok {
		return uptime
	}
	return 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
