package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUptimePercentage(t *testing.T) {
	_, ok := UptimePercentage(nil)
	assert.False(t, ok)

	logs := []StatusLog{
		{Status: StatusOperational},
		{Status: StatusOperational},
		{Status: StatusDown},
	}
	uptime, ok := UptimePercentage(logs)
	require.True(t, ok)
	assert.Equal(t, 66.67, uptime)
}

func TestStatistic(t *testing.T) {
	logs := []StatusLog{
		{Status: StatusOperational, ResponseTime: 100},
		{Status: StatusDegraded, ResponseTime: 2500},
		{Status: StatusDown, ResponseTime: 5000},
	}
	stat := Statistic("discord_api", logs)

	assert.Equal(t, "discord_api", stat.ServiceName)
	assert.Equal(t, 66.67, stat.UptimePercentage)
	assert.Equal(t, 2, stat.IncidentCount)
	assert.Equal(t, 2533.33, stat.AvgResponseTime)
	assert.Equal(t, 3, stat.TotalChecks)

	empty := Statistic("github_api", nil)
	assert.Equal(t, 0, empty.TotalChecks)
}

func TestStatistics_SortedAndSkipsEmpty(t *testing.T) {
	stats := Statistics(map[string][]StatusLog{
		"github_api":   {{Status: StatusOperational}},
		"cache_system": nil,
		"discord_api":  {{Status: StatusDown}},
	})

	require.Len(t, stats, 2)
	assert.Equal(t, "discord_api", stats[0].ServiceName)
	assert.Equal(t, "github_api", stats[1].ServiceName)
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	summary := Summarize(map[string][]StatusLog{
		"discord_api": {
			{Status: StatusDown, CheckedAt: now.Add(-10 * 24 * time.Hour)},
			{Status: StatusOperational, CheckedAt: now.Add(-time.Hour)},
		},
	}, now)

	require.Len(t, summary.Services, 1)
	assert.Equal(t, 100.0, summary.Services[0].Uptime24h)
	assert.Equal(t, 100.0, summary.Services[0].Uptime7d)
	assert.Equal(t, 50.0, summary.Services[0].Uptime30d)
	assert.Equal(t, now, summary.GeneratedAt)

	empty := Summarize(map[string][]StatusLog{}, now)
	assert.Equal(t, 100.0, empty.Overall24h)
}

func TestIncidentsOrdering(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	incidents := Incidents([]StatusLog{
		{Status: StatusDown, Message: "a", CheckedAt: base},
		{Status: StatusOperational, CheckedAt: base.Add(time.Minute)},
		{Status: StatusDegraded, Message: "b", CheckedAt: base.Add(2 * time.Minute)},
	})

	require.Len(t, incidents, 2)
	assert.Equal(t, "b", incidents[0].Message)
	assert.Equal(t, "a", incidents[1].Message)
}

func TestStorageErrors(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("x")))
	assert.False(t, IsNotFound(NewInternalError("x")))
	assert.Equal(t, "bad", NewInvalidArgumentError("bad").Error())
}
