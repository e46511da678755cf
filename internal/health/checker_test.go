package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/hewenyu/avatar-gateway/internal/upstream"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	"github.com/hewenyu/avatar-gateway/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProbe struct {
	name   string
	result ProbeResult
	delay  time.Duration
}

func (p *staticProbe) Name() string { return p.name }

func (p *staticProbe) Check(ctx context.Context) ProbeResult {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.result
}

type panicProbe struct{}

func (panicProbe) Name() string { return ServiceCache }

func (panicProbe) Check(ctx context.Context) ProbeResult { panic("boom") }

// captureRecorder 记录收到的结果
type captureRecorder struct {
	mu      sync.Mutex
	batches [][]NamedResult
}

func (r *captureRecorder) Record(results []NamedResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, results)
}

// statsErrorStore 统计查询失败
type statsErrorStore struct {
	*memory.StatusStore
}

func (statsErrorStore) GetAllServiceStatistics(ctx context.Context, days int) ([]*storage.ServiceStatistic, error) {
	return nil, errors.New("etcd unavailable")
}

func TestChecker_RunProbesConcurrently(t *testing.T) {
	probes := []Probe{
		&staticProbe{name: ServiceDiscordAPI, result: ProbeResult{Status: StatusOperational}, delay: 100 * time.Millisecond},
		&staticProbe{name: ServiceGitHubAPI, result: ProbeResult{Status: StatusOperational}, delay: 100 * time.Millisecond},
		&staticProbe{name: ServiceImagePipeline, result: ProbeResult{Status: StatusDegraded}, delay: 100 * time.Millisecond},
		&staticProbe{name: ServiceCache, result: ProbeResult{Status: StatusOperational}, delay: 100 * time.Millisecond},
	}
	rec := &captureRecorder{}
	c := NewChecker(probes, nil, rec, config.NewNopLogger())

	start := time.Now()
	results := c.RunProbes(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 350*time.Millisecond, "探针应并发执行")
	require.Len(t, results, 4)
	for i, p := range probes {
		assert.Equal(t, p.Name(), results[i].Name, "结果顺序与探针顺序一致")
	}
	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0], 4)
}

func TestChecker_PanicBecomesDown(t *testing.T) {
	c := NewChecker([]Probe{
		&staticProbe{name: ServiceDiscordAPI, result: ProbeResult{Status: StatusOperational}},
		panicProbe{},
	}, nil, nil, config.NewNopLogger())

	report := c.Check(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, StatusDown, report.Checks[ServiceCache].Status)
	assert.Contains(t, report.Checks[ServiceCache].Message, "boom")
	assert.Equal(t, StatusOperational, report.Checks[ServiceDiscordAPI].Status)
}

func TestChecker_CheckBlendsHistory(t *testing.T) {
	store := memory.NewStatusStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, store.SaveStatusLog(ctx, ServiceDiscordAPI, storage.StatusOperational, 100, ""))
	require.NoError(t, store.SaveStatusLog(ctx, ServiceDiscordAPI, storage.StatusDown, 300, "err"))

	c := NewChecker([]Probe{
		&staticProbe{name: ServiceDiscordAPI, result: ProbeResult{Status: StatusOperational, Latency: 50 * time.Millisecond}},
		&staticProbe{name: ServiceGitHubAPI, result: ProbeResult{Status: StatusOperational, Latency: 50 * time.Millisecond}},
	}, store, nil, config.NewNopLogger())

	report := c.Check(ctx)
	// (50 + 99) / 2
	assert.Equal(t, 74.5, report.Uptime)
	assert.Equal(t, 1, report.Last7Days.Incidents)
	assert.Equal(t, 200.0, report.Last7Days.AvgResponseTime)
	assert.Equal(t, int64(50), report.ResponseTime)
	assert.False(t, report.Timestamp.IsZero())
}

func TestChecker_StoreFailureFallsBack(t *testing.T) {
	store := statsErrorStore{memory.NewStatusStore(time.Hour)}
	c := NewChecker([]Probe{
		&staticProbe{name: ServiceDiscordAPI, result: ProbeResult{Status: StatusOperational, Latency: 40 * time.Millisecond}},
	}, store, nil, config.NewNopLogger())

	report := c.Check(context.Background())
	assert.Equal(t, StatusOperational, report.Status)
	assert.Equal(t, DefaultUptime, report.Uptime)
	assert.Equal(t, 40.0, report.Last7Days.AvgResponseTime)
}

func TestChecker_CallerCancelDoesNotRecordDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"url":"wss://gateway.discord.gg"}`))
	}))
	defer server.Close()

	client := upstream.NewDiscordClient(config.DiscordConfig{APIBaseURL: server.URL, Timeout: time.Second})
	rec := &captureRecorder{}
	c := NewChecker([]Probe{NewDiscordProbe(client, time.Second)}, nil, rec, config.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(10*time.Millisecond, cancel)

	report := c.Check(ctx)
	assert.Equal(t, StatusOperational, report.Status)
	assert.Equal(t, StatusOperational, report.Checks[ServiceDiscordAPI].Status, report.Checks[ServiceDiscordAPI].Message)

	require.Len(t, rec.batches, 1)
	assert.Equal(t, StatusOperational, rec.batches[0][0].Result.Status, "记录的历史不应出现down")
}
