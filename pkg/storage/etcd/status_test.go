package etcd

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// 编译时检查
var _ storage.StatusStore = (*StatusStore)(nil)

// 检查是否有可用的etcd环境
func hasEtcdEnvironment() bool {
	return os.Getenv("ETCD_ENDPOINTS") != ""
}

// 这些测试需要一个运行中的etcd实例
// 如果没有设置ETCD_ENDPOINTS环境变量，测试将被跳过
func TestEtcdStatusStore_IntegrationTest(t *testing.T) {
	if !hasEtcdEnvironment() {
		t.Skip("跳过etcd集成测试 - 未设置ETCD_ENDPOINTS环境变量")
	}

	// 每次测试使用独立前缀，避免互相干扰
	prefix := "/avatar-gateway-test/" + uuid.NewString() + "/"
	client, err := NewClient(config.EtcdConfig{
		Endpoints:   []string{os.Getenv("ETCD_ENDPOINTS")},
		DialTimeout: 5 * time.Second,
		Username:    os.Getenv("ETCD_USERNAME"),
		Password:    os.Getenv("ETCD_PASSWORD"),
		Prefix:      prefix,
	})
	require.NoError(t, err, "创建etcd客户端失败")

	store := NewStatusStore(client, time.Hour)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	defer func() {
		client.GetClient().Delete(context.Background(), prefix, clientv3.WithPrefix())
	}()

	// 超出7天窗口的旧日志
	store.now = func() time.Time { return time.Now().Add(-10 * 24 * time.Hour) }
	require.NoError(t, store.SaveStatusLog(ctx, "github_api", storage.StatusDown, 900, "old"))
	store.now = time.Now
	require.NoError(t, store.SaveStatusLog(ctx, "discord_api", storage.StatusOperational, 100, "ok"))
	require.NoError(t, store.SaveStatusLog(ctx, "discord_api", storage.StatusDown, 300, "timeout"))
	require.NoError(t, store.SaveStatusLog(ctx, "github_api", storage.StatusOperational, 80, "ok"))

	t.Run("GetServiceUptime", func(t *testing.T) {
		uptime, err := store.GetServiceUptime(ctx, "discord_api", 1)
		require.NoError(t, err)
		assert.Equal(t, 50.0, uptime)

		_, err = store.GetServiceUptime(ctx, "cache_system", 1)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("GetServiceIncidents", func(t *testing.T) {
		incidents, err := store.GetServiceIncidents(ctx, "discord_api", 1)
		require.NoError(t, err)
		require.Len(t, incidents, 1)
		assert.Equal(t, "timeout", incidents[0].Message)
	})

	t.Run("GetAllServiceStatistics", func(t *testing.T) {
		stats, err := store.GetAllServiceStatistics(ctx, 7)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "discord_api", stats[0].ServiceName)
		assert.Equal(t, 200.0, stats[0].AvgResponseTime)
		assert.Equal(t, "github_api", stats[1].ServiceName)
		assert.Equal(t, 0, stats[1].IncidentCount, "窗口外的日志不参与统计")
	})

	t.Run("GetUptimeSummary", func(t *testing.T) {
		summary, err := store.GetUptimeSummary(ctx)
		require.NoError(t, err)
		assert.Len(t, summary.Services, 2)
	})
}

func TestLeaseCache_SharesLeaseWithinBucket(t *testing.T) {
	leases := newLeaseCache(30*24*time.Hour, time.Hour)

	var grants []int64
	grant := func(ctx context.Context, ttl int64) (clientv3.LeaseID, error) {
		grants = append(grants, ttl)
		return clientv3.LeaseID(len(grants)), nil
	}

	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	first, err := leases.get(ctx, base, grant)
	require.NoError(t, err)
	second, err := leases.get(ctx, base.Add(59*time.Minute), grant)
	require.NoError(t, err)
	assert.Equal(t, first, second, "同一时间段共用租约")

	third, err := leases.get(ctx, base.Add(time.Hour), grant)
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "进入新的时间段创建新租约")

	require.Len(t, grants, 2)
	// 保留时长加一个时间段
	assert.Equal(t, int64((30*24+1)*3600), grants[0])
}

func TestLeaseCache_InvalidateAndGrantError(t *testing.T) {
	leases := newLeaseCache(time.Hour, time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := leases.get(ctx, now, func(ctx context.Context, ttl int64) (clientv3.LeaseID, error) {
		return 0, errors.New("etcd unavailable")
	})
	require.Error(t, err)

	calls := 0
	grant := func(ctx context.Context, ttl int64) (clientv3.LeaseID, error) {
		calls++
		return clientv3.LeaseID(100 + calls), nil
	}
	id, err := leases.get(ctx, now, grant)
	require.NoError(t, err)
	assert.Equal(t, clientv3.LeaseID(101), id)

	leases.invalidate(id)
	id, err = leases.get(ctx, now, grant)
	require.NoError(t, err)
	assert.Equal(t, clientv3.LeaseID(102), id, "失效后重新创建")
	assert.Equal(t, 2, calls)
}
