package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/apihandler"
	"github.com/hewenyu/avatar-gateway/internal/cache"
	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/hewenyu/avatar-gateway/internal/health"
	"github.com/hewenyu/avatar-gateway/internal/resolver"
	"github.com/hewenyu/avatar-gateway/internal/upstream"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	"github.com/hewenyu/avatar-gateway/pkg/storage/etcd"
	"github.com/hewenyu/avatar-gateway/pkg/storage/memory"
	"go.uber.org/zap"
)

const version = "0.1.0"

var (
	logger     config.Logger
	configFile string
	appConfig  *config.Config
)

func init() {
	// 解析命令行参数
	flag.StringVar(&configFile, "config", "", "配置文件路径")
}

func main() {
	flag.Parse()

	// 加载配置
	var err error
	appConfig, err = config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger, err = config.NewLogger(appConfig.Log.Development, appConfig.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 打印启动信息
	logger.Info("Avatar Gateway Starting...",
		zap.String("version", version),
		zap.String("address", appConfig.Server.Address()),
		zap.String("cache_backend", appConfig.Cache.Backend),
		zap.String("storage_backend", appConfig.Storage.Backend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化缓存
	c, closeCache, err := newCache(ctx, appConfig)
	if err != nil {
		logger.Error("初始化缓存失败", zap.Error(err))
		os.Exit(1)
	}

	// 初始化历史状态存储
	store, err := newStatusStore(appConfig)
	if err != nil {
		logger.Error("初始化状态存储失败", zap.Error(err))
		closeCache()
		os.Exit(1)
	}

	// 解析器和探针使用各自的客户端，探针不受解析器熔断状态影响
	res := resolver.New(
		upstream.NewDiscordClient(appConfig.Discord),
		upstream.NewGitHubClient(appConfig.GitHub),
		c,
		appConfig.Discord.CDNBaseURL,
		logger,
	)

	recorder := health.NewStoreRecorder(store, appConfig.Health.QueueSize, logger)
	checker := health.NewChecker(newProbes(appConfig, c), store, recorder, logger)

	handler := apihandler.NewAPIHandler(appConfig, logger, apihandler.Dependencies{
		Resolver: res,
		Checker:  checker,
		Store:    store,
		Cache:    c,
	})
	if err := handler.Start(); err != nil {
		logger.Error("启动HTTP服务失败", zap.Error(err))
		os.Exit(1)
	}

	// 等待信号以优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("接收到关闭信号，正在优雅关闭...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := handler.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭HTTP服务失败", zap.Error(err))
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Warn("状态记录队列未能全部写入", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("关闭状态存储失败", zap.Error(err))
	}
	cancel()
	closeCache()

	logger.Info("服务已关闭")
}

// newCache 根据配置创建缓存，返回的函数用于释放资源
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		mc := cache.NewMemoryCache(cfg.Cache.TTL)
		mc.StartCleanupRoutine(ctx, cfg.Cache.CleanupInterval)
		return mc, func() {}, nil
	case "redis":
		rc := cache.NewRedisCache(cache.NewRedisClient(cfg.Redis), cfg.Redis.KeyPrefix, cfg.Cache.TTL, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			// Redis不可用时缓存退化为永远未命中，服务仍然可用
			logger.Warn("Redis连接失败", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return rc, func() {
			if err := rc.Close(); err != nil {
				logger.Warn("关闭Redis连接失败", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("不支持的缓存后端: %s", cfg.Cache.Backend)
	}
}

// newStatusStore 根据配置创建历史状态存储
func newStatusStore(cfg *config.Config) (storage.StatusStore, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return memory.NewStatusStore(cfg.Storage.Retention), nil
	case "etcd":
		client, err := etcd.NewClient(cfg.Etcd)
		if err != nil {
			return nil, err
		}
		logger.Info("etcd连接成功", zap.Strings("endpoints", cfg.Etcd.Endpoints))
		return etcd.NewStatusStore(client, cfg.Storage.Retention), nil
	default:
		return nil, fmt.Errorf("不支持的存储后端: %s", cfg.Storage.Backend)
	}
}

// newProbes 创建四个固定探针
func newProbes(cfg *config.Config, c cache.Cache) []health.Probe {
	return []health.Probe{
		health.NewDiscordProbe(upstream.NewDiscordClient(cfg.Discord), cfg.Health.ProbeTimeout),
		health.NewGitHubProbe(upstream.NewGitHubClient(cfg.GitHub), cfg.Health.GitHubProbeUser, cfg.Health.ProbeTimeout),
		health.NewPipelineProbe(cfg.Server.PublicBaseURL, cfg.Health.TestUserID, cfg.Health.PipelineTimeout),
		health.NewCacheProbe(c),
	}
}
