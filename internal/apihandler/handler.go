package apihandler

import (
	"context"
	"net/http"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/cache"
	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/hewenyu/avatar-gateway/internal/health"
	"github.com/hewenyu/avatar-gateway/internal/resolver"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// ServiceName 服务名称
const ServiceName = "avatar-gateway"

// Handler 定义API处理器接口
type Handler interface {
	// Start 启动HTTP服务（非阻塞）
	Start() error

	// Shutdown 优雅关闭HTTP服务
	Shutdown(ctx context.Context) error
}

// Resolver 用户资源解析接口
type Resolver interface {
	ResolveAvatar(ctx context.Context, userID string, opts resolver.Options) (*resolver.UserAvatarInfo, error)
	ResolveBanner(ctx context.Context, userID string, opts resolver.Options) (*resolver.BannerInfo, error)
	ResolveUser(ctx context.Context, userID string, opts resolver.Options) (*resolver.UserProfile, error)
	ResolveGitHubUser(ctx context.Context, username string) (*resolver.GitHubProfile, error)
}

// StatusChecker 健康检查接口
type StatusChecker interface {
	Check(ctx context.Context) *health.Report
}

// Dependencies 处理器依赖的组件
type Dependencies struct {
	Resolver Resolver
	Checker  StatusChecker
	Store    storage.StatusStore
	Cache    cache.Cache
}

// EchoHandler 实现Handler接口
type EchoHandler struct {
	server   *echo.Echo
	cfg      *config.Config
	logger   config.Logger
	resolver Resolver
	checker  StatusChecker
	store    storage.StatusStore
	cache    cache.Cache
	metrics  *requestMetrics
}

// NewAPIHandler 创建一个新的API处理器并注册路由
func NewAPIHandler(cfg *config.Config, logger config.Logger, deps Dependencies) Handler {
	h := &EchoHandler{
		server:   echo.New(),
		cfg:      cfg,
		logger:   logger,
		resolver: deps.Resolver,
		checker:  deps.Checker,
		store:    deps.Store,
		cache:    deps.Cache,
		metrics:  newRequestMetrics(),
	}
	h.server.HideBanner = true
	h.server.HidePort = true

	// 添加中间件
	h.server.Use(middleware.Recover())
	h.server.Use(middleware.Logger())
	h.server.Use(middleware.Secure())
	h.server.Use(h.metrics.middleware)

	// 添加CORS中间件
	origins := cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h.server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	h.registerRoutes()
	return h
}

// Start 启动HTTP服务
func (h *EchoHandler) Start() error {
	addr := h.cfg.Server.Address()
	h.logger.Info("启动HTTP服务", zap.String("address", addr))

	// 启动服务（非阻塞）
	go func() {
		if err := h.server.Start(addr); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP服务启动失败", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown 优雅关闭HTTP服务
func (h *EchoHandler) Shutdown(ctx context.Context) error {
	h.logger.Info("正在关闭HTTP服务...")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("关闭HTTP服务出错", zap.Error(err))
		return err
	}
	return nil
}

// ServeHTTP 实现http.Handler接口
func (h *EchoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.server.ServeHTTP(w, r)
}

// registerRoutes 注册API路由
func (h *EchoHandler) registerRoutes() {
	h.server.GET("/", h.rootHandler)

	// 健康检查端点
	h.server.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   ServiceName,
		})
	})

	// 头像与横幅
	h.server.GET("/api/avatar/:id", h.getAvatarHandler)
	h.server.GET("/avatar/:id", h.redirectAvatarHandler)
	h.server.HEAD("/avatar/:id", h.redirectAvatarHandler)
	h.server.GET("/api/banner/:id", h.getBannerHandler)
	h.server.GET("/banner/:id", h.redirectBannerHandler)
	h.server.HEAD("/banner/:id", h.redirectBannerHandler)

	// 用户资料
	h.server.GET("/api/user/:id", h.getUserHandler)
	h.server.GET("/api/github/:username", h.getGitHubUserHandler)

	// 状态
	h.server.GET("/api/status", h.getStatusHandler)
	h.server.GET("/api/status/uptime", h.getUptimeHandler)
	h.server.GET("/api/status/services/:name", h.getServiceStatusHandler)

	// 缓存
	h.server.GET("/api/cache/stats", h.getCacheStatsHandler)

	// 指标
	h.server.GET("/api/metrics", h.getMetricsHandler)
}
