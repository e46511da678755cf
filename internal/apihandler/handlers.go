package apihandler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/resolver"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// uptimeHours 单服务可用率窗口
	uptimeHours = 24
	// incidentDays 单服务异常记录窗口
	incidentDays = 7
	// redirectMaxAge 跳转响应的缓存时间，与缓存TTL保持一致
	redirectMaxAge = 60
)

// ServiceStatusResponse 单个服务的历史状态
type ServiceStatusResponse struct {
	Service   string              `json:"service"`
	Uptime24h float64             `json:"uptime_24h"`
	Incidents []*storage.Incident `json:"incidents"`
	Timestamp string              `json:"timestamp"`
}

// CacheStatsResponse 缓存统计
type CacheStatsResponse struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Deletes int64   `json:"deletes"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// rootHandler 返回服务信息
func (h *EchoHandler) rootHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": ServiceName,
		"endpoints": []string{
			"/health",
			"/api/avatar/:id",
			"/avatar/:id",
			"/api/banner/:id",
			"/banner/:id",
			"/api/user/:id",
			"/api/github/:username",
			"/api/status",
			"/api/status/uptime",
			"/api/status/services/:name",
			"/api/cache/stats",
			"/api/metrics",
		},
	})
}

// getAvatarHandler 返回头像解析结果
func (h *EchoHandler) getAvatarHandler(c echo.Context) error {
	opts, err := parseOptions(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	info, err := h.resolver.ResolveAvatar(c.Request().Context(), c.Param("id"), opts)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// redirectAvatarHandler 跳转到头像地址
func (h *EchoHandler) redirectAvatarHandler(c echo.Context) error {
	opts, err := parseOptions(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	info, err := h.resolver.ResolveAvatar(c.Request().Context(), c.Param("id"), opts)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return redirect(c, info.AvatarURL)
}

// getBannerHandler 返回横幅解析结果
func (h *EchoHandler) getBannerHandler(c echo.Context) error {
	opts, err := parseOptions(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	info, err := h.resolver.ResolveBanner(c.Request().Context(), c.Param("id"), opts)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// redirectBannerHandler 跳转到横幅地址，没有横幅时返回404
func (h *EchoHandler) redirectBannerHandler(c echo.Context) error {
	opts, err := parseOptions(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	info, err := h.resolver.ResolveBanner(c.Request().Context(), c.Param("id"), opts)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return redirect(c, info.BannerURL)
}

// getUserHandler 返回完整用户资料
func (h *EchoHandler) getUserHandler(c echo.Context) error {
	opts, err := parseOptions(c)
	if err != nil {
		return h.errorResponse(c, err)
	}

	profile, err := h.resolver.ResolveUser(c.Request().Context(), c.Param("id"), opts)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// getGitHubUserHandler 返回代码托管平台用户资料
func (h *EchoHandler) getGitHubUserHandler(c echo.Context) error {
	profile, err := h.resolver.ResolveGitHubUser(c.Request().Context(), c.Param("username"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// getStatusHandler 执行一轮健康检查
func (h *EchoHandler) getStatusHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, h.checker.Check(c.Request().Context()))
}

// getUptimeHandler 返回历史可用率汇总
func (h *EchoHandler) getUptimeHandler(c echo.Context) error {
	summary, err := h.store.GetUptimeSummary(c.Request().Context())
	if err != nil {
		h.logger.Error("获取可用率汇总失败", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, newErrorBody("status history unavailable"))
	}
	return c.JSON(http.StatusOK, summary)
}

// getServiceStatusHandler 返回单个服务24小时可用率和7天异常记录
func (h *EchoHandler) getServiceStatusHandler(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("name")

	uptime, err := h.store.GetServiceUptime(ctx, name, uptimeHours)
	if err != nil {
		if storage.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, newErrorBody("no status history for service"))
		}
		h.logger.Error("获取服务可用率失败", zap.String("service", name), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, newErrorBody("status history unavailable"))
	}

	incidents, err := h.store.GetServiceIncidents(ctx, name, incidentDays)
	if err != nil {
		h.logger.Warn("获取服务异常记录失败", zap.String("service", name), zap.Error(err))
		incidents = []*storage.Incident{}
	}

	return c.JSON(http.StatusOK, &ServiceStatusResponse{
		Service:   name,
		Uptime24h: uptime,
		Incidents: incidents,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// getCacheStatsHandler 返回缓存统计
func (h *EchoHandler) getCacheStatsHandler(c echo.Context) error {
	stats := h.cache.Stats()
	return c.JSON(http.StatusOK, &CacheStatsResponse{
		Backend: stats.Backend,
		Hits:    stats.Hits,
		Misses:  stats.Misses,
		Sets:    stats.Sets,
		Deletes: stats.Deletes,
		Entries: stats.Entries,
		HitRate: stats.HitRate(),
	})
}

// parseOptions 解析size和format参数，size不是整数时返回参数错误
func parseOptions(c echo.Context) (resolver.Options, error) {
	opts := resolver.Options{Format: c.QueryParam("format")}

	raw := strings.TrimSpace(c.QueryParam("size"))
	if raw == "" {
		return opts, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return opts, resolver.NewClientInputError("size必须是整数")
	}
	opts.Size = size
	return opts, nil
}

func redirect(c echo.Context, location string) error {
	c.Response().Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(redirectMaxAge))
	return c.Redirect(http.StatusFound, location)
}
