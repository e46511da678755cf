package health

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hewenyu/avatar-gateway/internal/cache"
	"github.com/hewenyu/avatar-gateway/internal/upstream"
)

// 延迟阈值
const (
	UpstreamSlowThreshold = 2000 * time.Millisecond
	PipelineSlowThreshold = 4000 * time.Millisecond

	// CacheTestTTL 缓存自检条目的过期时间
	CacheTestTTL = 5 * time.Second
)

// Probe 单个依赖的健康探针，Check不得panic或返回错误
type Probe interface {
	Name() string
	Check(ctx context.Context) ProbeResult
}

// Clock 返回当前时间
type Clock func() time.Time

// GatewayClient 聊天平台网关接口
type GatewayClient interface {
	Gateway(ctx context.Context) (*upstream.Gateway, error)
}

// GitHubUserClient 代码托管平台用户接口
type GitHubUserClient interface {
	FetchUser(ctx context.Context, username string) (*upstream.GitHubUser, error)
}

// timed 在fn前后计时
func timed(now Clock, fn func() (Status, string)) ProbeResult {
	start := now()
	status, message := fn()
	latency := now().Sub(start)
	if latency < 0 {
		latency = 0
	}
	return ProbeResult{Status: status, Latency: latency, Message: message}
}

// DiscordProbe 聊天平台目录可达性探针
type DiscordProbe struct {
	client  GatewayClient
	timeout time.Duration
	now     Clock
}

// NewDiscordProbe 创建聊天平台探针
func NewDiscordProbe(client GatewayClient, timeout time.Duration) *DiscordProbe {
	return &DiscordProbe{client: client, timeout: timeout, now: time.Now}
}

// Name 返回服务名称
func (p *DiscordProbe) Name() string { return ServiceDiscordAPI }

// Check 请求网关接口
func (p *DiscordProbe) Check(ctx context.Context) ProbeResult {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	var (
		gw  *upstream.Gateway
		err error
	)
	result := timed(p.now, func() (Status, string) {
		gw, err = p.client.Gateway(ctx)
		return StatusOperational, ""
	})
	result.Status, result.Message = classifyDiscord(gw, err, result.Latency)
	return result
}

func classifyDiscord(gw *upstream.Gateway, err error, latency time.Duration) (Status, string) {
	if err != nil {
		return StatusDown, fmt.Sprintf("Discord API unreachable: %v", err)
	}
	if gw == nil || gw.URL == "" {
		return StatusDegraded, "Discord API responded without gateway url"
	}
	if latency > UpstreamSlowThreshold {
		return StatusDegraded, fmt.Sprintf("Discord API slow response (%dms)", latency.Milliseconds())
	}
	return StatusOperational, "Discord API operational"
}

// GitHubProbe 代码托管平台目录可达性探针
type GitHubProbe struct {
	client   GitHubUserClient
	username string
	timeout  time.Duration
	now      Clock
}

// NewGitHubProbe 创建代码托管平台探针
func NewGitHubProbe(client GitHubUserClient, username string, timeout time.Duration) *GitHubProbe {
	if username == "" {
		username = "github"
	}
	return &GitHubProbe{client: client, username: username, timeout: timeout, now: time.Now}
}

// Name 返回服务名称
func (p *GitHubProbe) Name() string { return ServiceGitHubAPI }

// Check 请求一个已知用户
func (p *GitHubProbe) Check(ctx context.Context) ProbeResult {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	var err error
	result := timed(p.now, func() (Status, string) {
		_, err = p.client.FetchUser(ctx, p.username)
		return StatusOperational, ""
	})
	result.Status, result.Message = classifyGitHub(err, result.Latency)
	return result
}

func classifyGitHub(err error, latency time.Duration) (Status, string) {
	if err != nil {
		return StatusDown, fmt.Sprintf("GitHub API unreachable: %v", err)
	}
	if latency > UpstreamSlowThreshold {
		return StatusDegraded, fmt.Sprintf("GitHub API slow response (%dms)", latency.Milliseconds())
	}
	return StatusOperational, "GitHub API operational"
}

// PipelineProbe 通过服务自身的头像跳转接口做端到端检查
type PipelineProbe struct {
	client *http.Client
	url    string
	now    Clock
}

// NewPipelineProbe 创建图片链路探针，baseURL为服务对外地址
func NewPipelineProbe(baseURL, testUserID string, timeout time.Duration) *PipelineProbe {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &PipelineProbe{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(baseURL, "/") + "/avatar/" + testUserID,
		now:    time.Now,
	}
}

// Name 返回服务名称
func (p *PipelineProbe) Name() string { return ServiceImagePipeline }

// Check 对头像地址发送HEAD请求，跟随跳转直到图片本身
func (p *PipelineProbe) Check(ctx context.Context) ProbeResult {
	var (
		statusCode  int
		contentType string
		err         error
	)
	result := timed(p.now, func() (Status, string) {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
		if err != nil {
			return StatusDown, ""
		}
		var resp *http.Response
		resp, err = p.client.Do(req)
		if err != nil {
			return StatusDown, ""
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		statusCode = resp.StatusCode
		contentType = resp.Header.Get("Content-Type")
		return StatusOperational, ""
	})
	result.Status, result.Message = classifyPipeline(statusCode, contentType, err, result.Latency)
	return result
}

func classifyPipeline(statusCode int, contentType string, err error, latency time.Duration) (Status, string) {
	if err != nil {
		return StatusDown, fmt.Sprintf("Image pipeline request failed: %v", err)
	}
	if statusCode < 200 || statusCode > 299 {
		return StatusDown, fmt.Sprintf("Image pipeline returned HTTP %d", statusCode)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return StatusDegraded, fmt.Sprintf("Image pipeline returned unexpected content type %q", contentType)
	}
	if latency > PipelineSlowThreshold {
		return StatusDegraded, fmt.Sprintf("Image pipeline slow response (%dms)", latency.Milliseconds())
	}
	return StatusOperational, "Image pipeline operational"
}

// CacheProbe 缓存读写自检探针
type CacheProbe struct {
	cache cache.Cache
	now   Clock
}

// NewCacheProbe 创建缓存探针
func NewCacheProbe(c cache.Cache) *CacheProbe {
	return &CacheProbe{cache: c, now: time.Now}
}

// Name 返回服务名称
func (p *CacheProbe) Name() string { return ServiceCache }

// Check 写入一个唯一的短期条目，读回后删除
func (p *CacheProbe) Check(ctx context.Context) ProbeResult {
	return timed(p.now, func() (Status, string) {
		key := "health_check_" + uuid.NewString()
		want := []byte(uuid.NewString())

		p.cache.Set(ctx, key, want, CacheTestTTL)
		got, ok := p.cache.Get(ctx, key)
		p.cache.Delete(ctx, key)

		// 后端不可用时读回未命中，记为degraded
		if !ok || !bytes.Equal(got, want) {
			return StatusDegraded, "Cache read-back mismatch"
		}
		stats := p.cache.Stats()
		return StatusOperational, fmt.Sprintf("Cache operational (%s, hit rate %.1f%%)", stats.Backend, stats.HitRate()*100)
	})
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
