// Package upstream 封装两个上游用户目录（聊天平台与代码托管平台）的HTTP客户端。
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxBodySize 上游响应体的读取上限
const maxBodySize = 1 << 20

// httpClient 两个目录客户端共用的请求逻辑
type httpClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	tracer     trace.Tracer
	authorize  func(req *http.Request)
}

func newHTTPClient(service, baseURL string, timeout time.Duration, authorize func(*http.Request)) *httpClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 404属于正常的业务结果，调用方主动取消也不代表上游故障，都不计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err) || errors.Is(err, context.Canceled)
		},
	})

	return &httpClient{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		tracer:     otel.Tracer("avatar-gateway/upstream"),
		authorize:  authorize,
	}
}

// getJSON 发送GET请求并把响应解析到out
func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	ctx, span := c.tracer.Start(ctx, c.service+" GET",
		trace.WithAttributes(attribute.String("http.path", path)))
	defer span.End()

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, path, out)
	})
	if err != nil {
		// 熔断器自身的错误统一视为网络错误
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = NewTransportError(c.service, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return NewTransportError(c.service, fmt.Errorf("创建HTTP请求失败: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "avatar-gateway/1.0")
	if c.authorize != nil {
		c.authorize(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewTransportError(c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return NewStatusError(c.service, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return NewDecodeError(c.service, err)
	}
	return nil
}
