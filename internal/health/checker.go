package health

import (
	"context"
	"fmt"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// historyDays 汇总时使用的历史统计窗口
const historyDays = 7

// Report 一轮完整检查的结果
type Report struct {
	AggregateStatus
	Checks    map[string]ProbeResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker 并发执行所有探针并汇总结果
type Checker struct {
	probes   []Probe
	store    storage.StatusStore
	recorder Recorder
	logger   config.Logger
	tracer   trace.Tracer
}

// NewChecker 创建检查器，store和recorder可以为nil
func NewChecker(probes []Probe, store storage.StatusStore, recorder Recorder, logger config.Logger) *Checker {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Checker{
		probes:   probes,
		store:    store,
		recorder: recorder,
		logger:   logger,
		tracer:   otel.Tracer("avatar-gateway/health"),
	}
}

// RunProbes 并发执行所有探针，结果顺序与探针顺序一致，并提交给记录器。
// 调用方取消不会中断探测，每个探针只受自身超时限制
func (c *Checker) RunProbes(ctx context.Context) []NamedResult {
	ctx = context.WithoutCancel(ctx)
	results := make([]NamedResult, len(c.probes))

	var g errgroup.Group
	for i, p := range c.probes {
		g.Go(func() error {
			results[i] = NamedResult{Name: p.Name(), Result: c.runProbe(ctx, p)}
			return nil
		})
	}
	_ = g.Wait()

	c.recorder.Record(results)
	return results
}

// Check 执行一轮探测并与历史统计合并，历史统计不可用时使用默认值
func (c *Checker) Check(ctx context.Context) *Report {
	results := c.RunProbes(ctx)

	var stats []*storage.ServiceStatistic
	if c.store != nil {
		var err error
		stats, err = c.store.GetAllServiceStatistics(ctx, historyDays)
		if err != nil {
			c.logger.Warn("获取历史统计失败，使用默认值", zap.Error(err))
			stats = nil
		}
	}

	checks := make(map[string]ProbeResult, len(results))
	for _, r := range results {
		checks[r.Name] = r.Result
	}

	return &Report{
		AggregateStatus: Aggregate(results, stats),
		Checks:          checks,
		Timestamp:       time.Now().UTC(),
	}
}

// runProbe 执行单个探针，panic按down处理
func (c *Checker) runProbe(ctx context.Context, p Probe) (result ProbeResult) {
	ctx, span := c.tracer.Start(ctx, "probe."+p.Name())
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("探针执行异常", zap.String("service", p.Name()), zap.Any("panic", rec))
			result = ProbeResult{Status: StatusDown, Message: fmt.Sprintf("probe failed: %v", rec)}
		}
		span.SetAttributes(attribute.String("probe.status", string(result.Status)))
	}()

	result = p.Check(ctx)
	if result.Status != StatusOperational {
		c.logger.Warn("探针状态异常",
			zap.String("service", p.Name()),
			zap.String("status", string(result.Status)),
			zap.String("message", result.Message))
	}
	return result
}
