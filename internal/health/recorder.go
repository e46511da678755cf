package health

import (
	"context"
	"sync"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/config"
	"github.com/hewenyu/avatar-gateway/pkg/storage"
	"go.uber.org/zap"
)

// DefaultQueueSize 记录队列默认容量
const DefaultQueueSize = 64

// saveTimeout 单条记录的写入超时
const saveTimeout = 5 * time.Second

// Recorder 接收探测结果并异步持久化，Record不得阻塞调用方
type Recorder interface {
	Record(results []NamedResult)
}

// NopRecorder 丢弃所有结果
type NopRecorder struct{}

// Record 不做任何事
func (NopRecorder) Record([]NamedResult) {}

// StoreRecorder 通过有界队列和单个后台协程把结果写入状态存储
type StoreRecorder struct {
	store  storage.StatusStore
	logger config.Logger
	queue  chan NamedResult
	done   chan struct{}

	mutex  sync.RWMutex
	closed bool
}

// NewStoreRecorder 创建记录器并启动后台写入协程
func NewStoreRecorder(store storage.StatusStore, queueSize int, logger config.Logger) *StoreRecorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &StoreRecorder{
		store:  store,
		logger: logger,
		queue:  make(chan NamedResult, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record 把结果放入队列，队列已满时丢弃并记录警告
func (r *StoreRecorder) Record(results []NamedResult) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.closed {
		return
	}
	for _, res := range results {
		select {
		case r.queue <- res:
		default:
			r.logger.Warn("状态记录队列已满，丢弃探测结果",
				zap.String("service", res.Name),
				zap.String("status", string(res.Result.Status)))
		}
	}
}

// Close 停止接收新结果并等待队列写完，ctx到期时直接返回
func (r *StoreRecorder) Close(ctx context.Context) error {
	r.mutex.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mutex.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *StoreRecorder) run() {
	defer close(r.done)
	for res := range r.queue {
		r.save(res)
	}
}

func (r *StoreRecorder) save(res NamedResult) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	err := r.store.SaveStatusLog(ctx, res.Name, string(res.Result.Status), res.Result.LatencyMillis(), res.Result.Message)
	if err != nil {
		r.logger.Error("保存状态记录失败",
			zap.String("service", res.Name),
			zap.Error(err))
	}
}
