package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"easypay/pkg/events"
	"easypay/pkg/logger"
)

// Source 事件来源
type Source interface {
	Pop(ctx context.Context) (events.Event, error)
}

// Worker 从队列取出事件并交给事件总线派发
type Worker struct {
	source  Source
	bus     *events.Bus
	metrics *QueueMetrics
	config  WorkerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerConfig 工作器配置
type WorkerConfig struct {
	WorkerCount     int           // 并发工作器数量
	MaxRetries      int           // 监听者失败后的重试次数
	RetryInterval   time.Duration // 重试间隔
	ShutdownTimeout time.Duration // 关闭超时时间
}

// NewWorker 创建新的工作器组
func NewWorker(source Source, bus *events.Bus, metrics *QueueMetrics, config WorkerConfig) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = NewQueueMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source:  source,
		bus:     bus,
		metrics: metrics,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动工作器组
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.startWorker(i)
	}
}

// startWorker 启动单个工作器
func (w *Worker) startWorker(id int) {
	defer w.wg.Done()

	logger.InfoString("Worker", "Start", fmt.Sprintf("Worker %d started", id))

	for {
		select {
		case <-w.ctx.Done():
			logger.InfoString("Worker", "Stop", fmt.Sprintf("Worker %d stopping", id))
			return
		default:
		}

		if err := w.processNext(); err != nil {
			if w.ctx.Err() != nil {
				continue
			}
			logger.ErrorString("Worker", "Error", fmt.Sprintf("Worker %d error: %v", id, err))
			// 错误恢复延迟
			select {
			case <-time.After(time.Second):
			case <-w.ctx.Done():
			}
		}
	}
}

// processNext 取出一个事件并派发
func (w *Worker) processNext() error {
	e, err := w.source.Pop(w.ctx)
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			return nil
		}
		return err
	}

	start := time.Now()
	defer func() {
		w.metrics.RecordProcessingTime(time.Since(start))
	}()

	return w.handle(e)
}

// handle 派发事件，失败时只重试失败的监听者
func (w *Worker) handle(e events.Event) error {
	// 派发使用独立的 context，关闭时已取出的事件仍然派发完
	err := w.bus.Dispatch(context.Background(), e)
	attempts := 1
	for ; err != nil && attempts <= w.config.MaxRetries; attempts++ {
		failed := events.FailedListeners(err)
		if len(failed) == 0 {
			break
		}
		select {
		case <-time.After(w.config.RetryInterval):
		case <-w.ctx.Done():
			return w.ctx.Err()
		}
		err = w.bus.DispatchTo(context.Background(), e, failed)
	}
	if err == nil {
		w.metrics.RecordSuccess(OpProcess)
		return nil
	}
	w.metrics.RecordError(OpProcess)
	return fmt.Errorf("dispatch %s (%s) failed after %d attempts: %w", e.Kind, e.ID, attempts, err)
}

// Stop 优雅关闭工作器组
func (w *Worker) Stop() {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("Worker", "Stop", "All workers stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("Worker", "Stop", "Worker shutdown timed out")
	}
}
