package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MetricOperation 定义指标操作类型
type MetricOperation string

const (
	OpPush    MetricOperation = "push"
	OpPop     MetricOperation = "pop"
	OpProcess MetricOperation = "process"
)

// LatencyStats 延迟统计
type LatencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// record 记录延迟数据
func (s *LatencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

// LatencySnapshot 延迟统计快照，单位毫秒
type LatencySnapshot struct {
	Count int64   `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := LatencySnapshot{
		Count: s.count,
		MinMs: float64(s.min) / float64(time.Millisecond),
		MaxMs: float64(s.max) / float64(time.Millisecond),
	}
	if s.count > 0 {
		snap.AvgMs = float64(s.total) / float64(s.count) / float64(time.Millisecond)
	}
	return snap
}

// QueueMetrics 队列指标收集器
type QueueMetrics struct {
	totalTasks      atomic.Int64
	successfulTasks atomic.Int64
	failedTasks     atomic.Int64
	errorsByOp      sync.Map // map[MetricOperation]*atomic.Int64

	pushLatency    LatencyStats
	popLatency     LatencyStats
	processLatency LatencyStats

	// 队列状态
	queueLength     atomic.Int64
	avgWaitTime     atomic.Int64 // 平均等待时间(毫秒)
	waited          atomic.Int64
	peakQueueLength atomic.Int64

	waitTimeStart sync.Map // map[eventID]time.Time
}

// NewQueueMetrics 创建新的指标收集器
func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{}
}

// RecordSuccess 记录成功操作
func (m *QueueMetrics) RecordSuccess(op MetricOperation) {
	m.successfulTasks.Add(1)
	m.totalTasks.Add(1)
}

// RecordError 记录失败操作
func (m *QueueMetrics) RecordError(op MetricOperation) {
	m.failedTasks.Add(1)
	m.totalTasks.Add(1)
	counter, _ := m.errorsByOp.LoadOrStore(op, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
}

// StartWaitTime 记录事件入队时间
func (m *QueueMetrics) StartWaitTime(eventID string) {
	m.waitTimeStart.Store(eventID, time.Now())
}

// EndWaitTime 计算并更新平均等待时间，只统计本进程入队的事件
func (m *QueueMetrics) EndWaitTime(eventID string) {
	startTime, ok := m.waitTimeStart.LoadAndDelete(eventID)
	if !ok {
		return
	}
	wait := time.Since(startTime.(time.Time)).Milliseconds()
	n := m.waited.Add(1)
	current := m.avgWaitTime.Load()
	m.avgWaitTime.Store(current + (wait-current)/n)
}

// SetQueueLength 更新队列长度及峰值
func (m *QueueMetrics) SetQueueLength(n int64) {
	m.queueLength.Store(n)
	for {
		peak := m.peakQueueLength.Load()
		if n <= peak || m.peakQueueLength.CompareAndSwap(peak, n) {
			return
		}
	}
}

// RecordProcessingTime 记录事件处理时间
func (m *QueueMetrics) RecordProcessingTime(d time.Duration) {
	m.processLatency.record(d)
}

// RecordPushLatency 记录推送延迟
func (m *QueueMetrics) RecordPushLatency(d time.Duration) {
	m.pushLatency.record(d)
}

// RecordPopLatency 记录获取延迟
func (m *QueueMetrics) RecordPopLatency(d time.Duration) {
	m.popLatency.record(d)
}

// Monitor 可观测的队列，*EventQueue 实现了该接口
type Monitor interface {
	Len(ctx context.Context) (int64, error)
	Metrics() *QueueMetrics
}

// Refresh 读取当前队列长度后返回快照，读取失败时沿用上次的长度
func Refresh(ctx context.Context, m Monitor) (Snapshot, error) {
	n, err := m.Len(ctx)
	if err == nil {
		m.Metrics().SetQueueLength(n)
	}
	return m.Metrics().Snapshot(), err
}

// Snapshot 指标快照
type Snapshot struct {
	Total           int64            `json:"total"`
	Succeeded       int64            `json:"succeeded"`
	Failed          int64            `json:"failed"`
	ErrorsByOp      map[string]int64 `json:"errors_by_op"`
	QueueLength     int64            `json:"queue_length"`
	PeakQueueLength int64            `json:"peak_queue_length"`
	AvgWaitMs       int64            `json:"avg_wait_ms"`
	Push            LatencySnapshot  `json:"push"`
	Pop             LatencySnapshot  `json:"pop"`
	Process         LatencySnapshot  `json:"process"`
}

// Snapshot 返回当前指标
func (m *QueueMetrics) Snapshot() Snapshot {
	snap := Snapshot{
		Total:           m.totalTasks.Load(),
		Succeeded:       m.successfulTasks.Load(),
		Failed:          m.failedTasks.Load(),
		ErrorsByOp:      make(map[string]int64),
		QueueLength:     m.queueLength.Load(),
		PeakQueueLength: m.peakQueueLength.Load(),
		AvgWaitMs:       m.avgWaitTime.Load(),
		Push:            m.pushLatency.snapshot(),
		Pop:             m.popLatency.snapshot(),
		Process:         m.processLatency.snapshot(),
	}
	m.errorsByOp.Range(func(k, v interface{}) bool {
		snap.ErrorsByOp[string(k.(MetricOperation))] = v.(*atomic.Int64).Load()
		return true
	})
	return snap
}
