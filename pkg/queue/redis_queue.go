// Package queue 基于 Redis list 的支付事件延迟派发
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"easypay/pkg/config"
	"easypay/pkg/events"
	"easypay/pkg/redis"
)

// ErrEmpty 等待超时，队列中没有事件
var ErrEmpty = errors.New("queue: empty")

// EventQueue Redis 事件队列，实现 events.Deferrer
type EventQueue struct {
	client      *goredis.Client
	prefix      string
	popTimeout  time.Duration
	rateLimiter *rate.Limiter
	metrics     *QueueMetrics
}

// NewEventQueue 使用 redis.QueueDB 实例创建队列
func NewEventQueue() (*EventQueue, error) {
	rds := redis.GetRedis(redis.QueueDB)
	if rds == nil {
		return nil, errors.New("queue: redis not initialized")
	}

	rateLimit := config.GetFloat64("queue.rate_limit", 1000)
	burst := config.GetInt("queue.rate_burst", int(rateLimit))

	return &EventQueue{
		client:      rds.Client,
		prefix:      config.GetString("redis.queue_prefix", "easypay:queue"),
		popTimeout:  time.Duration(config.GetInt("redis.queue_timeout", 5)) * time.Second,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), burst),
		metrics:     NewQueueMetrics(),
	}, nil
}

// Key 事件 list 的 key
func (q *EventQueue) Key() string {
	return q.prefix + ":events"
}

// Metrics 队列指标
func (q *EventQueue) Metrics() *QueueMetrics {
	return q.metrics
}

// Push 事件入队，受速率限制
func (q *EventQueue) Push(ctx context.Context, e events.Event) error {
	if err := q.rateLimiter.Wait(ctx); err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	start := time.Now()
	defer func() {
		q.metrics.RecordPushLatency(time.Since(start))
	}()

	data, err := Encode(e)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return err
	}

	if err := q.client.LPush(ctx, q.Key(), data).Err(); err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("failed to push event: %w", err)
	}

	q.metrics.StartWaitTime(e.ID)
	q.metrics.RecordSuccess(OpPush)
	return nil
}

// Pop 阻塞获取一个事件，超时返回 ErrEmpty
func (q *EventQueue) Pop(ctx context.Context) (events.Event, error) {
	start := time.Now()
	result, err := q.client.BRPop(ctx, q.popTimeout, q.Key()).Result()
	q.metrics.RecordPopLatency(time.Since(start))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return events.Event{}, ErrEmpty
		}
		q.metrics.RecordError(OpPop)
		return events.Event{}, fmt.Errorf("failed to pop event: %w", err)
	}
	if len(result) != 2 {
		q.metrics.RecordError(OpPop)
		return events.Event{}, errors.New("invalid result from queue")
	}

	e, err := Decode([]byte(result[1]))
	if err != nil {
		q.metrics.RecordError(OpPop)
		return events.Event{}, err
	}
	q.metrics.EndWaitTime(e.ID)
	return e, nil
}

// Len 当前积压的事件数
func (q *EventQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.Key()).Result()
}

// Encode 序列化事件
func Encode(e events.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// Decode 反序列化事件
func Decode(data []byte) (events.Event, error) {
	var e events.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}
