package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"easypay/pkg/logger"
)

// Listener 事件监听者
type Listener func(ctx context.Context, e Event) error

// Deferrer 延迟派发，设置后 Publish 先把事件交给它，由后台 worker 调用 Dispatch
type Deferrer interface {
	Push(ctx context.Context, e Event) error
}

type subscription struct {
	kind Kind // 为空表示订阅全部事件
	name string
	fn   Listener
}

// Bus 进程内事件总线
type Bus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	deferrer      Deferrer
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe 订阅指定类型的事件，监听者按注册顺序执行
func (b *Bus) Subscribe(kind Kind, name string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = append(b.subscriptions, subscription{kind: kind, name: name, fn: fn})
}

// SubscribeAll 订阅全部事件
func (b *Bus) SubscribeAll(name string, fn Listener) {
	b.Subscribe("", name, fn)
}

// SetDeferrer 开启延迟派发，传 nil 关闭
func (b *Bus) SetDeferrer(d Deferrer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deferrer = d
}

// Publish 发布事件，不返回错误
//
// 开启延迟派发时事件进入队列，入队失败则退回同步派发。
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	deferrer := b.deferrer
	b.mu.RUnlock()

	if deferrer != nil {
		err := deferrer.Push(ctx, e)
		if err == nil {
			return
		}
		logger.Warn("Events",
			zap.String("kind", string(e.Kind)),
			zap.String("event_id", e.ID),
			zap.String("fallback", "sync dispatch"),
			zap.Error(err),
		)
	}
	_ = b.Dispatch(ctx, e)
}

// DispatchError 一次派发中失败的监听者
type DispatchError struct {
	Failed []string
	errs   []error
}

func (e *DispatchError) Error() string {
	return errors.Join(e.errs...).Error()
}

func (e *DispatchError) Unwrap() []error {
	return e.errs
}

// FailedListeners 返回 err 中失败的监听者名称
func FailedListeners(err error) []string {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Failed
	}
	return nil
}

// Dispatch 同步执行所有匹配的监听者，有失败时返回 *DispatchError
func (b *Bus) Dispatch(ctx context.Context, e Event) error {
	return b.dispatch(ctx, e, nil)
}

// DispatchTo 只执行 names 中的监听者，重试时其它监听者不会重复收到事件
func (b *Bus) DispatchTo(ctx context.Context, e Event, names []string) error {
	if len(names) == 0 {
		return nil
	}
	only := make(map[string]bool, len(names))
	for _, name := range names {
		only[name] = true
	}
	return b.dispatch(ctx, e, only)
}

func (b *Bus) dispatch(ctx context.Context, e Event, only map[string]bool) error {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subscriptions))
	for _, s := range b.subscriptions {
		if s.kind != "" && s.kind != e.Kind {
			continue
		}
		if only != nil && !only[s.name] {
			continue
		}
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	var failure DispatchError
	for _, s := range subs {
		if err := invoke(ctx, s, e); err != nil {
			fields := []zap.Field{
				zap.String("listener", s.name),
				zap.String("kind", string(e.Kind)),
				zap.String("event_id", e.ID),
				zap.Error(err),
			}
			if e.Payment != nil {
				fields = append(fields, zap.Uint64("payment_id", e.Payment.ID), zap.String("order_no", e.Payment.OrderNo))
			}
			logger.Error("Events", fields...)
			failure.Failed = append(failure.Failed, s.name)
			failure.errs = append(failure.errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if len(failure.errs) == 0 {
		return nil
	}
	return &failure
}

func invoke(ctx context.Context, s subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return s.fn(ctx, e)
}
