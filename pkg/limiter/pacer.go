package limiter

import (
	"context"
	"sync"
	"time"
)

// Pacer 全局请求节奏器：所有工作协程共享，保证对外请求
// 之间至少间隔 interval。Acquire 会阻塞直到轮到自己的时隙。
//
// 实现上每个调用者在锁内预订下一个可用时隙后再等待，
// 因此先到者先占用更早的时隙，不会饿死任何调用者。
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // 下一个可分配的时隙
}

// NewPacer 创建节奏器。interval <= 0 表示不限速。
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Acquire 阻塞到允许发起下一次外部请求，或 ctx 结束。
// 本身不做任何 I/O。
func (p *Pacer) Acquire(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.interval)
	p.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval 返回配置的最小间隔
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
