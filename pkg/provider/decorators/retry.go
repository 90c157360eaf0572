package decorators

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stockdl/pkg/core"
	"stockdl/pkg/limiter"
	"stockdl/pkg/logger"
	"stockdl/pkg/provider"
)

// BackoffPolicy 重试退避策略，作为一等配置值传入
type BackoffPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts"` // 含首次在内的最大尝试次数
	BaseDelay   time.Duration `mapstructure:"base_delay"`   // 首次重试前等待
	Multiplier  float64       `mapstructure:"multiplier"`   // 每次重试等待的倍率
}

// DefaultBackoffPolicy 默认重试策略
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay 第 attempt 次重试前的等待时间（attempt 从 1 开始）
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// RetryProvider 重试装饰器：对瞬时故障按策略退避重试，
// 每次尝试前都先经过全局节奏器取得放行。
type RetryProvider struct {
	inner      provider.HistoricalProvider
	pacer      *limiter.Pacer
	classifier *limiter.ErrorClassifier
	policy     BackoffPolicy
	log        *logrus.Entry
}

// NewRetryProvider 创建重试装饰器
func NewRetryProvider(inner provider.HistoricalProvider, pacer *limiter.Pacer, policy BackoffPolicy) *RetryProvider {
	if policy.MaxAttempts <= 0 {
		policy = DefaultBackoffPolicy()
	}
	return &RetryProvider{
		inner:      inner,
		pacer:      pacer,
		classifier: limiter.NewErrorClassifier(),
		policy:     policy,
		log:        logger.WithComponent("RetryProvider"),
	}
}

// Name 返回装饰器名称
func (r *RetryProvider) Name() string {
	return fmt.Sprintf("Retry(%s)", r.inner.Name())
}

// FetchHistory 带重试的历史数据获取。
// 无效请求立即返回；瞬时故障重试耗尽后返回 FetchFailedError。
func (r *RetryProvider) FetchHistory(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.policy.Delay(attempt - 1)
			r.log.Debugf("retry %d/%d for %s@%s after %v: %v",
				attempt, r.policy.MaxAttempts, symbol, g, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.pacer.Acquire(ctx); err != nil {
			return nil, err
		}

		bars, err := r.inner.FetchHistory(ctx, symbol, g, start, end)
		if err == nil {
			return bars, nil
		}

		switch r.classifier.Classify(err) {
		case limiter.LevelNetwork:
			lastErr = err
			continue
		case limiter.LevelInvalid:
			// 无效请求，重试无意义
			return nil, err
		default:
			return nil, err
		}
	}

	return nil, &core.FetchFailedError{
		Symbol:      symbol,
		Granularity: g,
		Attempts:    r.policy.MaxAttempts,
		Cause:       lastErr,
	}
}
