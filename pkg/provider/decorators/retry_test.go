package decorators

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdl/pkg/core"
	"stockdl/pkg/limiter"
)

// scriptedProvider 按预设脚本依次返回结果的替身
type scriptedProvider struct {
	calls   int64
	outcome func(call int64) ([]core.Bar, error)
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) FetchHistory(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error) {
	n := atomic.AddInt64(&s.calls, 1)
	return s.outcome(n)
}

func fastPolicy() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}
}

func sampleBars() []core.Bar {
	return []core.Bar{{
		Symbol:      "sz000001",
		Granularity: core.GranularityDaily,
		Timestamp:   time.Date(2022, 1, 4, 0, 0, 0, 0, time.Local),
		Open:        10, High: 11, Low: 9, Close: 10.5, Volume: 1000,
	}}
}

func TestRetryProvider_两次瞬时失败后成功(t *testing.T) {
	inner := &scriptedProvider{outcome: func(call int64) ([]core.Bar, error) {
		if call < 3 {
			return nil, errors.New("read tcp: connection reset by peer")
		}
		return sampleBars(), nil
	}}
	r := NewRetryProvider(inner, limiter.NewPacer(0), fastPolicy())

	bars, err := r.FetchHistory(context.Background(), "sz000001", core.GranularityDaily,
		time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.EqualValues(t, 3, atomic.LoadInt64(&inner.calls), "恰好三次底层调用")
}

func TestRetryProvider_重试耗尽(t *testing.T) {
	inner := &scriptedProvider{outcome: func(int64) ([]core.Bar, error) {
		return nil, errors.New("request timeout")
	}}
	r := NewRetryProvider(inner, limiter.NewPacer(0), fastPolicy())

	_, err := r.FetchHistory(context.Background(), "sz000001", core.GranularityDaily,
		time.Now().Add(-24*time.Hour), time.Now())
	require.Error(t, err)

	var ff *core.FetchFailedError
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, 3, ff.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt64(&inner.calls))
}

func TestRetryProvider_无效请求不重试(t *testing.T) {
	inner := &scriptedProvider{outcome: func(int64) ([]core.Bar, error) {
		return nil, &core.InvalidRequestError{Symbol: "sz999999", Reason: "未知的股票代码"}
	}}
	r := NewRetryProvider(inner, limiter.NewPacer(0), fastPolicy())

	_, err := r.FetchHistory(context.Background(), "sz999999", core.GranularityDaily,
		time.Now().Add(-24*time.Hour), time.Now())
	require.Error(t, err)
	assert.True(t, core.IsInvalidRequest(err))
	assert.EqualValues(t, 1, atomic.LoadInt64(&inner.calls), "无效请求只调用一次")
}

func TestRetryProvider_数据源限流可重试(t *testing.T) {
	inner := &scriptedProvider{outcome: func(call int64) ([]core.Bar, error) {
		if call == 1 {
			return nil, core.ErrRateLimited
		}
		return sampleBars(), nil
	}}
	r := NewRetryProvider(inner, limiter.NewPacer(0), fastPolicy())

	bars, err := r.FetchHistory(context.Background(), "sz000001", core.GranularityDaily,
		time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.EqualValues(t, 2, atomic.LoadInt64(&inner.calls))
}

func TestRetryProvider_取消后立即返回(t *testing.T) {
	inner := &scriptedProvider{outcome: func(int64) ([]core.Bar, error) {
		return nil, errors.New("request timeout")
	}}
	r := NewRetryProvider(inner, limiter.NewPacer(0),
		BackoffPolicy{MaxAttempts: 5, BaseDelay: time.Hour, Multiplier: 2.0})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.FetchHistory(ctx, "sz000001", core.GranularityDaily,
		time.Now().Add(-24*time.Hour), time.Now())
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "取消后不应继续等待退避")
}

func TestBackoffPolicy_指数退避(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2.0}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}
