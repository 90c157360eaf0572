package decorators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdl/pkg/core"
)

func testBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: 3,
	}
}

func TestCircuitBreaker_连续失败后熔断(t *testing.T) {
	inner := &scriptedProvider{outcome: func(int64) ([]core.Bar, error) {
		return nil, errors.New("provider status 502")
	}}
	cb := NewCircuitBreakerProvider(inner, testBreakerConfig())
	ctx := context.Background()
	start, end := time.Now().Add(-24*time.Hour), time.Now()

	for i := 0; i < 3; i++ {
		_, err := cb.FetchHistory(ctx, "sz000001", core.GranularityDaily, start, end)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// 熔断打开后不再触达底层数据源
	_, err := cb.FetchHistory(ctx, "sz000001", core.GranularityDaily, start, end)
	require.Error(t, err)
	assert.EqualValues(t, 3, inner.calls)

	stats := cb.Stats()
	assert.EqualValues(t, 4, stats.TotalRequests)
	assert.EqualValues(t, 4, stats.FailedRequests)
	assert.False(t, stats.LastFailure.IsZero())
}

func TestCircuitBreaker_无效请求不触发熔断(t *testing.T) {
	inner := &scriptedProvider{outcome: func(int64) ([]core.Bar, error) {
		return nil, &core.InvalidRequestError{Symbol: "sz999999", Reason: "未知的股票代码"}
	}}
	cb := NewCircuitBreakerProvider(inner, testBreakerConfig())
	ctx := context.Background()
	start, end := time.Now().Add(-24*time.Hour), time.Now()

	for i := 0; i < 5; i++ {
		_, err := cb.FetchHistory(ctx, "sz999999", core.GranularityDaily, start, end)
		require.Error(t, err)
		assert.True(t, core.IsInvalidRequest(err))
	}
	// 无效代码不算数据源故障，每次都应穿透到底层
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.EqualValues(t, 5, inner.calls)
}

func TestCircuitBreaker_成功调用透传(t *testing.T) {
	inner := &scriptedProvider{outcome: func(int64) ([]core.Bar, error) {
		return sampleBars(), nil
	}}
	cb := NewCircuitBreakerProvider(inner, nil)

	bars, err := cb.FetchHistory(context.Background(), "sz000001", core.GranularityDaily,
		time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, "CircuitBreaker(scripted)", cb.Name())

	stats := cb.Stats()
	assert.EqualValues(t, 1, stats.SuccessfulRequest)
	assert.Zero(t, stats.FailedRequests)
}
