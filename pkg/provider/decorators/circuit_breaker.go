package decorators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"stockdl/pkg/core"
	"stockdl/pkg/logger"
	"stockdl/pkg/provider"
)

// CircuitBreakerProvider 熔断器装饰器
// 使用 sony/gobreaker 提供熔断功能
type CircuitBreakerProvider struct {
	inner  provider.HistoricalProvider
	cb     *gobreaker.CircuitBreaker
	config *CircuitBreakerConfig
	log    *logrus.Entry

	// 统计信息
	mu    sync.RWMutex
	stats CircuitBreakerStats
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Name        string        `mapstructure:"name"`          // 熔断器名称
	MaxRequests uint32        `mapstructure:"max_requests"`  // 半开状态下的最大请求数
	Interval    time.Duration `mapstructure:"interval"`      // 统计窗口时间
	Timeout     time.Duration `mapstructure:"timeout"`       // 熔断器打开后的超时时间
	ReadyToTrip uint32        `mapstructure:"ready_to_trip"` // 触发熔断的失败次数阈值
}

// CircuitBreakerStats 熔断器统计信息
type CircuitBreakerStats struct {
	TotalRequests     int64     `json:"total_requests"`
	SuccessfulRequest int64     `json:"successful_requests"`
	FailedRequests    int64     `json:"failed_requests"`
	LastFailure       time.Time `json:"last_failure"`
}

// DefaultCircuitBreakerConfig 默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:        "HistoryProvider",
		MaxRequests: 5,                // 半开状态允许5个请求
		Interval:    60 * time.Second, // 60秒统计窗口
		Timeout:     30 * time.Second, // 熔断30秒
		ReadyToTrip: 5,                // 5次失败触发熔断
	}
}

// NewCircuitBreakerProvider 创建熔断器装饰器
func NewCircuitBreakerProvider(inner provider.HistoricalProvider, config *CircuitBreakerConfig) *CircuitBreakerProvider {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	p := &CircuitBreakerProvider{
		inner:  inner,
		config: config,
		log:    logger.WithComponent("CircuitBreaker"),
	}

	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ReadyToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			stats := p.Stats()
			p.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
				"failed":  stats.FailedRequests,
				"total":   stats.TotalRequests,
			}).Warn("熔断器状态切换")
		},
		IsSuccessful: func(err error) bool {
			// 无效代码不算数据源故障，不应触发熔断
			return err == nil || core.IsInvalidRequest(err)
		},
	})

	return p
}

// Name 返回装饰器名称
func (p *CircuitBreakerProvider) Name() string {
	return fmt.Sprintf("CircuitBreaker(%s)", p.inner.Name())
}

// FetchHistory 经过熔断器的历史数据获取
func (p *CircuitBreakerProvider) FetchHistory(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.FetchHistory(ctx, symbol, g, start, end)
	})

	p.recordResult(err)

	if err != nil {
		return nil, err
	}
	return result.([]core.Bar), nil
}

func (p *CircuitBreakerProvider) recordResult(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalRequests++
	if err != nil {
		p.stats.FailedRequests++
		p.stats.LastFailure = time.Now()
	} else {
		p.stats.SuccessfulRequest++
	}
}

// Stats 返回熔断器统计信息
func (p *CircuitBreakerProvider) Stats() CircuitBreakerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// State 返回熔断器当前状态
func (p *CircuitBreakerProvider) State() gobreaker.State {
	return p.cb.State()
}
