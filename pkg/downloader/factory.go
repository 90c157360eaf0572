package downloader

import (
	"stockdl/pkg/config"
	"stockdl/pkg/limiter"
	"stockdl/pkg/provider"
	"stockdl/pkg/provider/decorators"
	"stockdl/pkg/provider/eastmoney"
)

// NewFetcher 按配置组装抓取链：
// 东方财富数据源 → 熔断器（可选）→ 限速重试。
// 重试装饰器在最外层，每次尝试都会先经过全局节奏器。
func NewFetcher(cfg *config.Config) provider.HistoricalProvider {
	var p provider.HistoricalProvider = eastmoney.NewProvider(
		cfg.Provider.BaseURL,
		eastmoney.WithTimeout(cfg.Provider.Timeout),
		eastmoney.WithUserAgent(cfg.Provider.UserAgent),
	)

	if cfg.Provider.BreakerEnabled {
		p = decorators.NewCircuitBreakerProvider(p, nil)
	}

	pacer := limiter.NewPacer(cfg.Provider.RateLimit)
	return decorators.NewRetryProvider(p, pacer, decorators.BackoffPolicy{
		MaxAttempts: cfg.Provider.MaxAttempts,
		BaseDelay:   cfg.Provider.BaseDelay,
		Multiplier:  cfg.Provider.BackoffMultiplier,
	})
}
