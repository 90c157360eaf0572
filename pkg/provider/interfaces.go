package provider

import (
	"context"
	"time"

	"stockdl/pkg/core"
)

// HistoricalProvider 历史K线数据提供商接口。
// start/end 为闭区间；返回的K线按时间升序。
type HistoricalProvider interface {
	// FetchHistory 获取一只股票在一个周期、一个日期区间内的历史K线
	FetchHistory(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Bar, error)

	// Name 返回提供商名称
	Name() string
}
