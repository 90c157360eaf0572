package core

import (
	"time"
)

// Granularity K线周期
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityWeekly Granularity = "weekly"
	GranularityMinute Granularity = "minute"
)

// AllGranularities 默认下载的全部周期（与历史库三张表一一对应）
func AllGranularities() []Granularity {
	return []Granularity{GranularityDaily, GranularityWeekly, GranularityMinute}
}

// Valid 检查周期是否受支持
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMinute:
		return true
	}
	return false
}

// Step 相邻两根K线的名义间隔
func (g Granularity) Step() time.Duration {
	switch g {
	case GranularityWeekly:
		return 7 * 24 * time.Hour
	case GranularityMinute:
		return time.Minute
	default:
		return 24 * time.Hour
	}
}

// ContiguityTolerance 判定已存数据是否连续的最大间隔。
// 周末、节假日、午休和隔夜停盘都不算缺口，所以容差远大于 Step。
func (g Granularity) ContiguityTolerance() time.Duration {
	switch g {
	case GranularityWeekly:
		return 14 * 24 * time.Hour
	default:
		// daily / minute: 足以跨过春节以外的常见连休
		return 4 * 24 * time.Hour
	}
}

// Bar 一根OHLCV K线，主键 (Symbol, Granularity, Timestamp)
type Bar struct {
	Symbol      string      `json:"symbol"`
	Granularity Granularity `json:"granularity"`
	Timestamp   time.Time   `json:"timestamp"`
	Open        float64     `json:"open"`
	High        float64     `json:"high"`
	Low         float64     `json:"low"`
	Close       float64     `json:"close"`
	Volume      int64       `json:"volume"`
	Amount      float64     `json:"amount"` // 成交额，数据源附加字段
}

// Range 闭区间 [Start, End]，用于描述待补抓的缺口
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DownloadRequest 一次下载请求（单只股票），运行期间不可变
type DownloadRequest struct {
	Symbol        string
	Start         time.Time
	End           time.Time
	Granularities []Granularity
}

// UnitStatus 单个 (symbol, granularity) 处理单元的结果状态
type UnitStatus string

const (
	UnitSuccess UnitStatus = "SUCCESS"
	UnitPartial UnitStatus = "PARTIAL"
	UnitFailed  UnitStatus = "FAILED"
)

// UnitResult 一个处理单元的明细
type UnitResult struct {
	Granularity Granularity `json:"granularity"`
	Status      UnitStatus  `json:"status"`
	RowsWritten int         `json:"rows_written"`
	Err         error       `json:"-"`
}

// DownloadResult 按股票汇总的运行结果
type DownloadResult struct {
	Symbol      string                      `json:"symbol"`
	Status      UnitStatus                  `json:"status"`
	RowsWritten int                         `json:"rows_written"`
	Units       map[Granularity]*UnitResult `json:"units"`
}

// Aggregate 依据各单元状态推导整只股票的状态：
// 全部成功为 SUCCESS，全部失败为 FAILED，其余为 PARTIAL。
func (r *DownloadResult) Aggregate() {
	if len(r.Units) == 0 {
		r.Status = UnitFailed
		return
	}
	succeeded, failed := 0, 0
	r.RowsWritten = 0
	for _, u := range r.Units {
		r.RowsWritten += u.RowsWritten
		switch u.Status {
		case UnitSuccess:
			succeeded++
		case UnitFailed:
			failed++
		}
	}
	switch {
	case failed == len(r.Units):
		r.Status = UnitFailed
	case succeeded == len(r.Units):
		r.Status = UnitSuccess
	default:
		r.Status = UnitPartial
	}
}

// FirstError 返回任一失败单元的错误，用于汇总展示
func (r *DownloadResult) FirstError() error {
	for _, g := range AllGranularities() {
		if u, ok := r.Units[g]; ok && u.Err != nil {
			return u.Err
		}
	}
	return nil
}
