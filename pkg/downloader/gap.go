package downloader

import (
	"context"
	"time"

	"stockdl/pkg/core"
	"stockdl/pkg/storage"
)

// GapCalculator 计算某只股票某个周期在请求区间内尚未入库的缺口。
// 只依据存储内容推理，不关心行情的实时新鲜度。
type GapCalculator struct {
	store storage.BarStore
}

// NewGapCalculator 创建缺口计算器
func NewGapCalculator(store storage.BarStore) *GapCalculator {
	return &GapCalculator{store: store}
}

// segment 已入库数据的一段连续覆盖区间
type segment struct {
	start time.Time
	end   time.Time
}

// MissingRanges 返回 [start, end] 内缺失的子区间，按时间升序。
// 库内一行都没有时返回整个请求区间；完全覆盖时返回 nil。
//
// 相邻已存时间戳间隔不超过周期容差的视为连续——周末、节假日和
// 盘中停盘不会被当成缺口反复补抓。区间头部同样按容差放宽，
// 尾部则严格判断：只要最后一根K线早于请求终点，就生成一个
// 从其后一个周期起点到终点的缺口，这正是增量下载的来源。
func (c *GapCalculator) MissingRanges(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]core.Range, error) {
	if end.Before(start) {
		return nil, &core.InvalidRequestError{Symbol: symbol, Reason: "end 早于 start"}
	}

	existing, err := c.store.Timestamps(ctx, symbol, g, start, end)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return []core.Range{{Start: start, End: end}}, nil
	}

	tolerance := g.ContiguityTolerance()
	step := g.Step()

	// 把已存时间戳合并成覆盖段
	segments := []segment{{start: existing[0], end: existing[0]}}
	for _, ts := range existing[1:] {
		last := &segments[len(segments)-1]
		if ts.Sub(last.end) <= tolerance {
			last.end = ts
		} else {
			segments = append(segments, segment{start: ts, end: ts})
		}
	}

	var gaps []core.Range

	// 头部缺口（按容差放宽，避免因起点落在休市日反复补抓）
	if segments[0].start.Sub(start) > tolerance {
		gaps = append(gaps, core.Range{Start: start, End: segments[0].start.Add(-step)})
	}

	// 段与段之间的缺口
	for i := 1; i < len(segments); i++ {
		gaps = append(gaps, core.Range{
			Start: segments[i-1].end.Add(step),
			End:   segments[i].start.Add(-step),
		})
	}

	// 尾部缺口（严格判断，增量同步的常规路径）
	lastEnd := segments[len(segments)-1].end
	if lastEnd.Before(end) {
		from := lastEnd.Add(step)
		if !from.After(end) {
			gaps = append(gaps, core.Range{Start: from, End: end})
		}
	}

	return gaps, nil
}
