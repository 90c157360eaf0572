package downloader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"stockdl/pkg/config"
	"stockdl/pkg/core"
	"stockdl/pkg/logger"
	"stockdl/pkg/mirror"
	"stockdl/pkg/progress"
	"stockdl/pkg/provider"
	"stockdl/pkg/storage"
)

// Orchestrator 下载管线的顶层编排：按 (symbol, granularity) 单元
// 划分工作，在受限的工作池里对每个单元执行
// 缺口计算 → 抓取 → 入库，并按股票汇总结果。
//
// 单元之间互相独立：一个单元的失败只记录在它自己的结果里，
// 从不中断整次运行。
type Orchestrator struct {
	fetcher provider.HistoricalProvider
	store   storage.BarStore
	gaps    *GapCalculator
	sink    progress.Sink
	mirror  mirror.Writer
	log     *logrus.Entry
}

// Option 编排器可选配置
type Option func(*Orchestrator)

// WithProgressSink 设置进度旁路通道
func WithProgressSink(sink progress.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithMirror 设置入库成功后的镜像写入端（如 InfluxDB）
func WithMirror(w mirror.Writer) Option {
	return func(o *Orchestrator) { o.mirror = w }
}

// NewOrchestrator 创建编排器。fetcher 应当已经套好
// 重试/熔断装饰器；store 由调用方负责关闭。
func NewOrchestrator(fetcher provider.HistoricalProvider, store storage.BarStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher: fetcher,
		store:   store,
		gaps:    NewGapCalculator(store),
		log:     logger.WithComponent("Orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// unit 一个 (symbol, granularity) 处理单元
type unit struct {
	symbol string
	g      core.Granularity
	start  time.Time
	end    time.Time
	result *core.UnitResult
}

// Run 执行一次下载。并发数被钳制在 [1, 300]；返回按股票汇总的
// 结果映射。任何单元的失败都只体现在映射里，不会让 Run 返回错误。
func (o *Orchestrator) Run(ctx context.Context, reqs []core.DownloadRequest, concurrency int) (map[string]*core.DownloadResult, error) {
	if len(reqs) == 0 {
		return nil, core.ErrEmptySymbols
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > config.MaxConcurrency {
		concurrency = config.MaxConcurrency
	}

	runID := uuid.New().String()
	results := make(map[string]*core.DownloadResult, len(reqs))
	var units []*unit

	for _, req := range reqs {
		// 重复代码只取第一个请求，后面的丢弃；否则先建的结果
		// 会被覆盖，而其单元仍在执行，缺口还会被抓两遍
		if _, dup := results[req.Symbol]; dup {
			continue
		}
		grans := req.Granularities
		if len(grans) == 0 {
			grans = core.AllGranularities()
		}
		res := &core.DownloadResult{
			Symbol: req.Symbol,
			Units:  make(map[core.Granularity]*core.UnitResult, len(grans)),
		}
		results[req.Symbol] = res
		for _, g := range grans {
			ur := &core.UnitResult{Granularity: g}
			res.Units[g] = ur
			units = append(units, &unit{
				symbol: req.Symbol,
				g:      g,
				start:  req.Start,
				end:    unitEnd(req.End, g),
				result: ur,
			})
		}
	}

	o.log.WithFields(logrus.Fields{
		"run_id":      runID,
		"stocks":      len(reqs),
		"units":       len(units),
		"concurrency": concurrency,
	}).Info("开始下载")

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	var done int64

	for _, u := range units {
		wg.Add(1)
		go func(u *unit) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				// 运行级预算耗尽，剩余单元直接记为超时失败
				u.result.Status = core.UnitFailed
				u.result.Err = err
				o.emit(runID, u, atomic.AddInt64(&done, 1), len(units))
				return
			}
			defer sem.Release(1)

			o.processUnit(ctx, u)
			o.emit(runID, u, atomic.AddInt64(&done, 1), len(units))
		}(u)
	}
	wg.Wait()

	totalRows := 0
	for _, res := range results {
		res.Aggregate()
		totalRows += res.RowsWritten
	}
	o.log.WithFields(logrus.Fields{
		"run_id": runID,
		"rows":   totalRows,
	}).Info("下载结束")

	return results, nil
}

// processUnit 处理一个单元：缺口按时间升序逐个抓取入库。
// 某个缺口失败时，之前已入库的缺口保持不变，单元记为 PARTIAL。
func (o *Orchestrator) processUnit(ctx context.Context, u *unit) {
	gaps, err := o.gaps.MissingRanges(ctx, u.symbol, u.g, u.start, u.end)
	if err != nil {
		u.result.Status = core.UnitFailed
		u.result.Err = err
		return
	}

	for _, gap := range gaps {
		bars, err := o.fetcher.FetchHistory(ctx, u.symbol, u.g, gap.Start, gap.End)
		if err != nil {
			o.failUnit(u, err)
			return
		}
		written, err := o.store.UpsertBars(ctx, bars)
		if err != nil {
			o.failUnit(u, err)
			return
		}
		u.result.RowsWritten += written

		if o.mirror != nil && len(bars) > 0 {
			if err := o.mirror.WriteBars(ctx, bars); err != nil {
				// 镜像只是旁路，失败不影响单元结果
				o.log.Warnf("mirror write failed for %s@%s: %v", u.symbol, u.g, err)
			}
		}
	}
	u.result.Status = core.UnitSuccess
}

// failUnit 已写入部分缺口的记 PARTIAL，否则记 FAILED
func (o *Orchestrator) failUnit(u *unit, err error) {
	if u.result.RowsWritten > 0 {
		u.result.Status = core.UnitPartial
	} else {
		u.result.Status = core.UnitFailed
	}
	u.result.Err = err
}

func (o *Orchestrator) emit(runID string, u *unit, done int64, total int) {
	if o.sink == nil {
		return
	}
	ev := progress.Event{
		RunID:       runID,
		Symbol:      u.symbol,
		Granularity: u.g,
		Status:      u.result.Status,
		RowsWritten: u.result.RowsWritten,
		Done:        int(done),
		Total:       total,
		Timestamp:   time.Now(),
	}
	if u.result.Err != nil {
		ev.Error = u.result.Err.Error()
	}
	// 进度采用独立的短超时上下文，运行取消后仍能发出最终状态
	pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = o.sink.Publish(pctx, ev)
}

// unitEnd 分钟线的请求终点扩展到当天收盘之后，
// 日线/周线的时间戳都落在零点，无需调整。
func unitEnd(end time.Time, g core.Granularity) time.Time {
	if g == core.GranularityMinute {
		return end.Add(24*time.Hour - time.Second)
	}
	return end
}
