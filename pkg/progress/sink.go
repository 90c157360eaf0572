package progress

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"stockdl/pkg/core"
	"stockdl/pkg/logger"
)

// Event 一个处理单元完成后的进度事件。
// 进度是面向调用方的旁路通道，不参与管线自身的结果计算。
type Event struct {
	RunID       string           `json:"runId"`
	Symbol      string           `json:"symbol"`
	Granularity core.Granularity `json:"granularity"`
	Status      core.UnitStatus  `json:"status"`
	RowsWritten int              `json:"rowsWritten"`
	Error       string           `json:"error,omitempty"`
	Done        int              `json:"done"`  // 已完成单元数
	Total       int              `json:"total"` // 总单元数
	Timestamp   time.Time        `json:"timestamp"`
}

// Sink 进度事件的去向
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogSink 把进度打到日志，默认的进度展示方式
type LogSink struct {
	log *logrus.Entry
}

// NewLogSink 创建日志进度上报器
func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithComponent("Progress")}
}

// Publish 输出一条进度日志
func (s *LogSink) Publish(_ context.Context, ev Event) error {
	entry := s.log.WithFields(logrus.Fields{
		"run_id": ev.RunID,
		"symbol": ev.Symbol,
		"period": ev.Granularity,
		"rows":   ev.RowsWritten,
	})
	switch ev.Status {
	case core.UnitSuccess:
		entry.Infof("[%d/%d] %s@%s 完成", ev.Done, ev.Total, ev.Symbol, ev.Granularity)
	default:
		entry.Warnf("[%d/%d] %s@%s %s: %s", ev.Done, ev.Total, ev.Symbol, ev.Granularity, ev.Status, ev.Error)
	}
	return nil
}

// Close 无资源可释放
func (s *LogSink) Close() error { return nil }

// MultiSink 把事件广播给多个上报器，错误只保留第一个
type MultiSink []Sink

// Publish 逐个发布
func (m MultiSink) Publish(ctx context.Context, ev Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close 逐个关闭
func (m MultiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
