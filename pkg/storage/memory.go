package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"stockdl/pkg/core"
)

// MemoryStore 内存实现，主要用于测试和示例
type MemoryStore struct {
	mu     sync.RWMutex
	bars   map[memoryKey]core.Bar
	closed bool
}

type memoryKey struct {
	symbol string
	g      core.Granularity
	ts     int64
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bars: make(map[memoryKey]core.Bar)}
}

// UpsertBars 写入整批K线（重复主键覆盖）
func (m *MemoryStore) UpsertBars(ctx context.Context, bars []core.Bar) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, &core.StorageError{Op: "upsert", Cause: core.ErrStoreClosed}
	}
	for _, b := range bars {
		m.bars[memoryKey{b.Symbol, b.Granularity, b.Timestamp.Unix()}] = b
	}
	return len(bars), nil
}

// Timestamps 返回区间内已有的时间戳（升序）
func (m *MemoryStore) Timestamps(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, &core.StorageError{Op: "query", Cause: core.ErrStoreClosed}
	}
	var out []time.Time
	for k := range m.bars {
		if k.symbol != symbol || k.g != g {
			continue
		}
		if k.ts >= start.Unix() && k.ts <= end.Unix() {
			out = append(out, time.Unix(k.ts, 0))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// Get 按主键读取一根K线（测试断言用）
func (m *MemoryStore) Get(symbol string, g core.Granularity, ts time.Time) (core.Bar, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bars[memoryKey{symbol, g, ts.Unix()}]
	return b, ok
}

// Len 返回存储的总行数
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bars)
}

// Close 关闭存储
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
