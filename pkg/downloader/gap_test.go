package downloader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdl/pkg/core"
	"stockdl/pkg/storage"
)

func day(yy int, mm time.Month, dd int) time.Time {
	return time.Date(yy, mm, dd, 0, 0, 0, 0, time.Local)
}

// seedDaily 向内存存储写入 [from, to] 每天一根日线
func seedDaily(t *testing.T, store *storage.MemoryStore, symbol string, from, to time.Time) {
	t.Helper()
	var bars []core.Bar
	for ts := from; !ts.After(to); ts = ts.Add(24 * time.Hour) {
		bars = append(bars, core.Bar{
			Symbol:      symbol,
			Granularity: core.GranularityDaily,
			Timestamp:   ts,
			Open:        10, High: 11, Low: 9, Close: 10.5,
			Volume: 1000,
		})
	}
	_, err := store.UpsertBars(context.Background(), bars)
	require.NoError(t, err)
}

func TestGapCalculator_空库返回整个区间(t *testing.T) {
	store := storage.NewMemoryStore()
	calc := NewGapCalculator(store)

	gaps, err := calc.MissingRanges(context.Background(), "sz000001", core.GranularityDaily,
		day(2022, 1, 1), day(2022, 1, 20))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, day(2022, 1, 1), gaps[0].Start)
	assert.Equal(t, day(2022, 1, 20), gaps[0].End)
}

func TestGapCalculator_尾部缺口(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDaily(t, store, "sz000001", day(2022, 1, 1), day(2022, 1, 10))
	calc := NewGapCalculator(store)

	gaps, err := calc.MissingRanges(context.Background(), "sz000001", core.GranularityDaily,
		day(2022, 1, 1), day(2022, 1, 20))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, day(2022, 1, 11), gaps[0].Start)
	assert.Equal(t, day(2022, 1, 20), gaps[0].End)
}

func TestGapCalculator_完全覆盖返回空(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDaily(t, store, "sz000001", day(2022, 1, 1), day(2022, 1, 20))
	calc := NewGapCalculator(store)

	gaps, err := calc.MissingRanges(context.Background(), "sz000001", core.GranularityDaily,
		day(2022, 1, 1), day(2022, 1, 20))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestGapCalculator_中间缺口(t *testing.T) {
	store := storage.NewMemoryStore()
	seedDaily(t, store, "sz000001", day(2022, 1, 1), day(2022, 1, 5))
	seedDaily(t, store, "sz000001", day(2022, 1, 15), day(2022, 1, 20))
	calc := NewGapCalculator(store)

	gaps, err := calc.MissingRanges(context.Background(), "sz000001", core.GranularityDaily,
		day(2022, 1, 1), day(2022, 1, 20))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, day(2022, 1, 6), gaps[0].Start)
	assert.Equal(t, day(2022, 1, 14), gaps[0].End)
}

func TestGapCalculator_休市日不算缺口(t *testing.T) {
	store := storage.NewMemoryStore()
	// 周五、下周一：中间隔着周末，间隔在容差内
	seedDaily(t, store, "sh600000", day(2022, 1, 7), day(2022, 1, 7))
	seedDaily(t, store, "sh600000", day(2022, 1, 10), day(2022, 1, 14))
	calc := NewGapCalculator(store)

	gaps, err := calc.MissingRanges(context.Background(), "sh600000", core.GranularityDaily,
		day(2022, 1, 7), day(2022, 1, 14))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestGapCalculator_头部容差(t *testing.T) {
	store := storage.NewMemoryStore()
	// 起点落在元旦假期，第一根K线是 1月4日，不应产生头部缺口
	seedDaily(t, store, "sh600000", day(2022, 1, 4), day(2022, 1, 14))
	calc := NewGapCalculator(store)

	gaps, err := calc.MissingRanges(context.Background(), "sh600000", core.GranularityDaily,
		day(2022, 1, 1), day(2022, 1, 14))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestGapCalculator_起止颠倒报错(t *testing.T) {
	calc := NewGapCalculator(storage.NewMemoryStore())
	_, err := calc.MissingRanges(context.Background(), "sz000001", core.GranularityDaily,
		day(2022, 1, 20), day(2022, 1, 1))
	require.Error(t, err)
	assert.True(t, core.IsInvalidRequest(err))
}
