package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdl/pkg/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func bar(symbol string, g core.Granularity, ts time.Time, close float64) core.Bar {
	return core.Bar{
		Symbol:      symbol,
		Granularity: g,
		Timestamp:   ts,
		Open:        10, High: 11, Low: 9, Close: close,
		Volume: 1000, Amount: 10500,
	}
}

func TestStore_写入与查询(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2022, 1, 4, 0, 0, 0, 0, time.Local)

	n, err := store.UpsertBars(ctx, []core.Bar{
		bar("sz000001", core.GranularityDaily, ts, 10.5),
		bar("sz000001", core.GranularityDaily, ts.Add(24*time.Hour), 10.6),
		bar("sz000001", core.GranularityWeekly, ts, 10.7),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.Timestamps(ctx, "sz000001", core.GranularityDaily,
		ts.Add(-24*time.Hour), ts.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2, "周线表的数据不应混进日线查询")
	assert.Equal(t, ts.Unix(), got[0].Unix())
}

func TestStore_重复主键覆盖不新增(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2022, 1, 4, 0, 0, 0, 0, time.Local)

	_, err := store.UpsertBars(ctx, []core.Bar{bar("sz000001", core.GranularityDaily, ts, 10.5)})
	require.NoError(t, err)

	// 同一主键再次写入不同收盘价：应覆盖而不是新增一行
	_, err = store.UpsertBars(ctx, []core.Bar{bar("sz000001", core.GranularityDaily, ts, 99.9)})
	require.NoError(t, err)

	got, err := store.Timestamps(ctx, "sz000001", core.GranularityDaily,
		ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	var closePrice float64
	row := store.db.QueryRow(`SELECT close FROM daily WHERE symbol=? AND ts=?`, "sz000001", ts.Unix())
	require.NoError(t, row.Scan(&closePrice))
	assert.Equal(t, 99.9, closePrice)
}

func TestStore_空批次(t *testing.T) {
	store := newTestStore(t)
	n, err := store.UpsertBars(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_按符号隔离(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2022, 1, 4, 0, 0, 0, 0, time.Local)

	_, err := store.UpsertBars(ctx, []core.Bar{
		bar("sz000001", core.GranularityDaily, ts, 10.5),
		bar("sh600000", core.GranularityDaily, ts, 8.8),
	})
	require.NoError(t, err)

	got, err := store.Timestamps(ctx, "sz000001", core.GranularityDaily,
		ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
