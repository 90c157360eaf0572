package storage

import (
	"context"
	"strings"
	"time"

	"stockdl/pkg/core"
)

// BarStore 历史K线存储。实现必须保证 (symbol, granularity, timestamp)
// 的唯一性：重复写入同一主键只会更新非主键列，绝不产生第二行。
type BarStore interface {
	// UpsertBars 整批事务性写入，返回写入行数；失败时整批回滚
	UpsertBars(ctx context.Context, bars []core.Bar) (int, error)

	// Timestamps 返回 [start, end] 内已存在的时间戳，升序
	Timestamps(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]time.Time, error)

	// Close 释放底层连接
	Close() error
}

// IsPostgresDSN 判断存储位置标识是否为 Postgres 连接串；
// 其余一律当作 SQLite 文件路径。
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
