package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockdl/pkg/core"
)

// Store 基于 Postgres 连接池的K线存储，表结构与 SQLite 实现一致。
// 不同主键的并发写互不阻塞，重叠主键由数据库行锁自行串行化。
type Store struct {
	pool *pgxpool.Pool
}

var schema = `
CREATE TABLE IF NOT EXISTS %s (
	symbol TEXT NOT NULL,
	ts     BIGINT NOT NULL,
	open   DOUBLE PRECISION NOT NULL,
	high   DOUBLE PRECISION NOT NULL,
	low    DOUBLE PRECISION NOT NULL,
	close  DOUBLE PRECISION NOT NULL,
	volume BIGINT NOT NULL,
	amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, ts)
)`

// NewStore 连接 Postgres 并确保三张周期表存在
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, g := range core.AllGranularities() {
		if _, err := pool.Exec(ctx, fmt.Sprintf(schema, tableFor(g))); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema %s: %w", tableFor(g), err)
		}
	}
	return &Store{pool: pool}, nil
}

// Close 关闭连接池
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// UpsertBars 整批写入，单个事务内批量执行
func (s *Store) UpsertBars(ctx context.Context, bars []core.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, &core.StorageError{Op: "begin", Cause: err}
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s (symbol, ts, open, high, low, close, volume, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, ts) DO UPDATE SET
			    open = EXCLUDED.open,
			    high = EXCLUDED.high,
			    low = EXCLUDED.low,
			    close = EXCLUDED.close,
			    volume = EXCLUDED.volume,
			    amount = EXCLUDED.amount`, tableFor(b.Granularity)),
			b.Symbol, b.Timestamp.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount)
	}

	results := tx.SendBatch(ctx, batch)
	for range bars {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, &core.StorageError{Op: "upsert", Cause: err}
		}
	}
	if err := results.Close(); err != nil {
		return 0, &core.StorageError{Op: "upsert", Cause: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, &core.StorageError{Op: "commit", Cause: err}
	}
	return len(bars), nil
}

// Timestamps 返回区间内已有的时间戳（升序）
func (s *Store) Timestamps(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(
		`SELECT ts FROM %s WHERE symbol = $1 AND ts BETWEEN $2 AND $3 ORDER BY ts`,
		tableFor(g))
	rows, err := s.pool.Query(ctx, query, symbol, start.Unix(), end.Unix())
	if err != nil {
		return nil, &core.StorageError{Op: "query", Cause: err}
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, &core.StorageError{Op: "scan", Cause: err}
		}
		out = append(out, time.Unix(ts, 0))
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "query", Cause: err}
	}
	return out, nil
}

// tableFor 每个周期一张表，与历史库的 daily/weekly/minute 对应
func tableFor(g core.Granularity) string {
	switch g {
	case core.GranularityWeekly:
		return "weekly"
	case core.GranularityMinute:
		return "minute"
	default:
		return "daily"
	}
}
