package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"stockdl/pkg/core"
)

// Store 基于 SQLite 的K线存储。三个周期各一张表，
// 主键 (symbol, ts)，重复写入按后写覆盖非主键列。
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS daily (
		symbol TEXT NOT NULL,
		ts     INTEGER NOT NULL,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume INTEGER NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, ts)
	);`,
	`CREATE TABLE IF NOT EXISTS weekly (
		symbol TEXT NOT NULL,
		ts     INTEGER NOT NULL,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume INTEGER NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, ts)
	);`,
	`CREATE TABLE IF NOT EXISTS minute (
		symbol TEXT NOT NULL,
		ts     INTEGER NOT NULL,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume INTEGER NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, ts)
	);`,
}

// NewStore 打开（必要时创建）SQLite 数据库文件
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path 不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc 驱动下单连接最稳，写事务由 SQLite 自身串行化
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// UpsertBars 整批事务性写入（重复主键覆盖非主键列）
func (s *Store) UpsertBars(ctx context.Context, bars []core.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &core.StorageError{Op: "begin", Cause: err}
	}

	stmts := map[core.Granularity]*sql.Stmt{}
	defer func() {
		for _, st := range stmts {
			_ = st.Close()
		}
	}()

	count := 0
	for _, b := range bars {
		st, ok := stmts[b.Granularity]
		if !ok {
			st, err = tx.PrepareContext(ctx, fmt.Sprintf(`
				INSERT INTO %s (symbol, ts, open, high, low, close, volume, amount)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(symbol, ts) DO UPDATE SET
				    open=excluded.open,
				    high=excluded.high,
				    low=excluded.low,
				    close=excluded.close,
				    volume=excluded.volume,
				    amount=excluded.amount`, tableFor(b.Granularity)))
			if err != nil {
				_ = tx.Rollback()
				return 0, &core.StorageError{Op: "prepare", Cause: err}
			}
			stmts[b.Granularity] = st
		}
		if _, err := st.ExecContext(ctx, b.Symbol, b.Timestamp.Unix(),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount); err != nil {
			_ = tx.Rollback()
			return 0, &core.StorageError{Op: "upsert", Cause: err}
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, &core.StorageError{Op: "commit", Cause: err}
	}
	return count, nil
}

// Timestamps 返回区间内已有的时间戳（升序）
func (s *Store) Timestamps(ctx context.Context, symbol string, g core.Granularity, start, end time.Time) ([]time.Time, error) {
	query := fmt.Sprintf(
		`SELECT ts FROM %s WHERE symbol = ? AND ts BETWEEN ? AND ? ORDER BY ts`,
		tableFor(g))
	rows, err := s.db.QueryContext(ctx, query, symbol, start.Unix(), end.Unix())
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
