package storage

import (
	"context"

	"stockdl/pkg/storage/postgres"
	"stockdl/pkg/storage/sqlite"
)

// Open 根据存储位置标识选择后端：
// postgres:// 连接串走 Postgres，其余当作 SQLite 文件路径。
func Open(ctx context.Context, dsn string) (BarStore, error) {
	if IsPostgresDSN(dsn) {
		return postgres.NewStore(ctx, dsn)
	}
	return sqlite.NewStore(dsn)
}
