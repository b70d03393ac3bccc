package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 设备端单进程访问，小连接池即可
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateDeviceState,
		migrationCreateDutyLogs,
		migrationCreateQueueItems,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

const migrationCreateDeviceState = `
CREATE TABLE IF NOT EXISTS device_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const migrationCreateDutyLogs = `
CREATE TABLE IF NOT EXISTS duty_logs (
	id               UUID PRIMARY KEY,
	device_id        TEXT NOT NULL,
	date             TEXT NOT NULL,
	type             TEXT NOT NULL,
	start_time       TIMESTAMPTZ NOT NULL,
	end_time         TIMESTAMPTZ,
	duration_minutes DOUBLE PRECISION,
	start_location   JSONB,
	end_location     JSONB,
	odometer_start   DOUBLE PRECISION,
	odometer_end     DOUBLE PRECISION,
	notes            TEXT NOT NULL DEFAULT '',
	certified        BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_duty_logs_start_time ON duty_logs (start_time)`

const migrationCreateQueueItems = `
CREATE TABLE IF NOT EXISTS queue_items (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	enqueued_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queue_items_kind ON queue_items (kind, enqueued_at)`
