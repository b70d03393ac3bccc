package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langhaul/roadlog/internal/models"
)

// 设备状态键
const (
	keyDeviceID        = "device_id"
	keyDeviceSerial    = "device_serial"
	keyCurrentStatus   = "current_status"
	keyStatusStartTime = "status_start_time"
	keyLastSync        = "last_sync_timestamp"
)

// StateRepository 设备状态仓库。key/value 存储，
// 当前状态在每次转换后同步写入，用于崩溃恢复。
type StateRepository struct {
	db *DB
}

// NewStateRepository 创建状态仓库
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

const upsertStateQuery = `
	INSERT INTO device_state (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`

// Set 写入状态键
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.Pool.Exec(ctx, upsertStateQuery, key, value); err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// setPair 在同一事务内写入两个状态键，避免崩溃后恢复出不匹配的键值对
func (r *StateRepository) setPair(ctx context.Context, key1, value1, key2, value2 string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertStateQuery, key1, value1); err != nil {
		return fmt.Errorf("set state %s: %w", key1, err)
	}
	if _, err := tx.Exec(ctx, upsertStateQuery, key2, value2); err != nil {
		return fmt.Errorf("set state %s: %w", key2, err)
	}
	return tx.Commit(ctx)
}

// Get 读取状态键，不存在时返回空串
func (r *StateRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM device_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}

// SaveCurrentStatus 持久化当前状态与起始时间（原子写入）
func (r *StateRepository) SaveCurrentStatus(ctx context.Context, status models.DutyStatus, since time.Time) error {
	return r.setPair(ctx,
		keyCurrentStatus, string(status),
		keyStatusStartTime, since.UTC().Format(time.RFC3339Nano))
}

// LoadCurrentStatus 加载持久化的当前状态。无记录时返回 ok=false。
func (r *StateRepository) LoadCurrentStatus(ctx context.Context) (models.DutyStatus, time.Time, bool, error) {
	raw, err := r.Get(ctx, keyCurrentStatus)
	if err != nil || raw == "" {
		return "", time.Time{}, false, err
	}

	status := models.DutyStatus(raw)
	if !status.Valid() {
		return "", time.Time{}, false, nil
	}

	rawSince, err := r.Get(ctx, keyStatusStartTime)
	if err != nil {
		return "", time.Time{}, false, err
	}
	since, perr := time.Parse(time.RFC3339Nano, rawSince)
	if perr != nil {
		return "", time.Time{}, false, nil
	}
	return status, since, true, nil
}

// SaveDeviceID 持久化设备 ID 与序列号（原子写入）
func (r *StateRepository) SaveDeviceID(ctx context.Context, deviceID, serial string) error {
	return r.setPair(ctx,
		keyDeviceID, deviceID,
		keyDeviceSerial, serial)
}

// LoadDeviceID 加载设备 ID
func (r *StateRepository) LoadDeviceID(ctx context.Context) (string, error) {
	return r.Get(ctx, keyDeviceID)
}

// SaveLastSync 记录最近一次成功同步时间
func (r *StateRepository) SaveLastSync(ctx context.Context, ts time.Time) error {
	return r.Set(ctx, keyLastSync, ts.UTC().Format(time.RFC3339Nano))
}

// LoadLastSync 读取最近一次成功同步时间，从未同步时返回零值
func (r *StateRepository) LoadLastSync(ctx context.Context) (time.Time, error) {
	raw, err := r.Get(ctx, keyLastSync)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	ts, perr := time.Parse(time.RFC3339Nano, raw)
	if perr != nil {
		return time.Time{}, nil
	}
	return ts, nil
}
