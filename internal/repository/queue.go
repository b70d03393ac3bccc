package repository

import (
	"context"
	"fmt"

	"github.com/langhaul/roadlog/internal/models"
)

// QueueRepository 离线队列仓库。每次变更立即落盘，
// 进程重启后从持久化状态恢复，排队中的合规数据不会丢失。
type QueueRepository struct {
	db *DB
}

// NewQueueRepository 创建队列仓库
func NewQueueRepository(db *DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue 追加队列条目
func (r *QueueRepository) Enqueue(ctx context.Context, item *models.QueueItem) error {
	query := `INSERT INTO queue_items (id, kind, payload, enqueued_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, query, item.ID, item.Kind, item.Payload, item.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("enqueue %s item: %w", item.Kind, err)
	}
	return nil
}

// List 按入队顺序获取某队列的全部条目
func (r *QueueRepository) List(ctx context.Context, kind models.QueueKind) ([]*models.QueueItem, error) {
	query := `SELECT id, kind, payload, enqueued_at FROM queue_items WHERE kind = $1 ORDER BY enqueued_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s queue: %w", kind, err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item := &models.QueueItem{}
		if err := rows.Scan(&item.ID, &item.Kind, &item.Payload, &item.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan %s item: %w", kind, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove 删除指定条目（一个批次确认后调用）
func (r *QueueRepository) Remove(ctx context.Context, kind models.QueueKind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM queue_items WHERE kind = $1 AND id = ANY($2)`
	if _, err := r.db.Pool.Exec(ctx, query, kind, ids); err != nil {
		return fmt.Errorf("remove %s items: %w", kind, err)
	}
	return nil
}

// Clear 清空某队列
func (r *QueueRepository) Clear(ctx context.Context, kind models.QueueKind) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM queue_items WHERE kind = $1`, kind); err != nil {
		return fmt.Errorf("clear %s queue: %w", kind, err)
	}
	return nil
}

// Count 某队列当前长度
func (r *QueueRepository) Count(ctx context.Context, kind models.QueueKind) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM queue_items WHERE kind = $1`, kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %s queue: %w", kind, err)
	}
	return count, nil
}

// DropOldest 丢弃队列最旧的 n 条（仅用于容量受限的 locations 队列）
func (r *QueueRepository) DropOldest(ctx context.Context, kind models.QueueKind, n int) error {
	query := `
		DELETE FROM queue_items WHERE id IN (
			SELECT id FROM queue_items WHERE kind = $1 ORDER BY enqueued_at ASC, id ASC LIMIT $2
		)
	`
	if _, err := r.db.Pool.Exec(ctx, query, kind, n); err != nil {
		return fmt.Errorf("drop oldest %s items: %w", kind, err)
	}
	return nil
}
