// Package queue 管理四条相互独立的持久化 FIFO 队列
// (locations / logs / events / dvirs)。每次变更即时落盘，
// 进程重启不会丢失已排队的合规数据。
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langhaul/roadlog/internal/models"
)

// Store 队列持久化存储
type Store interface {
	Enqueue(ctx context.Context, item *models.QueueItem) error
	List(ctx context.Context, kind models.QueueKind) ([]*models.QueueItem, error)
	Remove(ctx context.Context, kind models.QueueKind, ids []string) error
	Clear(ctx context.Context, kind models.QueueKind) error
	Count(ctx context.Context, kind models.QueueKind) (int, error)
	DropOldest(ctx context.Context, kind models.QueueKind, n int) error
}

// Manager 离线队列管理器。溢出策略按队列类型区分：
// locations 为有界队列，溢出时丢弃最旧采样（低价值遥测，可接受丢失）；
// logs/events/dvirs 绝不静默丢弃，超过软上限仅产生运维告警。
type Manager struct {
	logger      *zap.Logger
	store       Store
	locationCap int
	softCap     int

	now func() time.Time
}

// NewManager 创建队列管理器
func NewManager(logger *zap.Logger, store Store, locationCap, softCap int) *Manager {
	if locationCap <= 0 {
		locationCap = 1000
	}
	if softCap <= 0 {
		softCap = 5000
	}
	return &Manager{
		logger:      logger,
		store:       store,
		locationCap: locationCap,
		softCap:     softCap,
		now:         time.Now,
	}
}

// SetClock 覆盖时间源（测试用）
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Enqueue 编码 payload 并追加到指定队列
func (m *Manager) Enqueue(ctx context.Context, kind models.QueueKind, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	count, err := m.store.Count(ctx, kind)
	if err != nil {
		return err
	}

	if kind == models.QueueLocations {
		if count >= m.locationCap {
			drop := count - m.locationCap + 1
			if err := m.store.DropOldest(ctx, kind, drop); err != nil {
				return err
			}
			m.logger.Debug("Location queue full, dropped oldest samples",
				zap.Int("dropped", drop),
				zap.Int("cap", m.locationCap))
		}
	} else if count >= m.softCap {
		// 合规数据不丢弃，超限仅告警
		m.logger.Warn("Queue exceeds soft cap",
			zap.String("kind", string(kind)),
			zap.Int("pending", count),
			zap.Int("soft_cap", m.softCap))
	}

	item := &models.QueueItem{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    data,
		EnqueuedAt: m.now(),
	}
	return m.store.Enqueue(ctx, item)
}

// Snapshot 按入队顺序读取某队列全部条目，不移除
func (m *Manager) Snapshot(ctx context.Context, kind models.QueueKind) ([]*models.QueueItem, error) {
	return m.store.List(ctx, kind)
}

// RemoveBatch 一个批次被后端确认后移除该批次条目
func (m *Manager) RemoveBatch(ctx context.Context, kind models.QueueKind, items []*models.QueueItem) error {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return m.store.Remove(ctx, kind, ids)
}

// Clear 整队确认后清空
func (m *Manager) Clear(ctx context.Context, kind models.QueueKind) error {
	return m.store.Clear(ctx, kind)
}

// Stats 各队列当前积压数，供 UI 层展示
func (m *Manager) Stats(ctx context.Context) (map[models.QueueKind]int, error) {
	stats := make(map[models.QueueKind]int, len(models.AllQueueKinds))
	for _, kind := range models.AllQueueKinds {
		count, err := m.store.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		stats[kind] = count
	}
	return stats, nil
}
