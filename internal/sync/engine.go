// Package sync 将离线队列中的合规数据批量传输到后端。
// 周期触发与状态转换后的即时触发共用一个引擎；
// 运行无人值守，所有失败以数据形式返回，从不向调用方抛错。
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langhaul/roadlog/internal/models"
	"github.com/langhaul/roadlog/internal/queue"
	"github.com/langhaul/roadlog/internal/retry"
)

// Backend 后端提交接口
type Backend interface {
	SubmitLocations(ctx context.Context, deviceID string, locations []json.RawMessage) error
	SubmitLogs(ctx context.Context, deviceID string, logs []json.RawMessage) error
	SubmitEvents(ctx context.Context, deviceID string, events []json.RawMessage) error
	SubmitDvirs(ctx context.Context, deviceID string, dvirs []json.RawMessage) error
}

// Connectivity 连通性监视
type Connectivity interface {
	Online() bool
}

// SyncStateStore 同步时间戳持久化
type SyncStateStore interface {
	SaveLastSync(ctx context.Context, ts time.Time) error
}

// Engine 同步引擎
type Engine struct {
	logger       *zap.Logger
	queues       *queue.Manager
	backend      Backend
	connectivity Connectivity
	syncState    SyncStateStore
	policy       retry.Policy
	batchSize    int

	mu      sync.Mutex
	running bool // 进行中防护：并发触发时第二次调用直接空转

	kick chan struct{}
	now  func() time.Time
}

// NewEngine 创建同步引擎
func NewEngine(
	logger *zap.Logger,
	queues *queue.Manager,
	backend Backend,
	connectivity Connectivity,
	syncState SyncStateStore,
	policy retry.Policy,
	batchSize int,
) *Engine {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Engine{
		logger:       logger,
		queues:       queues,
		backend:      backend,
		connectivity: connectivity,
		syncState:    syncState,
		policy:       policy,
		batchSize:    batchSize,
		kick:         make(chan struct{}, 1),
		now:          time.Now,
	}
}

// SetClock 覆盖时间源（测试用）
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// RequestSync 请求一次机会性同步。非阻塞：状态转换路径
// 只投递信号，绝不等待网络。
func (e *Engine) RequestSync() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run 后台同步循环：固定间隔 + RequestSync 信号触发
func (e *Engine) Run(ctx context.Context, deviceID string, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.kick:
		}

		result := e.DrainAndSync(ctx, deviceID)
		if result.Total() > 0 || len(result.Errors) > 0 {
			e.logger.Info("Sync cycle finished",
				zap.Int("locations", result.LocationsSynced),
				zap.Int("logs", result.LogsSynced),
				zap.Int("events", result.EventsSynced),
				zap.Int("dvirs", result.DvirsSynced),
				zap.Strings("errors", result.Errors))
		}
	}
}

// DrainAndSync 排空四条队列。离线时为空操作；locations 按批次
// 部分排空，其余三类合规队列整队验证、整队传输。
func (e *Engine) DrainAndSync(ctx context.Context, deviceID string) *models.SyncResult {
	result := &models.SyncResult{Errors: []string{}}

	if !e.connectivity.Online() {
		e.logger.Debug("Offline, skipping sync cycle")
		return result
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Debug("Sync already in flight, skipping")
		return result
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	aborted := e.syncLocations(ctx, deviceID, result)

	if !aborted {
		for _, kind := range []models.QueueKind{models.QueueLogs, models.QueueEvents, models.QueueDvirs} {
			if e.syncCompliance(ctx, deviceID, kind, result) {
				aborted = true
				break
			}
		}
	}

	if result.Total() > 0 {
		if err := e.syncState.SaveLastSync(ctx, e.now()); err != nil {
			e.logger.Error("Failed to persist last sync timestamp", zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
		}
	}

	return result
}

// syncLocations 位置队列按 ≤batchSize 分批传输。单批成功即移除该批，
// 失败则停止并保留剩余队列（顺序保持）。返回是否因鉴权失败中止周期。
func (e *Engine) syncLocations(ctx context.Context, deviceID string, result *models.SyncResult) bool {
	items, err := e.queues.Snapshot(ctx, models.QueueLocations)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return false
	}

	for start := 0; start < len(items); start += e.batchSize {
		end := start + e.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		err := e.policy.Do(ctx, func(ctx context.Context) error {
			return e.backend.SubmitLocations(ctx, deviceID, payloads(batch))
		})
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return isAuthError(err)
		}

		if err := e.queues.RemoveBatch(ctx, models.QueueLocations, batch); err != nil {
			result.Errors = append(result.Errors, err.Error())
			return false
		}
		result.LocationsSynced += len(batch)
	}
	return false
}

// syncCompliance 合规队列（logs/events/dvirs）整队处理：
// 先逐条结构校验，任一条目非法则整队保留、本周期跳过；
// 校验通过后整队一批传输，成功仅移除快照内条目
// （传输期间新入队的留待下一周期），失败原样保留。
func (e *Engine) syncCompliance(ctx context.Context, deviceID string, kind models.QueueKind, result *models.SyncResult) bool {
	items, err := e.queues.Snapshot(ctx, kind)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return false
	}
	if len(items) == 0 {
		return false
	}

	for _, item := range items {
		if verr := validateItem(item); verr != nil {
			e.logger.Warn("Queue item failed validation, holding queue",
				zap.String("kind", string(kind)),
				zap.String("item_id", item.ID),
				zap.Error(verr))
			result.Errors = append(result.Errors, verr.Error())
			return false
		}
	}

	err = e.policy.Do(ctx, func(ctx context.Context) error {
		switch kind {
		case models.QueueLogs:
			return e.backend.SubmitLogs(ctx, deviceID, payloads(items))
		case models.QueueEvents:
			return e.backend.SubmitEvents(ctx, deviceID, payloads(items))
		default:
			return e.backend.SubmitDvirs(ctx, deviceID, payloads(items))
		}
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return isAuthError(err)
	}

	if err := e.queues.RemoveBatch(ctx, kind, items); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return false
	}

	switch kind {
	case models.QueueLogs:
		result.LogsSynced += len(items)
	case models.QueueEvents:
		result.EventsSynced += len(items)
	default:
		result.DvirsSynced += len(items)
	}
	return false
}

func payloads(items []*models.QueueItem) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item.Payload))
	}
	return out
}

func isAuthError(err error) bool {
	var authErr *models.AuthError
	return errors.As(err, &authErr)
}
