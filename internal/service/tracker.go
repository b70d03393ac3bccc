// Package service 编排职责状态跟踪：状态转换、日志开闭、
// 计时器重算、违规入队与机会性同步触发。
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langhaul/roadlog/internal/hos"
	"github.com/langhaul/roadlog/internal/models"
	"github.com/langhaul/roadlog/internal/queue"
	"github.com/langhaul/roadlog/internal/state"
)

// LogStore 已关闭日志的只增存储
type LogStore interface {
	Append(ctx context.Context, log *models.DutyLog) error
	ListSince(ctx context.Context, since time.Time) ([]*models.DutyLog, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// StateStore 设备状态持久化
type StateStore interface {
	SaveCurrentStatus(ctx context.Context, status models.DutyStatus, since time.Time) error
	LoadCurrentStatus(ctx context.Context) (models.DutyStatus, time.Time, bool, error)
	LoadLastSync(ctx context.Context) (time.Time, error)
}

// Syncer 机会性同步触发
type Syncer interface {
	RequestSync()
}

// Notifier 面向驾驶舱 UI 的实时推送
type Notifier interface {
	BroadcastEvent(eventType string, data interface{})
}

// TransitionRequest 状态转换请求
type TransitionRequest struct {
	NewStatus models.DutyStatus
	Location  *models.Location
	Odometer  *float64
	Notes     string
}

// StatusSnapshot 跟踪器对外暴露的状态快照
type StatusSnapshot struct {
	DeviceID      string                   `json:"device_id"`
	CurrentStatus models.DutyStatus        `json:"current_status"`
	StatusSince   time.Time                `json:"status_since"`
	Summary       hos.Summary              `json:"summary"`
	Pending       map[models.QueueKind]int `json:"pending"`
	LastSync      *time.Time               `json:"last_sync,omitempty"`
}

// Tracker 职责状态跟踪器。设备上只有一个逻辑写者：
// 状态转换、重算与入队顺序执行，网络传输永不阻塞本路径。
type Tracker struct {
	logger    *zap.Logger
	deviceID  string
	retention time.Duration
	maxSpeed  float64

	machine   *state.Machine
	logs      LogStore
	stateRepo StateStore
	queues    *queue.Manager
	syncer    Syncer
	notifier  Notifier

	mu             sync.Mutex
	open           *models.DutyLog // 唯一一条 end = null 的日志
	lastSample     *models.LocationSample
	lastViolations []models.ViolationEvent

	now func() time.Time
}

// NewTracker 创建跟踪器
func NewTracker(
	logger *zap.Logger,
	deviceID string,
	retention time.Duration,
	maxSpeedMph float64,
	logs LogStore,
	stateRepo StateStore,
	queues *queue.Manager,
	syncer Syncer,
	notifier Notifier,
) *Tracker {
	if retention <= 0 {
		retention = 8 * 24 * time.Hour
	}
	return &Tracker{
		logger:    logger,
		deviceID:  deviceID,
		retention: retention,
		maxSpeed:  maxSpeedMph,
		logs:      logs,
		stateRepo: stateRepo,
		queues:    queues,
		syncer:    syncer,
		notifier:  notifier,
		now:       time.Now,
	}
}

// SetClock 覆盖时间源（测试用）
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Init 从持久化状态恢复当前职责状态。无记录时以 off_duty 起始并立即持久化。
func (t *Tracker) Init(ctx context.Context) error {
	status, since, ok, err := t.stateRepo.LoadCurrentStatus(ctx)
	if err != nil {
		return err
	}
	if !ok {
		status = models.StatusOffDuty
		since = t.now()
		if err := t.stateRepo.SaveCurrentStatus(ctx, status, since); err != nil {
			return err
		}
	}

	t.machine = state.NewMachine(status, since, t.onStatusChange)
	t.mu.Lock()
	t.open = t.newOpenLog(status, since, nil, nil, "")
	t.mu.Unlock()

	t.logger.Info("Duty status recovered",
		zap.String("status", string(status)),
		zap.Time("since", since))
	return nil
}

func (t *Tracker) onStatusChange(from, to models.DutyStatus) {
	t.logger.Info("Duty status changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

// Transition 执行状态转换。校验失败在任何状态变更前同步拒绝；
// 已关闭日志与当前状态先落盘，全部成功后才切换内存状态——
// 持久化中途失败时跟踪器保持原状态，日志不丢失。
// 随后重算计时器、入队并触发一次机会性同步。
func (t *Tracker) Transition(ctx context.Context, req TransitionRequest) (*models.DutyLog, error) {
	if !req.NewStatus.Valid() {
		return nil, models.NewValidationError("unknown duty status")
	}
	if req.NewStatus == t.machine.Current() {
		return nil, models.NewValidationError("no state change")
	}
	if req.Location == nil {
		return nil, models.NewValidationError("location is required")
	}
	if !req.Location.InRange() {
		return nil, models.NewValidationError("coordinates out of range")
	}
	if req.Odometer == nil {
		return nil, models.NewValidationError("odometer is required")
	}
	if *req.Odometer < 0 {
		return nil, models.NewValidationError("odometer cannot be negative")
	}

	now := t.now()

	t.mu.Lock()
	closed := *t.open
	t.mu.Unlock()

	closed.EndTime = &now
	duration := now.Sub(closed.StartTime).Minutes()
	closed.DurationMinutes = &duration
	closed.EndLocation = req.Location
	closed.OdometerEnd = req.Odometer

	if err := t.logs.Append(ctx, &closed); err != nil {
		t.logger.Error("Failed to append duty log", zap.Error(err))
		return nil, err
	}
	if pruned, err := t.logs.Prune(ctx, now.Add(-t.retention)); err != nil {
		t.logger.Error("Failed to prune duty logs", zap.Error(err))
	} else if pruned > 0 {
		t.logger.Debug("Pruned duty logs", zap.Int64("count", pruned))
	}

	// 崩溃恢复依赖：当前状态必须同步落盘
	if err := t.stateRepo.SaveCurrentStatus(ctx, req.NewStatus, now); err != nil {
		t.logger.Error("Failed to persist current status", zap.Error(err))
		return nil, err
	}

	if err := t.machine.Transition(req.NewStatus, now); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.open = t.newOpenLog(req.NewStatus, now, req.Location, req.Odometer, req.Notes)
	t.mu.Unlock()

	if err := t.queues.Enqueue(ctx, models.QueueLogs, &closed); err != nil {
		t.logger.Error("Failed to enqueue duty log", zap.Error(err))
	}

	t.Recompute(ctx)

	t.broadcast("status_update", map[string]interface{}{
		"status": req.NewStatus,
		"since":  now,
	})

	if t.syncer != nil {
		t.syncer.RequestSync()
	}

	t.logger.Info("Completed duty log",
		zap.String("type", string(closed.Type)),
		zap.Float64("duration_min", duration))
	return &closed, nil
}

// Recompute 重算计时器并做违规评估。每个周期输出完整违规集合，
// 逐条入队 events 队列。
func (t *Tracker) Recompute(ctx context.Context) hos.Summary {
	now := t.now()
	current := t.machine.Current()
	since := t.machine.Since()

	closed, err := t.logs.ListSince(ctx, now.Add(-t.retention))
	if err != nil {
		t.logger.Error("Failed to load duty logs", zap.Error(err))
		closed = nil
	}

	summary := hos.Calculate(now, current, since, closed)
	violations := hos.Detect(now, t.deviceID, current, summary)

	for _, v := range violations {
		if err := t.queues.Enqueue(ctx, models.QueueEvents, v); err != nil {
			t.logger.Error("Failed to enqueue violation",
				zap.String("type", v.Type),
				zap.Error(err))
		}
	}

	t.mu.Lock()
	t.lastViolations = violations
	t.mu.Unlock()

	if len(violations) > 0 {
		t.broadcast("violations", violations)
	}
	return summary
}

// RunRecompute 周期重算任务。与同步循环相互独立，
// 只通过队列与持久化状态协作。
func (t *Tracker) RunRecompute(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Recompute(ctx)
		}
	}
}

// RecordLocation 接收位置采样：遥测违规评估后与采样一起入队
func (t *Tracker) RecordLocation(ctx context.Context, sample *models.LocationSample) error {
	if sample == nil {
		return models.NewValidationError("location sample is required")
	}
	loc := models.Location{Latitude: sample.Latitude, Longitude: sample.Longitude}
	if !loc.InRange() {
		return models.NewValidationError("coordinates out of range")
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = t.now()
	}

	t.mu.Lock()
	prev := t.lastSample
	t.lastSample = sample
	t.mu.Unlock()

	violations := hos.DetectTelemetry(t.deviceID, prev, sample, t.maxSpeed)
	for _, v := range violations {
		if err := t.queues.Enqueue(ctx, models.QueueEvents, v); err != nil {
			t.logger.Error("Failed to enqueue telemetry violation",
				zap.String("type", v.Type),
				zap.Error(err))
		}
	}
	if len(violations) > 0 {
		t.broadcast("violations", violations)
	}

	return t.queues.Enqueue(ctx, models.QueueLocations, sample)
}

// SubmitInspection 接收车检报告并入队
func (t *Tracker) SubmitInspection(ctx context.Context, report *models.InspectionReport) error {
	if report == nil {
		return models.NewValidationError("inspection report is required")
	}
	switch report.InspectionType {
	case models.InspectionPreTrip, models.InspectionPostTrip:
	default:
		return models.NewValidationError("unknown inspection type")
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.DeviceID = t.deviceID
	if report.CreatedAt.IsZero() {
		report.CreatedAt = t.now()
	}
	return t.queues.Enqueue(ctx, models.QueueDvirs, report)
}

// ImportLog 导入历史日志记录（旧采集端迁移数据），加载时统一归一化
func (t *Tracker) ImportLog(ctx context.Context, raw []byte) (*models.DutyLog, error) {
	log, err := models.NormalizeDutyLog(raw)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if log.Open() {
		return nil, models.NewValidationError("imported log must be closed")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.DeviceID = t.deviceID
	if err := t.logs.Append(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// Status 面向 UI 层的状态快照：当前状态、计时器、
// 各队列积压数与最近同步时间。
func (t *Tracker) Status(ctx context.Context) (*StatusSnapshot, error) {
	now := t.now()
	current := t.machine.Current()
	since := t.machine.Since()

	closed, err := t.logs.ListSince(ctx, now.Add(-t.retention))
	if err != nil {
		return nil, err
	}

	pending, err := t.queues.Stats(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &StatusSnapshot{
		DeviceID:      t.deviceID,
		CurrentStatus: current,
		StatusSince:   since,
		Summary:       hos.Calculate(now, current, since, closed),
		Pending:       pending,
	}

	lastSync, err := t.stateRepo.LoadLastSync(ctx)
	if err == nil && !lastSync.IsZero() {
		snapshot.LastSync = &lastSync
	}
	return snapshot, nil
}

// CurrentStatus 当前职责状态
func (t *Tracker) CurrentStatus() models.DutyStatus {
	return t.machine.Current()
}

// CurrentViolations 最近一次评估周期的违规集合
func (t *Tracker) CurrentViolations() []models.ViolationEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.ViolationEvent, len(t.lastViolations))
	copy(out, t.lastViolations)
	return out
}

// RecentLogs 最近窗口内的已关闭日志
func (t *Tracker) RecentLogs(ctx context.Context, window time.Duration) ([]*models.DutyLog, error) {
	if window <= 0 || window > t.retention {
		window = t.retention
	}
	return t.logs.ListSince(ctx, t.now().Add(-window))
}

func (t *Tracker) newOpenLog(status models.DutyStatus, start time.Time, loc *models.Location, odometer *float64, notes string) *models.DutyLog {
	return &models.DutyLog{
		ID:            uuid.NewString(),
		DeviceID:      t.deviceID,
		Date:          start.Format("2006-01-02"),
		Type:          status,
		StartTime:     start,
		StartLocation: loc,
		OdometerStart: odometer,
		Notes:         notes,
	}
}

func (t *Tracker) broadcast(eventType string, data interface{}) {
	if t.notifier != nil {
		t.notifier.BroadcastEvent(eventType, data)
	}
}
