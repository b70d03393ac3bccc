// Package testutil 提供测试用的内存存储与可控时钟。
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/langhaul/roadlog/internal/models"
)

// MemQueueStore queue.Store 的内存实现
type MemQueueStore struct {
	mu    sync.Mutex
	items map[models.QueueKind][]*models.QueueItem
}

// NewMemQueueStore 创建内存队列存储
func NewMemQueueStore() *MemQueueStore {
	return &MemQueueStore{items: make(map[models.QueueKind][]*models.QueueItem)}
}

func (s *MemQueueStore) Enqueue(_ context.Context, item *models.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.items[item.Kind] = append(s.items[item.Kind], &copied)
	return nil
}

func (s *MemQueueStore) List(_ context.Context, kind models.QueueKind) ([]*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.QueueItem, len(s.items[kind]))
	copy(out, s.items[kind])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out, nil
}

func (s *MemQueueStore) Remove(_ context.Context, kind models.QueueKind, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}
	var kept []*models.QueueItem
	for _, item := range s.items[kind] {
		if !removed[item.ID] {
			kept = append(kept, item)
		}
	}
	s.items[kind] = kept
	return nil
}

func (s *MemQueueStore) Clear(_ context.Context, kind models.QueueKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[kind] = nil
	return nil
}

func (s *MemQueueStore) Count(_ context.Context, kind models.QueueKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items[kind]), nil
}

func (s *MemQueueStore) DropOldest(_ context.Context, kind models.QueueKind, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= len(s.items[kind]) {
		s.items[kind] = nil
		return nil
	}
	s.items[kind] = s.items[kind][n:]
	return nil
}

// MemLogStore service.LogStore 的内存实现
type MemLogStore struct {
	mu   sync.Mutex
	logs []*models.DutyLog
}

// NewMemLogStore 创建内存日志存储
func NewMemLogStore() *MemLogStore {
	return &MemLogStore{}
}

func (s *MemLogStore) Append(_ context.Context, log *models.DutyLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *log
	s.logs = append(s.logs, &copied)
	return nil
}

func (s *MemLogStore) ListSince(_ context.Context, since time.Time) ([]*models.DutyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DutyLog
	for _, l := range s.logs {
		if !l.StartTime.Before(since) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *MemLogStore) Prune(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*models.DutyLog
	var pruned int64
	for _, l := range s.logs {
		if l.StartTime.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, l)
	}
	s.logs = kept
	return pruned, nil
}

// All 当前全部日志
func (s *MemLogStore) All() []*models.DutyLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.DutyLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// MemStateStore service.StateStore 与 sync.SyncStateStore 的内存实现
type MemStateStore struct {
	mu       sync.Mutex
	status   models.DutyStatus
	since    time.Time
	hasState bool
	lastSync time.Time
	saves    int
}

// NewMemStateStore 创建内存状态存储
func NewMemStateStore() *MemStateStore {
	return &MemStateStore{}
}

func (s *MemStateStore) SaveCurrentStatus(_ context.Context, status models.DutyStatus, since time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.since = since
	s.hasState = true
	s.saves++
	return nil
}

func (s *MemStateStore) LoadCurrentStatus(_ context.Context) (models.DutyStatus, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.since, s.hasState, nil
}

func (s *MemStateStore) SaveLastSync(_ context.Context, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync = ts
	return nil
}

func (s *MemStateStore) LoadLastSync(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync, nil
}

// Saves 状态持久化次数
func (s *MemStateStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// PersistedStatus 当前持久化的状态
func (s *MemStateStore) PersistedStatus() (models.DutyStatus, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.since
}
