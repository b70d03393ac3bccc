package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/langhaul/roadlog/internal/models"
)

// allStatuses 固定的状态全集
var allStatuses = []models.DutyStatus{
	models.StatusDriving,
	models.StatusOnDuty,
	models.StatusOffDuty,
	models.StatusSleeperBerth,
	models.StatusPersonalConveyance,
	models.StatusYardMoves,
}

// eventFor 目标状态对应的事件名
func eventFor(status models.DutyStatus) string {
	return "to_" + string(status)
}

// Machine 职责状态机。任意状态可转换到除自身外的任意状态，
// 同状态事件未定义，fsm.Can 返回 false。
type Machine struct {
	mu       sync.RWMutex
	fsm      *fsm.FSM
	since    time.Time
	onChange func(from, to models.DutyStatus)
}

// NewMachine 创建状态机。initial 非法时回退到 off_duty。
func NewMachine(initial models.DutyStatus, since time.Time, onChange func(from, to models.DutyStatus)) *Machine {
	if !initial.Valid() {
		initial = models.StatusOffDuty
	}
	if since.IsZero() {
		since = time.Now()
	}

	m := &Machine{
		since:    since,
		onChange: onChange,
	}

	var events fsm.Events
	for _, dst := range allStatuses {
		var srcs []string
		for _, src := range allStatuses {
			if src != dst {
				srcs = append(srcs, string(src))
			}
		}
		events = append(events, fsm.EventDesc{Name: eventFor(dst), Src: srcs, Dst: string(dst)})
	}

	m.fsm = fsm.NewFSM(
		string(initial),
		events,
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onChange != nil && e.Src != e.Dst {
					m.onChange(models.DutyStatus(e.Src), models.DutyStatus(e.Dst))
				}
			},
		},
	)

	return m
}

// Current 获取当前状态
func (m *Machine) Current() models.DutyStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.DutyStatus(m.fsm.Current())
}

// Since 当前状态的起始时间
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition 转换到目标状态并记录起始时间
func (m *Machine) Transition(target models.DutyStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), eventFor(target)); err != nil {
		return fmt.Errorf("transition to %s: %w", target, err)
	}

	m.since = at
	return nil
}

// CanTransition 检查是否可以转换到目标状态
func (m *Machine) CanTransition(target models.DutyStatus) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(eventFor(target))
}
