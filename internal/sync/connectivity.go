package sync

import (
	"context"
	stdsync "sync"
	"time"
)

// Prober 后端可达性探测
type Prober interface {
	Ping(ctx context.Context) bool
}

// Monitor 连通性监视。探测结果缓存一个 TTL，
// 避免每次同步前都打一次探测请求。
type Monitor struct {
	prober  Prober
	ttl     time.Duration
	timeout time.Duration

	mu      stdsync.Mutex
	online  bool
	checked time.Time

	now func() time.Time
}

// NewMonitor 创建连通性监视器
func NewMonitor(prober Prober, ttl, timeout time.Duration) *Monitor {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Monitor{
		prober:  prober,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
	}
}

// Online 当前是否在线（带缓存）
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.checked.IsZero() && now.Sub(m.checked) < m.ttl {
		return m.online
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.online = m.prober.Ping(ctx)
	m.checked = now
	return m.online
}
