package testutil

import (
	"sync"
	"time"
)

// Clock 测试用可控时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock 创建从 start 开始的时钟
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now 当前时间
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 前进 d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set 设置为指定时间
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
