// Package retry 提供统一的网络重试策略：固定次数上限 + 指数退避。
// 所有网络操作使用同一个抽象，不在调用点重复退避逻辑。
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/langhaul/roadlog/internal/models"
)

// Policy 重试策略
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Default 默认策略：最多 3 次，退避 1s/2s/4s
func Default() Policy {
	return Policy{MaxAttempts: 3, InitialBackoff: time.Second}
}

// Do 执行 fn，失败时按指数退避重试。AuthError 不可重试，立即返回。
// 返回最后一次的错误。
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var authErr *models.AuthError
		if errors.As(lastErr, &authErr) {
			return lastErr
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}
