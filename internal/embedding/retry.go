package embedding

import (
	"context"
	"time"
)

// withRetry 对可重试错误做指数退避重试，上下文取消时立即返回
func withRetry(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return WrapError(ErrCodeTimeout, ErrMsgTimeout, ctx.Err())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}
