package message

import (
	"context"
	"time"

	"tutor_chat_server/pkg/errorx"
)

// withRetry 只重试暂时性存储错误，指数退避
// attempts 为额外重试次数，总执行次数最多 attempts+1
func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	for i := 0; ; i++ {
		err := fn()
		if err == nil || !errorx.IsTransient(err) || i >= attempts {
			return err
		}
		timer := time.NewTimer(backoff << i)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
