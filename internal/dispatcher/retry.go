package dispatcher

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy — повторы запросов к провайдеру.
type RetryPolicy struct {
	MaxAttempts  int           // default: 3
	InitialDelay time.Duration // default: 1s
	MaxDelay     time.Duration // default: 30s
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// backoff вычисляет задержку перед попыткой attempt+1: initial * 2^(attempt-1).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return min(delay, p.MaxDelay)
}

// retryable — ошибку можно повторить.
func retryable(err error) bool {
	return errors.Is(err, ErrProviderRequest)
}

// withRetry выполняет fn, повторяя retryable ошибки.
// Возвращает результат последней попытки и число попыток.
func withRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (string, error)) (string, int, error) {
	var (
		ref string
		err error
	)
	for attempt := 1; ; attempt++ {
		ref, err = fn(ctx)
		if err == nil || !retryable(err) || attempt >= policy.MaxAttempts {
			return ref, attempt, err
		}

		select {
		case <-time.After(policy.backoff(attempt)):
		case <-ctx.Done():
			return "", attempt, ctx.Err()
		}
	}
}
