package store

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"
)

// retryStore 写入失败时指数退避重试, 用尽后把错误返回给调用方而不是静默丢弃
type retryStore struct {
	Store
	attempts int
	backoff  time.Duration
}

// WithRetry attempts <= 1 时不重试
func WithRetry(s Store, attempts int, backoff time.Duration) Store {
	if attempts < 1 {
		attempts = 1
	}
	return &retryStore{Store: s, attempts: attempts, backoff: backoff}
}

func (r *retryStore) Set(ctx context.Context, path string, value any) error {
	return r.do(ctx, "set", path, func(ctx context.Context) error {
		return r.Store.Set(ctx, path, value)
	})
}

func (r *retryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return r.do(ctx, "update", path, func(ctx context.Context) error {
		return r.Store.Update(ctx, path, fields)
	})
}

func (r *retryStore) Remove(ctx context.Context, path string) error {
	return r.do(ctx, "remove", path, func(ctx context.Context) error {
		return r.Store.Remove(ctx, path)
	})
}

func (r *retryStore) do(ctx context.Context, op, path string, fn func(context.Context) error) error {
	var err error
	backoff := r.backoff
	for i := 0; i < r.attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidPath) || errors.Is(err, ErrNotObject) || errors.Is(err, ErrNotFound) {
			break
		}
		if i == r.attempts-1 {
			break
		}
		log.WarnContext(ctx, "store write failed, retrying", "op", op, "path", path, "attempt", i+1, "err", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s %s: %w", op, path, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
