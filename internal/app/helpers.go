package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/repository"
)

var newPool = repository.NewPool

func connectDbWithRetry(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error) {
	var lastErr error
	const attemptTimeout = 3 * time.Second
	for i := 1; i <= retries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		pool, err := newPool(attemptCtx, dsn)
		cancel()
		if err == nil {
			logger.Info("db connected", logx.Int("attempt", i))
			return pool, nil
		}
		lastErr = err
		logger.Warn("db connect failed",
			logx.Int("attempt", i),
			logx.Int("retries", retries),
			logx.Err(err),
		)
		if i < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", retries, lastErr)
}

// dbHandle opens the pool on first use so the memory store never dials Postgres.
type dbHandle struct {
	once sync.Once
	open func() (*pgxpool.Pool, error)
	pool *pgxpool.Pool
	err  error
}

// Pool returns the shared pool, connecting on the first call.
func (h *dbHandle) Pool() (*pgxpool.Pool, error) {
	h.once.Do(func() { h.pool, h.err = h.open() })
	return h.pool, h.err
}

// Close closes the pool if it was opened.
func (h *dbHandle) Close() {
	if h == nil || h.pool == nil {
		return
	}
	h.pool.Close()
}
