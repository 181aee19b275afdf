package notify

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

type counter interface {
	Inc()
}

// RetryConfig describes how a RetryingNotifier backs off.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingNotifier retries transient broker failures with exponential backoff.
type RetryingNotifier struct {
	next    Notifier
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingNotifier returns nil when next is nil.
func NewRetryingNotifier(next Notifier, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingNotifier {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &RetryingNotifier{next: next, logger: logger, retries: retries, cfg: cfg}
}

// Notify forwards n, retrying while the error is retryable and ctx is alive.
func (r *RetryingNotifier) Notify(ctx context.Context, n domain.TransitionNotice) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := r.next.Notify(ctx, n)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == r.cfg.MaxAttempts || !isRetryable(err) {
			break
		}
		delay := backoff(r.cfg.BaseDelay, r.cfg.MaxDelay, attempt)
		if r.retries != nil {
			r.retries.Inc()
		}
		r.logger.Warn("notify retry",
			logx.String("request_id", n.RequestID),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return lastErr
}

// isRetryable reports broker conditions that usually clear on their own.
func isRetryable(err error) bool {
	var kerr sarama.KError
	if errors.As(err, &kerr) {
		switch kerr {
		case sarama.ErrLeaderNotAvailable,
			sarama.ErrNotLeaderForPartition,
			sarama.ErrRequestTimedOut,
			sarama.ErrNotEnoughReplicas,
			sarama.ErrNotEnoughReplicasAfterAppend,
			sarama.ErrNetworkException:
			return true
		}
		return false
	}
	return errors.Is(err, sarama.ErrOutOfBrokers) ||
		errors.Is(err, sarama.ErrNotConnected) ||
		errors.Is(err, context.DeadlineExceeded)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
