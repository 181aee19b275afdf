package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

var (
	// ErrQueueFull is returned when the background queue has no room for a notice.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("notifier closed")
)

// AsyncConfig sizes the background queue and bounds each delivery.
type AsyncConfig struct {
	QueueSize int
	Timeout   time.Duration
}

// AsyncNotifier queues notices and delivers them to next from a single
// background goroutine, so callers never wait on the sink.
type AsyncNotifier struct {
	next     Notifier
	logger   logx.Logger
	failures counter
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan domain.TransitionNotice
	done   chan struct{}
	once   sync.Once
}

// NewAsyncNotifier starts the delivery goroutine. It returns nil when next is nil.
func NewAsyncNotifier(next Notifier, logger logx.Logger, failures counter, cfg AsyncConfig) *AsyncNotifier {
	if next == nil {
		return nil
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	a := &AsyncNotifier{
		next:     next,
		logger:   logger,
		failures: failures,
		timeout:  cfg.Timeout,
		queue:    make(chan domain.TransitionNotice, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify enqueues n without blocking.
func (a *AsyncNotifier) Notify(_ context.Context, n domain.TransitionNotice) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *AsyncNotifier) run() {
	defer close(a.done)
	for n := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Notify(ctx, n)
		cancel()
		if err == nil {
			continue
		}
		if a.failures != nil {
			a.failures.Inc()
		}
		a.logger.Error("notification delivery failed",
			logx.String("request_id", n.RequestID),
			logx.String("to", string(n.To)),
			logx.Err(err),
		)
	}
}

// Close stops accepting notices and waits until the queue is drained or ctx ends.
func (a *AsyncNotifier) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
