package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
)

// DefaultETAAfterPickup is the placeholder travel time once the parcel is picked up.
const DefaultETAAfterPickup = 15 * time.Minute

// Relay holds the tracking state of one request. Reads never block writers.
type Relay struct {
	state          atomic.Pointer[State]
	etaAfterPickup time.Duration
	logger         logx.Logger
	metrics        *metrics.Tracking

	mu       sync.Mutex
	replayed map[string]struct{}
}

// NewRelay creates a relay for requestID.
func NewRelay(requestID string, logger logx.Logger, m *metrics.Tracking, etaAfterPickup time.Duration) *Relay {
	if logger == nil {
		logger = logx.Nop()
	}
	if etaAfterPickup <= 0 {
		etaAfterPickup = DefaultETAAfterPickup
	}
	r := &Relay{
		etaAfterPickup: etaAfterPickup,
		logger:         logger.With(logx.String("request_id", requestID)),
		metrics:        m,
		replayed:       make(map[string]struct{}),
	}
	empty := Empty(requestID)
	r.state.Store(&empty)
	return r
}

// Apply reduces ev into the relay state and reports whether it was applied.
// Dropped events are logged and counted.
func (r *Relay) Apply(ev domain.TrackingEvent) bool {
	for {
		cur := r.state.Load()
		next, verdict := Reduce(*cur, ev)
		if verdict != Applied {
			r.metrics.Drop(string(verdict))
			r.logger.Debug("tracking event dropped",
				logx.String("event_id", ev.ID),
				logx.String("reason", string(verdict)),
				logx.String("status", string(ev.Status)),
				logx.Time("timestamp", ev.Timestamp),
			)
			return false
		}
		if r.state.CompareAndSwap(cur, &next) {
			r.metrics.Apply()
			return true
		}
	}
}

// Seed applies persisted history ahead of live events. It may be called again
// with a longer history: events it already replayed, or that arrived live, are
// skipped without being counted as drops.
func (r *Relay) Seed(history []domain.TrackingEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for _, ev := range history {
		if _, ok := r.replayed[ev.ID]; ok {
			continue
		}
		r.replayed[ev.ID] = struct{}{}
		if r.state.Load().seen(ev.ID) {
			continue
		}
		if r.Apply(ev) {
			applied++
		}
	}
	return applied
}

// State returns the current immutable state.
func (r *Relay) State() State {
	return *r.state.Load()
}

// Snapshot returns the observer view at now.
func (r *Relay) Snapshot(now time.Time) Snapshot {
	return View(*r.state.Load(), now, r.etaAfterPickup)
}

// Run applies events until ctx is done or events is closed.
func (r *Relay) Run(ctx context.Context, events <-chan domain.TrackingEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Apply(ev)
		}
	}
}
