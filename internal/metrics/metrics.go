package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Register registers cs on reg. Collectors that are already registered are skipped.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewKafkaPublishRetriesTotal returns a Prometheus counter for retried notification publishes
func NewKafkaPublishRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kafka_publish_retries_total",
		Help: "Total number of retry attempts performed by the notification publisher",
	})
}

// Outcomes of a dispatch attempt.
const (
	OutcomeAssigned = "assigned"
	OutcomePending  = "pending"
	OutcomeConflict = "conflict"
)

// Dispatch groups coordinator metrics. A nil *Dispatch records nothing.
type Dispatch struct {
	Outcomes       *prometheus.CounterVec
	ClaimRetries   prometheus.Counter
	Transitions    *prometheus.CounterVec
	NotifyFailures prometheus.Counter
}

// NewDispatch creates unregistered coordinator metrics.
func NewDispatch() *Dispatch {
	return &Dispatch{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Dispatch attempts by outcome",
		}, []string{"outcome"}),
		ClaimRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_claim_retries_total",
			Help: "Courier claims lost to a concurrent assignment and retried",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_transitions_total",
			Help: "Committed delivery lifecycle transitions by target status",
		}, []string{"to"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delivery_notify_failures_total",
			Help: "Notification sink failures (transitions are never rolled back)",
		}),
	}
}

// Collectors lists the collectors of d for registration.
func (d *Dispatch) Collectors() []prometheus.Collector {
	return []prometheus.Collector{d.Outcomes, d.ClaimRetries, d.Transitions, d.NotifyFailures}
}

// Outcome counts one dispatch attempt.
func (d *Dispatch) Outcome(outcome string) {
	if d == nil {
		return
	}
	d.Outcomes.WithLabelValues(outcome).Inc()
}

// ClaimRetry counts one retried claim.
func (d *Dispatch) ClaimRetry() {
	if d == nil {
		return
	}
	d.ClaimRetries.Inc()
}

// Transition counts one committed transition.
func (d *Dispatch) Transition(to string) {
	if d == nil {
		return
	}
	d.Transitions.WithLabelValues(to).Inc()
}

// NotifyFailure counts one failed notification.
func (d *Dispatch) NotifyFailure() {
	if d == nil {
		return
	}
	d.NotifyFailures.Inc()
}

// Reasons a tracking event is dropped.
const (
	DropDuplicate  = "duplicate"
	DropStale      = "stale"
	DropMalformed  = "malformed"
	DropRegression = "regression"
	DropForeign    = "foreign_request"
)

// Tracking groups relay metrics. A nil *Tracking records nothing.
type Tracking struct {
	Applied prometheus.Counter
	Dropped *prometheus.CounterVec
}

// NewTracking creates unregistered relay metrics.
func NewTracking() *Tracking {
	return &Tracking{
		Applied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_events_applied_total",
			Help: "Tracking events applied by relays",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_events_dropped_total",
			Help: "Tracking events dropped by relays",
		}, []string{"reason"}),
	}
}

// Collectors lists the collectors of t for registration.
func (t *Tracking) Collectors() []prometheus.Collector {
	return []prometheus.Collector{t.Applied, t.Dropped}
}

// Apply counts one applied event.
func (t *Tracking) Apply() {
	if t == nil {
		return
	}
	t.Applied.Inc()
}

// Drop counts one dropped event.
func (t *Tracking) Drop(reason string) {
	if t == nil {
		return
	}
	t.Dropped.WithLabelValues(reason).Inc()
}
