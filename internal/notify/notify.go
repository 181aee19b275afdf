// Package notify holds the sinks that are told about committed delivery transitions.
package notify

import (
	"context"
	"errors"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// Notifier receives transition notices.
type Notifier interface {
	Notify(ctx context.Context, n domain.TransitionNotice) error
}

// LogNotifier writes every notice to the log. It never fails.
type LogNotifier struct {
	logger logx.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger logx.Logger) *LogNotifier {
	if logger == nil {
		logger = logx.Nop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(_ context.Context, n domain.TransitionNotice) error {
	fields := []logx.Field{
		logx.String("event", "delivery_transition"),
		logx.String("request_id", n.RequestID),
		logx.String("requester_id", n.RequesterID),
		logx.String("from", string(n.From)),
		logx.String("to", string(n.To)),
		logx.Time("at", n.At),
	}
	if n.CourierID != nil {
		fields = append(fields, logx.Int64("courier_id", *n.CourierID))
	}
	l.logger.Info("delivery transition", fields...)
	return nil
}

// FanOut forwards each notice to every sink and joins their errors.
type FanOut []Notifier

// Notify calls every sink even if an earlier one fails.
func (f FanOut) Notify(ctx context.Context, n domain.TransitionNotice) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
