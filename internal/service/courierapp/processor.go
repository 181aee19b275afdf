package courierapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// ErrRejected marks events that can never succeed; consumers should not redeliver them.
var ErrRejected = errors.New("courier event rejected")

// Processor routes courier app events to the dispatcher and the courier registry.
type Processor struct {
	dispatch  DispatchPort
	locations LocationPort
	logger    logx.Logger
	factory   *actionFactory
}

// NewProcessor creates a new Processor
func NewProcessor(dispatch DispatchPort, locations LocationPort, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{
		dispatch:  dispatch,
		locations: locations,
		logger:    logger,
	}
	p.factory = newActionFactory(p.onLocation, p.onStep, p.onFreed)
	return p
}

// Handle processes a single Event. Unknown kinds are ignored.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	fn, ok := p.factory.get(e.Kind)
	if !ok {
		p.logger.Debug("courier event ignored",
			logx.String("kind", e.Kind),
			logx.Int64("courier_id", e.CourierID),
		)
		return nil
	}
	return p.classify(e, fn(ctx, e))
}

func (p *Processor) onLocation(ctx context.Context, e Event) error {
	if e.Position == nil {
		return fmt.Errorf("location without position: %w", apperr.ErrInvalidLocation)
	}
	_, err := p.locations.UpdateLocation(ctx, e.CourierID, *e.Position)
	return err
}

func (p *Processor) onStep(ctx context.Context, e Event) error {
	if strings.TrimSpace(e.RequestID) == "" {
		return fmt.Errorf("%s without request id: %w", e.Kind, apperr.ErrInvalid)
	}
	req, err := p.dispatch.Get(ctx, e.RequestID)
	if err != nil {
		return err
	}
	if req.CourierID == nil || *req.CourierID != e.CourierID {
		return fmt.Errorf("request %s is not bound to courier %d: %w", req.ID, e.CourierID, apperr.ErrConflict)
	}
	to := domain.DeliveryStatus(strings.ToLower(strings.TrimSpace(e.Kind)))
	_, err = p.dispatch.Advance(ctx, e.RequestID, to, e.Position)
	return err
}

func (p *Processor) onFreed(ctx context.Context, e Event) error {
	return p.dispatch.MarkCourierFreed(ctx, e.CourierID)
}

// classify turns domain rejections into ErrRejected; everything else stays retryable.
func (p *Processor) classify(e Event, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, apperr.ErrAlreadyTerminal):
		// redelivered final step
		p.logger.Info("courier event already applied",
			logx.String("kind", e.Kind),
			logx.String("request_id", e.RequestID),
			logx.Err(err),
		)
		return nil
	case errors.Is(err, apperr.ErrInvalidTransition):
		p.logger.Warn("courier event out of order",
			logx.String("kind", e.Kind),
			logx.Int64("courier_id", e.CourierID),
			logx.String("request_id", e.RequestID),
			logx.Err(err),
		)
		return fmt.Errorf("%w: %w", ErrRejected, err)
	case errors.Is(err, apperr.ErrInvalid),
		errors.Is(err, apperr.ErrInvalidLocation),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrConflict):
		return fmt.Errorf("%w: %w", ErrRejected, err)
	default:
		return err
	}
}
