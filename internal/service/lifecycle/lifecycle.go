// Package lifecycle drives a delivery request through its states and emits
// the tracking event that records each step.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// Check validates a single transition without applying it.
func Check(from, to domain.DeliveryStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("%s -> %s: %w", from, to, apperr.ErrAlreadyTerminal)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, apperr.ErrInvalidTransition)
	}
	return nil
}

// Assign moves a pending request to assigned and attaches the courier.
// A nil courier means the scorer found nobody.
func Assign(req *domain.DeliveryRequest, courierID *int64, pos domain.GeoPoint, at time.Time) (domain.TrackingEvent, error) {
	if err := Check(req.Status, domain.DeliveryAssigned); err != nil {
		return domain.TrackingEvent{}, err
	}
	if courierID == nil {
		return domain.TrackingEvent{}, apperr.ErrNoCourierAvailable
	}
	id := *courierID
	req.CourierID = &id
	return apply(req, domain.DeliveryAssigned, pos, at), nil
}

// Advance applies one courier-driven step: picked_up, on_the_way or delivered.
// Assignment and cancellation have their own entry points.
func Advance(req *domain.DeliveryRequest, to domain.DeliveryStatus, pos domain.GeoPoint, at time.Time) (domain.TrackingEvent, error) {
	if req.Status.IsTerminal() {
		return domain.TrackingEvent{}, fmt.Errorf("%s -> %s: %w", req.Status, to, apperr.ErrAlreadyTerminal)
	}
	switch to {
	case domain.DeliveryPickedUp, domain.DeliveryOnTheWay, domain.DeliveryDelivered:
	default:
		return domain.TrackingEvent{}, fmt.Errorf("%s -> %s: %w", req.Status, to, apperr.ErrInvalidTransition)
	}
	if err := Check(req.Status, to); err != nil {
		return domain.TrackingEvent{}, err
	}
	return apply(req, to, pos, at), nil
}

// Cancel moves any non-terminal request to cancelled.
func Cancel(req *domain.DeliveryRequest, pos domain.GeoPoint, at time.Time) (domain.TrackingEvent, error) {
	if err := Check(req.Status, domain.DeliveryCancelled); err != nil {
		return domain.TrackingEvent{}, err
	}
	return apply(req, domain.DeliveryCancelled, pos, at), nil
}

func apply(req *domain.DeliveryRequest, to domain.DeliveryStatus, pos domain.GeoPoint, at time.Time) domain.TrackingEvent {
	req.Status = to
	req.UpdatedAt = at
	var courierID int64
	if req.CourierID != nil {
		courierID = *req.CourierID
	}
	return domain.TrackingEvent{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		CourierID: courierID,
		Position:  pos,
		Status:    to,
		Timestamp: at,
	}
}
