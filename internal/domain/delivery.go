package domain

import "time"

// DeliveryRequest is one parcel/order movement from origin to destination.
type DeliveryRequest struct {
	ID                 string
	Origin             GeoPoint
	OriginAddress      string
	Destination        GeoPoint
	DestinationAddress string
	RequesterID        string
	Priority           bool
	Status             DeliveryStatus
	CourierID          *int64
	DistanceKm         float64
	EstimatedMinutes   int
	FeeCents           int64
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Consistent checks the status/courier invariant.
func (r DeliveryRequest) Consistent() bool {
	switch r.Status {
	case DeliveryPending:
		return r.CourierID == nil
	case DeliveryAssigned, DeliveryPickedUp, DeliveryOnTheWay, DeliveryDelivered:
		return r.CourierID != nil
	default:
		return true
	}
}

// TransitionNotice is sent to notification sinks after a committed transition.
type TransitionNotice struct {
	RequestID   string
	RequesterID string
	CourierID   *int64
	From        DeliveryStatus
	To          DeliveryStatus
	At          time.Time
}
