package domain

import "time"

// TrackingEvent is one immutable observation of a courier's position and status.
type TrackingEvent struct {
	ID        string
	RequestID string
	CourierID int64
	Position  GeoPoint
	Status    DeliveryStatus
	Timestamp time.Time
}
