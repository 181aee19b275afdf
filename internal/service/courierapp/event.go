package courierapp

import (
	"time"

	"courier-dispatch/internal/domain"
)

// Event kinds sent by the courier app.
const (
	KindLocation  = "location"
	KindPickedUp  = "picked_up"
	KindOnTheWay  = "on_the_way"
	KindDelivered = "delivered"
	KindFreed     = "freed"
	KindCancelled = "cancelled"
)

// Event is a single courier app event
type Event struct {
	Kind       string
	CourierID  int64
	RequestID  string
	Position   *domain.GeoPoint
	OccurredAt time.Time
}
