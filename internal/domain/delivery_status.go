package domain

import "fmt"

// DeliveryStatus is the lifecycle state of a delivery request.
type DeliveryStatus string

// Delivery lifecycle states.
const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryOnTheWay  DeliveryStatus = "on_the_way"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// forward is the strictly sequential happy path.
var forward = map[DeliveryStatus]DeliveryStatus{
	DeliveryPending:  DeliveryAssigned,
	DeliveryAssigned: DeliveryPickedUp,
	DeliveryPickedUp: DeliveryOnTheWay,
	DeliveryOnTheWay: DeliveryDelivered,
}

var rank = map[DeliveryStatus]int{
	DeliveryPending:   0,
	DeliveryAssigned:  1,
	DeliveryPickedUp:  2,
	DeliveryOnTheWay:  3,
	DeliveryDelivered: 4,
	DeliveryCancelled: 4,
}

// IsValid returns true if the status is a recognized delivery status.
func (s DeliveryStatus) IsValid() bool {
	_, ok := rank[s]
	return ok
}

// IsTerminal returns true for delivered and cancelled.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled
}

// Next returns the single forward successor of s, if any.
func (s DeliveryStatus) Next() (DeliveryStatus, bool) {
	n, ok := forward[s]
	return n, ok
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	if s.IsTerminal() || !s.IsValid() {
		return false
	}
	if target == DeliveryCancelled {
		return true
	}
	n, ok := forward[s]
	return ok && n == target
}

// Precedes reports whether target is equal to or later than s on the lifecycle.
// A live stream may skip intermediate states, so only regressions are rejected.
func (s DeliveryStatus) Precedes(target DeliveryStatus) bool {
	if s == target {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return rank[target] > rank[s]
}

// Progress maps a status to a completion percentage.
func (s DeliveryStatus) Progress() int {
	switch s {
	case DeliveryAssigned:
		return 25
	case DeliveryPickedUp:
		return 50
	case DeliveryOnTheWay:
		return 75
	case DeliveryDelivered:
		return 100
	default:
		return 0
	}
}

// String returns the string representation of the status.
func (s DeliveryStatus) String() string {
	return string(s)
}

// ParseDeliveryStatus converts a string to a DeliveryStatus, returning an error if invalid.
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	status := DeliveryStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid delivery status: %s", s)
	}
	return status, nil
}
