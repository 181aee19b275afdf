// Package tracking turns a stream of tracking events for one delivery request
// into a read-only view for observers.
package tracking

import (
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/metrics"
)

// Verdict is the outcome of reducing one event.
type Verdict string

// Reduce outcomes. Everything but Applied leaves the state untouched.
const (
	Applied    Verdict = "applied"
	Duplicate  Verdict = metrics.DropDuplicate
	Stale      Verdict = metrics.DropStale
	Malformed  Verdict = metrics.DropMalformed
	Regression Verdict = metrics.DropRegression
	Foreign    Verdict = metrics.DropForeign
)

// State is the immutable relay state of one request.
// A zero Status means no event has been applied yet.
type State struct {
	RequestID string
	CourierID int64
	Position  domain.GeoPoint
	Status    domain.DeliveryStatus
	LastAt    time.Time
	History   []domain.TrackingEvent
}

// Empty returns the state before any event of requestID.
func Empty(requestID string) State {
	return State{RequestID: requestID}
}

func (s State) seen(id string) bool {
	for i := range s.History {
		if s.History[i].ID == id {
			return true
		}
	}
	return false
}

// Reduce applies ev to s and returns the next state.
// Events with an equal timestamp are accepted; strictly older ones are stale.
func Reduce(s State, ev domain.TrackingEvent) (State, Verdict) {
	switch {
	case ev.RequestID != s.RequestID:
		return s, Foreign
	case ev.ID == "" || !ev.Status.IsValid() || !ev.Position.Valid() || ev.Timestamp.IsZero():
		return s, Malformed
	case s.seen(ev.ID):
		return s, Duplicate
	case len(s.History) > 0 && ev.Timestamp.Before(s.LastAt):
		return s, Stale
	case s.Status != "" && !s.Status.Precedes(ev.Status):
		return s, Regression
	}

	history := make([]domain.TrackingEvent, len(s.History), len(s.History)+1)
	copy(history, s.History)

	next := State{
		RequestID: s.RequestID,
		CourierID: s.CourierID,
		Position:  ev.Position,
		Status:    ev.Status,
		LastAt:    ev.Timestamp,
		History:   append(history, ev),
	}
	if ev.CourierID != 0 {
		next.CourierID = ev.CourierID
	}
	return next, Applied
}

// NoCourierMessage is reported while no event has been received.
const NoCourierMessage = "no courier assigned"

// Snapshot is what observers see.
type Snapshot struct {
	RequestID string
	CourierID *int64
	Status    domain.DeliveryStatus
	Position  *domain.GeoPoint
	Progress  int
	ETA       *time.Time
	Route     []domain.GeoPoint
	History   []domain.TrackingEvent
	UpdatedAt *time.Time
	Message   string
}

// View renders s at now. The ETA is a fixed offset from now once the parcel is picked up.
func View(s State, now time.Time, etaAfterPickup time.Duration) Snapshot {
	if len(s.History) == 0 {
		return Snapshot{
			RequestID: s.RequestID,
			Route:     []domain.GeoPoint{},
			History:   []domain.TrackingEvent{},
			Message:   NoCourierMessage,
		}
	}

	snap := Snapshot{
		RequestID: s.RequestID,
		Status:    s.Status,
		Progress:  s.Status.Progress(),
		Route:     make([]domain.GeoPoint, 0, len(s.History)),
		History:   s.History,
	}
	if s.CourierID != 0 {
		id := s.CourierID
		snap.CourierID = &id
	} else {
		snap.Message = NoCourierMessage
	}
	if !s.Position.IsZero() {
		pos := s.Position
		snap.Position = &pos
	}
	last := s.LastAt
	snap.UpdatedAt = &last

	if s.Status == domain.DeliveryPickedUp || s.Status == domain.DeliveryOnTheWay {
		eta := now.Add(etaAfterPickup)
		snap.ETA = &eta
	}
	for _, ev := range s.History {
		if ev.Position.IsZero() {
			continue
		}
		if n := len(snap.Route); n > 0 && snap.Route[n-1] == ev.Position {
			continue
		}
		snap.Route = append(snap.Route, ev.Position)
	}
	return snap
}
