package kafka

import (
	"strings"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/courierapp"
)

// CourierEventDTO is the wire form of a courier app event
type CourierEventDTO struct {
	Type       string    `json:"type"`
	CourierID  int64     `json:"courier_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ToDomain converts CourierEventDTO to courierapp.Event. A position is only
// set when both coordinates are present.
func ToDomain(dto CourierEventDTO) courierapp.Event {
	ev := courierapp.Event{
		Kind:       strings.ToLower(strings.TrimSpace(dto.Type)),
		CourierID:  dto.CourierID,
		RequestID:  strings.TrimSpace(dto.RequestID),
		OccurredAt: dto.OccurredAt,
	}
	if dto.Latitude != nil && dto.Longitude != nil {
		ev.Position = &domain.GeoPoint{Latitude: *dto.Latitude, Longitude: *dto.Longitude}
	}
	return ev
}

// NoticeDTO is the wire form of a delivery transition notice
type NoticeDTO struct {
	RequestID   string    `json:"request_id"`
	RequesterID string    `json:"requester_id"`
	CourierID   *int64    `json:"courier_id,omitempty"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	At          time.Time `json:"at"`
}

// FromNotice converts a transition notice to its wire form
func FromNotice(n domain.TransitionNotice) NoticeDTO {
	return NoticeDTO{
		RequestID:   n.RequestID,
		RequesterID: n.RequesterID,
		CourierID:   n.CourierID,
		From:        string(n.From),
		To:          string(n.To),
		At:          n.At,
	}
}
