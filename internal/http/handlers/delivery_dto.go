package handlers

import (
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/dispatch"
)

const searchingMessage = "searching for a courier"

type createDeliveryRequest struct {
	Origin             *domain.GeoPoint `json:"origin"`
	OriginAddress      string           `json:"origin_address"`
	Destination        *domain.GeoPoint `json:"destination"`
	DestinationAddress string           `json:"destination_address"`
	RequesterID        string           `json:"requester_id"`
	Priority           bool             `json:"priority"`
	FeeCents           int64            `json:"fee_cents"`
	CandidateIDs       []int64          `json:"candidate_ids,omitempty"`
}

type assignDeliveryRequest struct {
	CandidateIDs []int64 `json:"candidate_ids,omitempty"`
}

type statusRequest struct {
	Status    domain.DeliveryStatus `json:"status"`
	Latitude  *float64              `json:"latitude,omitempty"`
	Longitude *float64              `json:"longitude,omitempty"`
}

type deliveryDTO struct {
	ID                 string                `json:"id"`
	Origin             domain.GeoPoint       `json:"origin"`
	OriginAddress      string                `json:"origin_address"`
	Destination        domain.GeoPoint       `json:"destination"`
	DestinationAddress string                `json:"destination_address"`
	RequesterID        string                `json:"requester_id"`
	Priority           bool                  `json:"priority"`
	Status             domain.DeliveryStatus `json:"status"`
	CourierID          *int64                `json:"courier_id"`
	DistanceKm         float64               `json:"distance_km"`
	EstimatedMinutes   int                   `json:"estimated_minutes"`
	FeeCents           int64                 `json:"fee_cents"`
	Version            int64                 `json:"version"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	Message            string                `json:"message,omitempty"`
}

type trackingEventDTO struct {
	ID        string                `json:"id"`
	RequestID string                `json:"request_id"`
	CourierID int64                 `json:"courier_id"`
	Position  domain.GeoPoint       `json:"position"`
	Status    domain.DeliveryStatus `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
}

func (req createDeliveryRequest) toInput() dispatch.CreateRequest {
	return dispatch.CreateRequest{
		Origin:             *req.Origin,
		OriginAddress:      req.OriginAddress,
		Destination:        *req.Destination,
		DestinationAddress: req.DestinationAddress,
		RequesterID:        req.RequesterID,
		Priority:           req.Priority,
		FeeCents:           req.FeeCents,
		CandidateIDs:       req.CandidateIDs,
	}
}

// position returns nil when no coordinates were sent and false when only one was.
func (req statusRequest) position() (*domain.GeoPoint, bool) {
	switch {
	case req.Latitude == nil && req.Longitude == nil:
		return nil, true
	case req.Latitude == nil || req.Longitude == nil:
		return nil, false
	}
	return &domain.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}, true
}

func deliveryToResponse(d domain.DeliveryRequest) deliveryDTO {
	out := deliveryDTO{
		ID:                 d.ID,
		Origin:             d.Origin,
		OriginAddress:      d.OriginAddress,
		Destination:        d.Destination,
		DestinationAddress: d.DestinationAddress,
		RequesterID:        d.RequesterID,
		Priority:           d.Priority,
		Status:             d.Status,
		CourierID:          d.CourierID,
		DistanceKm:         d.DistanceKm,
		EstimatedMinutes:   d.EstimatedMinutes,
		FeeCents:           d.FeeCents,
		Version:            d.Version,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.Status == domain.DeliveryPending {
		out.Message = searchingMessage
	}
	return out
}

func eventToResponse(ev domain.TrackingEvent) trackingEventDTO {
	return trackingEventDTO{
		ID:        ev.ID,
		RequestID: ev.RequestID,
		CourierID: ev.CourierID,
		Position:  ev.Position,
		Status:    ev.Status,
		Timestamp: ev.Timestamp,
	}
}

func eventsToResponse(list []domain.TrackingEvent) []trackingEventDTO {
	out := make([]trackingEventDTO, 0, len(list))
	for _, ev := range list {
		out = append(out, eventToResponse(ev))
	}
	return out
}
