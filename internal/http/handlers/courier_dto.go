package handlers

import (
	"time"

	"courier-dispatch/internal/domain"
)

type courierDTO struct {
	ID                int64                      `json:"id"`
	Name              string                     `json:"name"`
	Phone             string                     `json:"phone"`
	Vehicle           domain.VehicleClass        `json:"vehicle"`
	Availability      domain.CourierAvailability `json:"availability"`
	Rating            float64                    `json:"rating"`
	TotalDeliveries   int                        `json:"total_deliveries"`
	Position          domain.GeoPoint            `json:"position"`
	PositionUpdatedAt *time.Time                 `json:"position_updated_at,omitempty"`
	CurrentRequestID  *string                    `json:"current_request_id,omitempty"`
}

type createCourierRequest struct {
	Name         string                     `json:"name"`
	Phone        string                     `json:"phone"`
	Vehicle      domain.VehicleClass        `json:"vehicle"`
	Availability domain.CourierAvailability `json:"availability"`
	Rating       float64                    `json:"rating"`
	Position     *domain.GeoPoint           `json:"position,omitempty"`
}

type updateCourierRequest struct {
	ID           int64                       `json:"id"`
	Name         *string                     `json:"name,omitempty"`
	Phone        *string                     `json:"phone,omitempty"`
	Vehicle      *domain.VehicleClass        `json:"vehicle,omitempty"`
	Availability *domain.CourierAvailability `json:"availability,omitempty"`
	Rating       *float64                    `json:"rating,omitempty"`
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (req createCourierRequest) toModel() *domain.Courier {
	c := &domain.Courier{
		Name:         req.Name,
		Phone:        req.Phone,
		Vehicle:      req.Vehicle,
		Availability: req.Availability,
		Rating:       req.Rating,
	}
	if req.Position != nil {
		c.Position = *req.Position
	}
	return c
}

func (req updateCourierRequest) toModel() domain.PartialCourierUpdate {
	return domain.PartialCourierUpdate{
		ID:           req.ID,
		Name:         req.Name,
		Phone:        req.Phone,
		Vehicle:      req.Vehicle,
		Availability: req.Availability,
		Rating:       req.Rating,
	}
}

// point returns nil unless both coordinates are present.
func (req locationRequest) point() *domain.GeoPoint {
	if req.Latitude == nil || req.Longitude == nil {
		return nil
	}
	return &domain.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}
}

func courierToResponse(c domain.Courier) courierDTO {
	return courierDTO{
		ID:                c.ID,
		Name:              c.Name,
		Phone:             c.Phone,
		Vehicle:           c.Vehicle,
		Availability:      c.Availability,
		Rating:            c.Rating,
		TotalDeliveries:   c.TotalDeliveries,
		Position:          c.Position,
		PositionUpdatedAt: c.PositionUpdatedAt,
		CurrentRequestID:  c.CurrentRequestID,
	}
}

func couriersToResponse(list []domain.Courier) []courierDTO {
	out := make([]courierDTO, 0, len(list))
	for _, c := range list {
		out = append(out, courierToResponse(c))
	}
	return out
}
