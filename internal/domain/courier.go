package domain

import "time"

type (
	// CourierAvailability represents the dispatch availability of a courier.
	CourierAvailability string
	// VehicleClass represents the vehicle a courier travels with.
	VehicleClass string
)

// Courier represents a delivery courier.
type Courier struct {
	ID                int64
	Name              string
	Phone             string
	Position          GeoPoint
	Vehicle           VehicleClass
	Availability      CourierAvailability
	Rating            float64
	TotalDeliveries   int
	CurrentRequestID  *string
	PositionUpdatedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PartialCourierUpdate carries optional fields to update a courier.
// A nil field means “do not change” that attribute.
type PartialCourierUpdate struct {
	ID           int64
	Name         *string
	Phone        *string
	Vehicle      *VehicleClass
	Availability *CourierAvailability
	Rating       *float64
}
