// Package geo holds the pure distance and travel-time estimates used by dispatch.
package geo

import (
	"math"

	"courier-dispatch/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// PickupOverheadMinutes is added to every travel estimate.
const PickupOverheadMinutes = 10

// speeds in km/h
var speeds = map[domain.VehicleClass]float64{
	domain.VehicleBike:    15,
	domain.VehicleScooter: 25,
	domain.VehicleCar:     35,
	domain.VehicleWalk:    5,
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b domain.GeoPoint) float64 {
	if a == b {
		return 0
	}
	rad := func(d float64) float64 { return d * math.Pi / 180.0 }
	dLat := rad(b.Latitude - a.Latitude)
	dLon := rad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Latitude))*math.Cos(rad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Speed returns the assumed speed of a vehicle class in km/h. Unknown classes travel at bike speed.
func Speed(v domain.VehicleClass) float64 {
	if s, ok := speeds[v]; ok {
		return s
	}
	return speeds[domain.VehicleBike]
}

// EstimateDuration returns travel minutes plus the fixed pickup overhead.
func EstimateDuration(distanceKm float64, v domain.VehicleClass) int {
	if distanceKm <= 0 || math.IsNaN(distanceKm) {
		return PickupOverheadMinutes
	}
	return int(math.Ceil(distanceKm/Speed(v)*60)) + PickupOverheadMinutes
}
