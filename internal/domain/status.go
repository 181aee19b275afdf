package domain

import "regexp"

// List of possible courier availability states
const (
	AvailabilityAvailable CourierAvailability = "available"
	AvailabilityBusy      CourierAvailability = "busy"
	AvailabilityOffline   CourierAvailability = "offline"
)

// List of possible vehicle classes
const (
	VehicleBike    VehicleClass = "bike"
	VehicleScooter VehicleClass = "scooter"
	VehicleCar     VehicleClass = "car"
	VehicleWalk    VehicleClass = "walk"
)

var allowedAvailability = [...]CourierAvailability{
	AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline,
}

var allowedVehicles = [...]VehicleClass{
	VehicleBike, VehicleScooter, VehicleCar, VehicleWalk,
}

// Valid checks if the CourierAvailability is valid
func (a CourierAvailability) Valid() bool {
	for _, v := range allowedAvailability {
		if a == v {
			return true
		}
	}
	return false
}

// Valid checks if the VehicleClass is valid
func (v VehicleClass) Valid() bool {
	for _, c := range allowedVehicles {
		if v == c {
			return true
		}
	}
	return false
}

// rePhone is a regex to validate phone numbers
var rePhone = regexp.MustCompile(`^\+[0-9]{11}$`)

// ValidatePhone validates the phone number format
func ValidatePhone(s string) bool {
	return rePhone.MatchString(s)
}
