package geo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

func TestDistance_ZeroForSamePoint(t *testing.T) {
	t.Parallel()

	points := []domain.GeoPoint{
		{},
		{Latitude: 55.7558, Longitude: 37.6173},
		{Latitude: -90, Longitude: 180},
	}
	for _, p := range points {
		require.Zero(t, geo.Distance(p, p))
	}
}

func TestDistance_Symmetric(t *testing.T) {
	t.Parallel()

	a := domain.GeoPoint{Latitude: 60.1699, Longitude: 24.9384}
	b := domain.GeoPoint{Latitude: 59.4370, Longitude: 24.7536}

	require.InDelta(t, geo.Distance(a, b), geo.Distance(b, a), 1e-9)
	require.InDelta(t, 82.1, geo.Distance(a, b), 1.0)
}

func TestDistance_OneHundredthDegreeAtEquator(t *testing.T) {
	t.Parallel()

	d := geo.Distance(domain.GeoPoint{}, domain.GeoPoint{Longitude: 0.01})
	require.InDelta(t, 1.112, d, 0.001)
}

func TestEstimateDuration(t *testing.T) {
	t.Parallel()

	for _, v := range []domain.VehicleClass{domain.VehicleBike, domain.VehicleScooter, domain.VehicleCar, domain.VehicleWalk, "hoverboard"} {
		require.Equal(t, 10, geo.EstimateDuration(0, v))
	}

	require.Equal(t, 10+60, geo.EstimateDuration(15, domain.VehicleBike))
	require.Equal(t, 10+36, geo.EstimateDuration(15, domain.VehicleScooter))
	require.Equal(t, 10+26, geo.EstimateDuration(15, domain.VehicleCar))
	require.Equal(t, 10+180, geo.EstimateDuration(15, domain.VehicleWalk))
	require.Equal(t, geo.EstimateDuration(15, domain.VehicleBike), geo.EstimateDuration(15, "hoverboard"))
	require.Equal(t, 10, geo.EstimateDuration(-3, domain.VehicleCar))
}
