package geo

import (
	"math"
	"time"

	"dispatch-service/internal/models"
)

const (
	// earthRadiusKm is the mean Earth radius used by the haversine formula.
	earthRadiusKm = 6371.0

	// AverageSpeedKmh is the fleet-wide average speed used for arrival
	// estimates.
	AverageSpeedKmh = 30.0
)

// DistanceKm returns the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(a, b models.GeoPoint) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// EstimatedArrival returns now plus the travel time for distanceKm at the
// fleet average speed.
func EstimatedArrival(distanceKm float64, now time.Time) time.Time {
	hours := distanceKm / AverageSpeedKmh
	return now.Add(time.Duration(hours * float64(time.Hour)))
}

func toRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}
