package geo

import (
	"testing"
	"time"

	"dispatch-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	p := models.GeoPoint{Latitude: 0, Longitude: 0}
	assert.Equal(t, 0.0, DistanceKm(p, p))

	q := models.GeoPoint{Latitude: 48.8566, Longitude: 2.3522}
	assert.Equal(t, 0.0, DistanceKm(q, q))
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.GeoPoint{Latitude: 52.5200, Longitude: 13.4050}
	b := models.GeoPoint{Latitude: 48.1351, Longitude: 11.5820}

	assert.Equal(t, DistanceKm(a, b), DistanceKm(b, a))
}

func TestDistanceKmKnownValue(t *testing.T) {
	// One degree of latitude at the equator is ~111.19 km.
	a := models.GeoPoint{Latitude: 0, Longitude: 0}
	b := models.GeoPoint{Latitude: 1, Longitude: 0}

	assert.InDelta(t, 111.19, DistanceKm(a, b), 0.1)
}

func TestEstimatedArrival(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 30 km at 30 km/h is exactly one hour.
	arrival := EstimatedArrival(30, now)
	assert.Equal(t, now.Add(time.Hour), arrival)

	// Zero distance means immediate arrival.
	assert.Equal(t, now, EstimatedArrival(0, now))
}
