package route

import (
	"time"

	"dispatch-service/internal/geo"
	"dispatch-service/internal/models"
)

// Stop is a candidate visit: one store with the orders bound for it.
// Grouping orders by store happens in the caller; the optimizer only
// sequences stops.
type Stop struct {
	StoreID   string
	StoreName string
	Address   models.Address
	Location  models.GeoPoint
	OrderIDs  []string
}

// BuildRoute sequences stops with a greedy nearest-neighbor walk from
// startLocation. At each step the not-yet-visited stop with the minimum
// great-circle distance from the current location is appended, with ties
// broken by input order. O(n²) in stop count; per-agent stop counts are
// small, so no spatial index.
func BuildRoute(startLocation models.GeoPoint, stops []Stop, now time.Time) []models.RouteStop {
	if len(stops) == 0 {
		return []models.RouteStop{}
	}

	remaining := make([]Stop, len(stops))
	copy(remaining, stops)

	current := startLocation
	currentTime := now
	result := make([]models.RouteStop, 0, len(stops))

	for len(remaining) > 0 {
		nearest := 0
		minDistance := geo.DistanceKm(current, remaining[0].Location)

		for i := 1; i < len(remaining); i++ {
			d := geo.DistanceKm(current, remaining[i].Location)
			if d < minDistance {
				minDistance = d
				nearest = i
			}
		}

		next := remaining[nearest]
		result = append(result, models.RouteStop{
			StoreID:                next.StoreID,
			StoreName:              next.StoreName,
			Address:                next.Address,
			Location:               next.Location,
			OrderIDs:               next.OrderIDs,
			DistanceFromPreviousKm: minDistance,
			EstimatedArrival:       geo.EstimatedArrival(minDistance, currentTime),
			Completed:              false,
		})

		current = next.Location
		currentTime = geo.EstimatedArrival(minDistance, currentTime)
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
	}

	return result
}
