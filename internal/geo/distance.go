// Package geo holds the great-circle helpers shared by the graph builder,
// the path search and the ETA estimator.
package geo

import (
	"math"

	"transit-planner/internal/transit"
)

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine distance in meters between two coordinates.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Between is Distance for two LatLng values.
func Between(a, b transit.LatLng) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// PathLength sums the distances between consecutive points.
func PathLength(points []transit.LatLng) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Between(points[i-1], points[i])
	}
	return total
}
