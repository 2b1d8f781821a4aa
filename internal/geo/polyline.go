package geo

import (
	"github.com/twpayne/go-polyline"

	"transit-planner/internal/transit"
)

// EncodePolyline encodes points in Google's polyline format.
func EncodePolyline(points []transit.LatLng) string {
	if len(points) == 0 {
		return ""
	}
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline reverses EncodePolyline.
func DecodePolyline(s string) ([]transit.LatLng, error) {
	if s == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, err
	}
	points := make([]transit.LatLng, len(coords))
	for i, c := range coords {
		points[i] = transit.LatLng{Lat: c[0], Lng: c[1]}
	}
	return points, nil
}
