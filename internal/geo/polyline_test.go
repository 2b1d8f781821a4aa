package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-planner/internal/transit"
)

func TestPolyline(t *testing.T) {
	points := []transit.LatLng{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}

	encoded := EncodePolyline(points)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", encoded)

	decoded, err := DecodePolyline(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(points))
	for i := range points {
		assert.InDelta(t, points[i].Lat, decoded[i].Lat, 1e-5)
		assert.InDelta(t, points[i].Lng, decoded[i].Lng, 1e-5)
	}

	assert.Empty(t, EncodePolyline(nil))
	empty, err := DecodePolyline("")
	assert.NoError(t, err)
	assert.Empty(t, empty)
}
