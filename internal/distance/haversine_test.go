package distance

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/models"
)

type point struct {
	id     string
	coords models.Coordinates
}

func (p point) GetCoords() models.Coordinates { return p.coords }

func TestHaversineKm_SamePointIsZero(t *testing.T) {
	points := []models.Coordinates{
		{Lat: 0, Lng: 0},
		{Lat: 27.7172, Lng: 85.3240},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 89.9, Lng: -179.9},
	}

	for _, p := range points {
		d, err := HaversineKm(p, p)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := models.Coordinates{Lat: 40.7128, Lng: -74.0060}
	b := models.Coordinates{Lat: 51.5074, Lng: -0.1278}

	ab, err := HaversineKm(a, b)
	require.NoError(t, err)
	ba, err := HaversineKm(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// New York to London is roughly 5570 km.
	ny := models.Coordinates{Lat: 40.7128, Lng: -74.0060}
	london := models.Coordinates{Lat: 51.5074, Lng: -0.1278}

	d, err := HaversineKm(ny, london)
	require.NoError(t, err)
	assert.InDelta(t, 5570, d, 10)

	// One degree of latitude along a meridian.
	d, err = HaversineKm(models.Coordinates{Lat: 0, Lng: 0}, models.Coordinates{Lat: 1, Lng: 0})
	require.NoError(t, err)
	assert.InDelta(t, EarthRadiusKm*math.Pi/180, d, 1e-9)
}

func TestHaversineKm_InvalidCoordinate(t *testing.T) {
	valid := models.Coordinates{Lat: 10, Lng: 10}

	tests := []struct {
		name   string
		coords models.Coordinates
	}{
		{"NaN latitude", models.Coordinates{Lat: math.NaN(), Lng: 0}},
		{"infinite longitude", models.Coordinates{Lat: 0, Lng: math.Inf(1)}},
		{"latitude out of range", models.Coordinates{Lat: 91, Lng: 0}},
		{"longitude out of range", models.Coordinates{Lat: 0, Lng: -181}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HaversineKm(valid, tt.coords)
			var invalid *ErrInvalidCoordinate
			require.True(t, errors.As(err, &invalid))
			assert.Contains(t, err.Error(), "invalid coordinate")
		})
	}
}

func TestWithinRadius_InclusiveBoundary(t *testing.T) {
	center := models.Coordinates{Lat: 0, Lng: 0}
	edge := models.Coordinates{Lat: 1, Lng: 0}
	radius, err := HaversineKm(center, edge)
	require.NoError(t, err)

	candidates := []point{
		{"far", models.Coordinates{Lat: 2, Lng: 0}},
		{"edge", edge},
		{"center", center},
	}

	got, err := WithinRadius(center, radius, candidates)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "edge", got[0].id)
	assert.Equal(t, "center", got[1].id)
}

func TestWithinRadius_InvalidCandidate(t *testing.T) {
	candidates := []point{{"bad", models.Coordinates{Lat: math.NaN()}}}

	_, err := WithinRadius(models.Coordinates{}, 10, candidates)
	assert.Error(t, err)
}

func TestNearestK(t *testing.T) {
	center := models.Coordinates{Lat: 0, Lng: 0}
	candidates := []point{
		{"c", models.Coordinates{Lat: 0.3, Lng: 0}},
		{"a", models.Coordinates{Lat: 0.1, Lng: 0}},
		{"b", models.Coordinates{Lat: 0.2, Lng: 0}},
		{"a2", models.Coordinates{Lat: -0.1, Lng: 0}},
	}

	got, err := NearestK(center, 3, candidates)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].id)
	assert.Equal(t, "a2", got[1].id)
	assert.Equal(t, "b", got[2].id)

	got, err = NearestK(center, 10, candidates)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = NearestK(center, 0, candidates)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	center := models.Coordinates{Lat: 27.7, Lng: 85.3}
	box := BoundingBox(center, 15)

	// Points 15 km due north and due east must fall inside the box.
	dLat := 15 / EarthRadiusKm * 180 / math.Pi
	assert.LessOrEqual(t, box.MinLat, center.Lat-dLat+1e-9)
	assert.GreaterOrEqual(t, box.MaxLat, center.Lat+dLat-1e-9)
	assert.Less(t, box.MinLng, center.Lng)
	assert.Greater(t, box.MaxLng, center.Lng)

	polar := BoundingBox(models.Coordinates{Lat: 89.99, Lng: 0}, 50)
	assert.Equal(t, -180.0, polar.MinLng)
	assert.Equal(t, 180.0, polar.MaxLng)
}

func TestBoundingBoxContainsDueEastPointAtHighLatitude(t *testing.T) {
	for _, lat := range []float64{0, 45, 70, 85} {
		center := models.Coordinates{Lat: lat, Lng: 10}
		east := dueEast(center, 15)

		d, err := HaversineKm(center, east)
		require.NoError(t, err)
		require.InDelta(t, 15, d, 1e-6)

		box := BoundingBox(center, d)
		assert.GreaterOrEqual(t, box.MaxLng, east.Lng, "lat=%g", lat)
		assert.LessOrEqual(t, box.MinLng, 2*center.Lng-east.Lng, "lat=%g", lat)
	}
}

// dueEast returns the point on center's parallel exactly km away along the great circle
func dueEast(center models.Coordinates, km float64) models.Coordinates {
	half := math.Sin(km / EarthRadiusKm / 2)
	dLng := 2 * math.Asin(half/math.Cos(center.Lat*math.Pi/180))
	return models.Coordinates{Lat: center.Lat, Lng: center.Lng + dLng*180/math.Pi}
}
