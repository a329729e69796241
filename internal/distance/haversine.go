package distance

import (
	"fmt"
	"math"
	"sort"

	"trip-planner/internal/models"
)

// EarthRadiusKm is the mean earth radius used by HaversineKm
const EarthRadiusKm = 6371.0

// Locatable is anything with a position
type Locatable interface {
	GetCoords() models.Coordinates
}

// ErrInvalidCoordinate is returned for non-finite or out of range coordinates
type ErrInvalidCoordinate struct {
	Coords models.Coordinates
	Reason string
}

func (e *ErrInvalidCoordinate) Error() string {
	return fmt.Sprintf("invalid coordinate (%v, %v): %s", e.Coords.Lat, e.Coords.Lng, e.Reason)
}

// Validate checks that c is a usable geographic point
func Validate(c models.Coordinates) error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return &ErrInvalidCoordinate{Coords: c, Reason: "non-finite value"}
	}
	if c.Lat < -90 || c.Lat > 90 {
		return &ErrInvalidCoordinate{Coords: c, Reason: "latitude out of range"}
	}
	if c.Lng < -180 || c.Lng > 180 {
		return &ErrInvalidCoordinate{Coords: c, Reason: "longitude out of range"}
	}
	return nil
}

// HaversineKm returns the great-circle distance between a and b in kilometers
func HaversineKm(a, b models.Coordinates) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}

	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c, nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// WithinRadius keeps the candidates whose distance from center is <= radiusKm.
// Input order is preserved.
func WithinRadius[T Locatable](center models.Coordinates, radiusKm float64, candidates []T) ([]T, error) {
	if err := Validate(center); err != nil {
		return nil, err
	}

	result := make([]T, 0, len(candidates))
	for _, c := range candidates {
		d, err := HaversineKm(center, c.GetCoords())
		if err != nil {
			return nil, err
		}
		if d <= radiusKm {
			result = append(result, c)
		}
	}
	return result, nil
}

// NearestK returns at most k candidates ordered by ascending distance from center.
// Equidistant candidates keep their input order.
func NearestK[T Locatable](center models.Coordinates, k int, candidates []T) ([]T, error) {
	if k <= 0 || len(candidates) == 0 {
		return []T{}, nil
	}

	type ranked struct {
		item T
		dist float64
	}

	items := make([]ranked, len(candidates))
	for i, c := range candidates {
		d, err := HaversineKm(center, c.GetCoords())
		if err != nil {
			return nil, err
		}
		items[i] = ranked{item: c, dist: d}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].dist < items[j].dist
	})

	if k > len(items) {
		k = len(items)
	}
	result := make([]T, k)
	for i := 0; i < k; i++ {
		result[i] = items[i].item
	}
	return result, nil
}

// Box is a lat/lng bounding rectangle
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// boxPadDeg widens the prefilter box slightly so points lying exactly on the
// radius survive float rounding in the SQL comparison.
const boxPadDeg = 1e-7

// BoundingBox returns a rectangle that contains every point within radiusKm of center.
// It is only a prefilter; callers must still apply the exact distance check.
func BoundingBox(center models.Coordinates, radiusKm float64) Box {
	d := radiusKm / EarthRadiusKm
	dLat := d*180/math.Pi + boxPadDeg
	box := Box{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
		MinLng: -180,
		MaxLng: 180,
	}

	// The widest longitude on a spherical cap is asin(sin d / cos lat). When
	// that ratio reaches 1 the cap covers a pole and spans every longitude.
	cosLat := math.Cos(toRadians(center.Lat))
	if box.MaxLat < 90 && box.MinLat > -90 && d < math.Pi/2 && cosLat > 1e-9 {
		ratio := math.Sin(d) / cosLat
		if ratio < 1 {
			dLng := math.Asin(ratio)*180/math.Pi + boxPadDeg
			if center.Lng-dLng >= -180 && center.Lng+dLng <= 180 {
				box.MinLng = center.Lng - dLng
				box.MaxLng = center.Lng + dLng
			}
		}
	}
	return box
}
