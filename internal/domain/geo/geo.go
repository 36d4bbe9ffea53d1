package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean radius of Earth used for Haversine distance.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewPoint validates latitude in [-90,90] and longitude in [-180,180].
func NewPoint(lat, lon float64) (Point, error) {
	if !ValidateCoordinates(lat, lon) {
		return Point{}, fmt.Errorf("invalid coordinates: lat=%f lon=%f", lat, lon)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// DistanceKm returns the great-circle distance to other in kilometers.
func (p Point) DistanceKm(other Point) float64 {
	return HaversineKm(p.Lat, p.Lon, other.Lat, other.Lon)
}

// HaversineKm returns the great-circle distance in kilometers between two points
// specified by latitude and longitude in degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
