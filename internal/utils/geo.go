package utils

import (
	"math"

	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/mmcloughlin/geohash"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// geohashPrecision yields cells of roughly 38m x 19m, fine enough for
// gateway-side room routing.
const geohashPrecision = 8

// DistanceMeters calculates the great-circle distance between two points in
// meters using the Haversine formula.
func DistanceMeters(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// EncodeLocation converts coordinates to a geohash cell string.
func EncodeLocation(c models.Coordinates) string {
	return geohash.EncodeWithPrecision(c.Latitude, c.Longitude, geohashPrecision)
}

// DecodeGeohash converts a geohash string to coordinates.
func DecodeGeohash(hash string) models.Coordinates {
	lat, lng := geohash.Decode(hash)
	return models.Coordinates{Longitude: lng, Latitude: lat}
}

// BearingDegrees returns the initial great-circle bearing from a to b in
// [0, 360).
func BearingDegrees(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180.0

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeHeading(math.Atan2(y, x) * 180.0 / math.Pi)
}

// NormalizeHeading wraps a heading in degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// HeadingDelta returns the shortest signed rotation from one heading to
// another, in (-180, 180].
func HeadingDelta(from, to float64) float64 {
	delta := math.Mod(to-from, 360)
	if delta > 180 {
		delta -= 360
	} else if delta <= -180 {
		delta += 360
	}
	return delta
}
