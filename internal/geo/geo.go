package geo

import "math"

const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance in kilometers between two
// points given in degrees, using the haversine formula. Inputs must be
// finite; the result is NaN otherwise.
func DistanceKm(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Pow(math.Sin(dLon/2), 2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Point is a lat/lon coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
