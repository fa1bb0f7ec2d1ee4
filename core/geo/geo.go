// Package geo provides great-circle helpers used to pre-filter candidates and
// to move vehicles along their paths.
package geo

import (
	"math"

	"github.com/kilianp07/emsdispatch/core/model"
)

// EarthRadiusM is the mean Earth radius in metres.
const EarthRadiusM = 6371000.0

// Haversine returns the great-circle distance between a and b in metres.
func Haversine(a, b model.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Interpolate returns the point at fraction f of the segment a→b. f is clamped
// to [0,1]. Segments are short enough for linear interpolation in degrees.
func Interpolate(a, b model.Coordinate, f float64) model.Coordinate {
	f = math.Max(0, math.Min(1, f))
	return model.Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}

// PathLength sums the haversine length of consecutive path points.
func PathLength(path []model.Coordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}
