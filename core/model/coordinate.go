package model

import "fmt"

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"latitude"`
	Lon float64 `json:"lon" yaml:"lon" validate:"longitude"`
}

// Valid reports whether the coordinate lies within the WGS84 ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lon)
}

// BoundingBox is a latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Validate checks the box is non-empty and made of valid coordinates.
func (b BoundingBox) Validate() error {
	if !(Coordinate{Lat: b.MinLat, Lon: b.MinLon}).Valid() || !(Coordinate{Lat: b.MaxLat, Lon: b.MaxLon}).Valid() {
		return fmt.Errorf("bounding box out of range")
	}
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return fmt.Errorf("bounding box min must be lower than max")
	}
	return nil
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// IsZero reports whether the box was left unset.
func (b BoundingBox) IsZero() bool { return b == BoundingBox{} }
