package model

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Location is an entrance position in WGS84 with elevation in feet.
type Location struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	ElevationFeet float64 `json:"elevation_feet"`
}

// Validate checks coordinate ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return eris.Wrapf(ErrValidation, "latitude %f out of range", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return eris.Wrapf(ErrValidation, "longitude %f out of range", l.Longitude)
	}
	return nil
}

// Point returns the location as a WGS84 point for GIS consumers. Elevation
// rides along as the Z coordinate, still in feet.
func (l Location) Point() *geom.Point {
	return geom.NewPointFlat(geom.XYZ, []float64{l.Longitude, l.Latitude, l.ElevationFeet}).SetSRID(4326)
}
