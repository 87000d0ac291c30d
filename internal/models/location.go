package models

import (
	"fmt"
	"math"
)

// Location is a GeoJSON point with a postal address.
type Location struct {
	Type        string    `bson:"type" json:"type"` // "Point"
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address" json:"address"`
	City        string    `bson:"city,omitempty" json:"city,omitempty"`
	State       string    `bson:"state,omitempty" json:"state,omitempty"`
	Pincode     string    `bson:"pincode,omitempty" json:"pincode,omitempty"`
}

func NewPoint(lng, lat float64) Location {
	return Location{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Validate checks for exactly two finite coordinates within range.
func (l Location) Validate() error {
	if len(l.Coordinates) != 2 {
		return fmt.Errorf("coordinates must contain exactly two numbers, got %d", len(l.Coordinates))
	}
	lng, lat := l.Coordinates[0], l.Coordinates[1]
	if math.IsNaN(lng) || math.IsInf(lng, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("coordinates must be finite numbers")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	return nil
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) != 2 {
		return 0
	}
	return l.Coordinates[0]
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) != 2 {
		return 0
	}
	return l.Coordinates[1]
}

// GeoPoint is a proximity query center.
type GeoPoint struct {
	Longitude    float64
	Latitude     float64
	RadiusMeters float64
}

func (p GeoPoint) Location() Location {
	return NewPoint(p.Longitude, p.Latitude)
}
