package utils

import (
	"math"

	"civic-reporter/internal/models"
)

const EarthRadiusMeters = 6378100.0

// DistanceMeters is the great-circle (haversine) distance between two points.
func DistanceMeters(loc1, loc2 models.Location) float64 {
	return HaversineMeters(loc1.Longitude(), loc1.Latitude(), loc2.Longitude(), loc2.Latitude())
}

func HaversineMeters(lng1, lat1, lng2, lat2 float64) float64 {
	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)

	deltaLat := lat2Rad - lat1Rad
	deltaLon := toRadians(lng2 - lng1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// RadiansFromMeters converts a surface distance into the angular radius used by $centerSphere.
func RadiansFromMeters(meters float64) float64 {
	return meters / EarthRadiusMeters
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
