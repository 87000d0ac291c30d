package utils

import (
	"testing"

	"civic-reporter/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	a := models.NewPoint(77.5946, 12.9716)

	assert.InDelta(t, 0, DistanceMeters(a, a), 1e-9)

	// One thousandth of a degree of latitude is roughly 111 meters.
	b := models.NewPoint(77.5946, 12.9726)
	assert.InDelta(t, 111.3, DistanceMeters(a, b), 1.0)

	// Symmetric.
	assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-9)
}

func TestHaversineLongDistance(t *testing.T) {
	// Paris to London, about 344 km.
	d := HaversineMeters(2.3522, 48.8566, -0.1276, 51.5072)
	assert.InDelta(t, 344000, d, 2000)
}

func TestRadiansFromMeters(t *testing.T) {
	assert.InDelta(t, 5000/6378100.0, RadiansFromMeters(5000), 1e-12)
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TitleSimilarity("Broken street light", "broken STREET light!"))
	assert.InDelta(t, 2.0/3.0, TitleSimilarity("pothole main road", "pothole main"), 1e-9)
	assert.Equal(t, 0.0, TitleSimilarity("garbage pile", "water leak"))
	assert.Equal(t, 0.0, TitleSimilarity("", "water leak"))
}
