package validator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Category    string    `validate:"category"`
	Priority    string    `validate:"omitempty,priority"`
	Status      string    `validate:"omitempty,status"`
	Role        string    `validate:"omitempty,role"`
	Coordinates []float64 `validate:"coordinates"`
}

func TestDomainTags(t *testing.T) {
	v := New()

	valid := sample{
		Category:    "Water Supply",
		Priority:    "urgent",
		Status:      "in-progress",
		Role:        "government",
		Coordinates: []float64{30.5, 50.4},
	}
	assert.NoError(t, v.Struct(valid))

	tests := []struct {
		name   string
		mutate func(s *sample)
	}{
		{name: "category", mutate: func(s *sample) { s.Category = "Dragons" }},
		{name: "priority", mutate: func(s *sample) { s.Priority = "critical" }},
		{name: "status", mutate: func(s *sample) { s.Status = "done" }},
		{name: "role", mutate: func(s *sample) { s.Role = "mayor" }},
		{name: "one coordinate", mutate: func(s *sample) { s.Coordinates = []float64{1} }},
		{name: "latitude range", mutate: func(s *sample) { s.Coordinates = []float64{1, 91} }},
		{name: "nan", mutate: func(s *sample) { s.Coordinates = []float64{math.NaN(), 1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.Error(t, v.Struct(s))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
