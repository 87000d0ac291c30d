// Package validator registers the domain tags used in request bindings.
package validator

import (
	"math"
	"sync"

	"civic-reporter/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var initOnce sync.Once

// Init registers custom tags with gin's validator engine.
func Init() {
	initOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			Register(v)
		}
	})
}

// Register adds the category, priority, status, role and coordinates tags to v.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.Priority(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return models.Status(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("coordinates", validateCoordinates)
}

// validateCoordinates accepts a [lng, lat] pair of finite numbers in range.
func validateCoordinates(fl validator.FieldLevel) bool {
	coords, ok := fl.Field().Interface().([]float64)
	if !ok || len(coords) != 2 {
		return false
	}
	lng, lat := coords[0], coords[1]
	for _, c := range coords {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// New returns a standalone validator with the domain tags registered.
func New() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}
