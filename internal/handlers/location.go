package handlers

import (
	"bytes"
	"encoding/json"
	"strings"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"
)

// LocationFields are the coordinate spellings clients send, either inside the
// location object or next to it at the top level of a report.
type LocationFields struct {
	Coordinates []float64 `json:"coordinates,omitempty" binding:"omitempty,coordinates"`
	Lng         *float64  `json:"lng,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Pincode     string    `json:"pincode,omitempty"`
}

func (f LocationFields) coordinates() ([]float64, bool) {
	if len(f.Coordinates) > 0 {
		return f.Coordinates, true
	}
	lat := f.Lat
	if lat == nil {
		lat = f.Latitude
	}
	for _, lng := range []*float64{f.Lng, f.Lon, f.Longitude} {
		if lng != nil && lat != nil {
			return []float64{*lng, *lat}, true
		}
	}
	return nil, false
}

// ParseLocation normalises the location of a report. raw may be a JSON object,
// a JSON-encoded object inside a string, or a plain address string; coordinates
// missing from raw are taken from fallback.
func ParseLocation(raw json.RawMessage, fallback LocationFields) (models.Location, error) {
	var fields LocationFields

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] == '"' {
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return models.Location{}, apperror.Validation("invalid location: %v", err)
			}
			text = strings.TrimSpace(text)
			if strings.HasPrefix(text, "{") {
				raw = json.RawMessage(text)
			} else {
				fields.Address = text
				raw = nil
			}
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &fields); err != nil {
				return models.Location{}, apperror.Validation("invalid location: %v", err)
			}
		}
	}

	coords, ok := fields.coordinates()
	if !ok {
		coords, ok = fallback.coordinates()
	}
	if !ok {
		return models.Location{}, apperror.Validation("location coordinates are required")
	}

	location := models.Location{
		Type:        "Point",
		Coordinates: coords,
		Address:     firstNonEmpty(fields.Address, fallback.Address),
		City:        firstNonEmpty(fields.City, fallback.City),
		State:       firstNonEmpty(fields.State, fallback.State),
		Pincode:     firstNonEmpty(fields.Pincode, fallback.Pincode),
	}
	if err := location.Validate(); err != nil {
		return models.Location{}, apperror.Validation("invalid location: %v", err)
	}
	return location, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
