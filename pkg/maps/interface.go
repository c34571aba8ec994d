package maps

import (
	"context"
	"errors"
)

// ErrNoResults is returned when a coordinate has no known address.
var ErrNoResults = errors.New("no geocoding results")

type Geocoder interface {
	Name() string
	ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodeResult, error)
}

type GeocodeResult struct {
	PlaceID     string   `json:"place_id"`
	Address     string   `json:"formatted_address"`
	Coordinates Location `json:"geometry"`
	Types       []string `json:"types"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
