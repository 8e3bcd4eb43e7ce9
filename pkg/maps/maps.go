// Package maps wraps the address lookup providers: Google Maps for distance
// and autocomplete, and OpenStreetMap Nominatim as an alternate autocomplete source.
package maps

import (
	"context"
	"errors"
)

var (
	// ErrAddressNotFound means the provider could not resolve one of the addresses
	ErrAddressNotFound = errors.New("maps: address could not be resolved")

	// ErrProvider wraps transport, quota and other upstream failures
	ErrProvider = errors.New("maps: provider request failed")
)

// Distance is a provider-reported route distance
type Distance struct {
	Text   string `json:"text"`   // provider display form, for example "10.2 mi"
	Meters int    `json:"meters"` // exact length
}

// Prediction is one autocomplete suggestion
type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// DistanceClient measures driving distance between two addresses
type DistanceClient interface {
	Distance(ctx context.Context, origin, destination string) (*Distance, error)
}

// SuggestClient completes partial addresses
type SuggestClient interface {
	Autocomplete(ctx context.Context, input string) ([]Prediction, error)
}
