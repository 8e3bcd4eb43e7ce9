package maps

import (
	"context"
	"fmt"

	gmaps "googlemaps.github.io/maps"
)

// GoogleClient talks to the Google Maps web services
type GoogleClient struct {
	client *gmaps.Client
}

// NewGoogleClient creates a Google Maps client. Extra options are passed
// through, which tests use to point the client at a local server.
func NewGoogleClient(apiKey string, opts ...gmaps.ClientOption) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: google maps api key is not configured", ErrProvider)
	}

	client, err := gmaps.NewClient(append([]gmaps.ClientOption{gmaps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	return &GoogleClient{client: client}, nil
}

// Distance returns the driving distance in imperial units
func (g *GoogleClient) Distance(ctx context.Context, origin, destination string) (*Distance, error) {
	resp, err := g.client.DistanceMatrix(ctx, &gmaps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         gmaps.TravelModeDriving,
		Units:        gmaps.UnitsImperial,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, ErrAddressNotFound
	}

	element := resp.Rows[0].Elements[0]
	switch element.Status {
	case "OK":
		return &Distance{Text: element.Distance.HumanReadable, Meters: element.Distance.Meters}, nil
	case "NOT_FOUND", "ZERO_RESULTS":
		return nil, ErrAddressNotFound
	default:
		return nil, fmt.Errorf("%w: element status %s", ErrProvider, element.Status)
	}
}

// Autocomplete returns place predictions for a partial address
func (g *GoogleClient) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	resp, err := g.client.PlaceAutocomplete(ctx, &gmaps.PlaceAutocompleteRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	predictions := make([]Prediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		predictions = append(predictions, Prediction{Description: p.Description, PlaceID: p.PlaceID})
	}

	return predictions, nil
}
