package services

import (
	"context"
	"strings"

	"github.com/luxride/booking-portal/internal/config"
	"github.com/luxride/booking-portal/pkg/initguard"
	"github.com/luxride/booking-portal/pkg/maps"
	"github.com/sirupsen/logrus"
)

const (
	ProviderGoogle    = "google"
	ProviderNominatim = "nominatim"

	minSuggestInput = 3
)

// MapsProvider is a provider that can both measure and complete addresses
type MapsProvider interface {
	maps.DistanceClient
	maps.SuggestClient
}

// MapsFactory builds the primary provider on first use
type MapsFactory func(ctx context.Context) (MapsProvider, error)

// ScriptConfig is what the browser needs to load the maps script itself
type ScriptConfig struct {
	APIKey string `json:"apiKey"`
}

// AddressService answers address suggestions and distance lookups. The Google
// client is created lazily, once, no matter how many callers race for it.
type AddressService struct {
	guard     *initguard.Guard[MapsProvider]
	factory   MapsFactory
	nominatim maps.SuggestClient
	apiKey    string
	logger    *logrus.Logger
}

// NewAddressService creates a new address service. factory may be nil to use
// the Google client built from cfg.
func NewAddressService(cfg config.MapsConfig, factory MapsFactory, nominatim maps.SuggestClient, logger *logrus.Logger) *AddressService {
	if factory == nil {
		apiKey := cfg.GoogleAPIKey
		factory = func(ctx context.Context) (MapsProvider, error) {
			client, err := maps.NewGoogleClient(apiKey)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	return &AddressService{
		guard:     initguard.New[MapsProvider](),
		factory:   factory,
		nominatim: nominatim,
		apiKey:    cfg.GoogleAPIKey,
		logger:    logger,
	}
}

func (s *AddressService) google(ctx context.Context) (MapsProvider, error) {
	return s.guard.Get(ctx, ProviderGoogle, func(ctx context.Context) (MapsProvider, error) {
		s.logger.Info("Initializing Google Maps client")
		return s.factory(ctx)
	})
}

// Suggest returns completions for a partial address. Inputs shorter than three
// characters return nothing without calling a provider.
func (s *AddressService) Suggest(ctx context.Context, input, provider string) ([]maps.Prediction, error) {
	input = strings.TrimSpace(input)
	if len([]rune(input)) < minSuggestInput {
		return []maps.Prediction{}, nil
	}

	var (
		predictions []maps.Prediction
		err         error
	)
	if provider == ProviderNominatim && s.nominatim != nil {
		predictions, err = s.nominatim.Autocomplete(ctx, input)
	} else {
		var client MapsProvider
		if client, err = s.google(ctx); err == nil {
			predictions, err = client.Autocomplete(ctx, input)
		}
	}
	if err != nil {
		s.logger.WithError(err).WithField("provider", provider).Warn("Address suggestion failed")
		return nil, ErrProvider
	}

	return predictions, nil
}

// Distance measures a trip with the primary provider
func (s *AddressService) Distance(ctx context.Context, origin, destination string) (*maps.Distance, error) {
	client, err := s.google(ctx)
	if err != nil {
		return nil, err
	}
	return client.Distance(ctx, origin, destination)
}

// ScriptConfig returns the browser key for client-side script loading
func (s *AddressService) ScriptConfig() ScriptConfig {
	return ScriptConfig{APIKey: s.apiKey}
}
