package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/luxride/booking-portal/internal/config"
	"github.com/luxride/booking-portal/pkg/maps"
	"github.com/sirupsen/logrus"
)

const metersPerMile = 1609.344

var (
	// ErrGeocoding means the pickup or dropoff address could not be resolved
	ErrGeocoding = errors.New("could not find a route between these addresses")

	// ErrProvider means the mapping provider failed or refused the request
	ErrProvider = errors.New("distance provider is unavailable")
)

// Estimate is a priced trip
type Estimate struct {
	DistanceText string  `json:"distanceText"`
	Miles        float64 `json:"miles"`
	TotalCost    float64 `json:"totalCost"`
	Display      string  `json:"totalCostDisplay"`
}

// Estimator prices a trip between two addresses
type Estimator interface {
	Estimate(ctx context.Context, pickup, dropoff string) (*Estimate, error)
}

// EstimatorService prices trips from the provider's driving distance.
// Nothing is cached; every call asks the provider.
type EstimatorService struct {
	distances maps.DistanceClient
	pricing   config.PricingConfig
	logger    *logrus.Logger
}

// NewEstimatorService creates a new estimator
func NewEstimatorService(distances maps.DistanceClient, pricing config.PricingConfig, logger *logrus.Logger) *EstimatorService {
	return &EstimatorService{
		distances: distances,
		pricing:   pricing,
		logger:    logger,
	}
}

// Estimate returns distance and price. Costs are miles*rate + base fee, rounded to cents.
func (s *EstimatorService) Estimate(ctx context.Context, pickup, dropoff string) (*Estimate, error) {
	pickup = strings.TrimSpace(pickup)
	dropoff = strings.TrimSpace(dropoff)
	if pickup == "" || dropoff == "" {
		return nil, ErrGeocoding
	}

	d, err := s.distances.Distance(ctx, pickup, dropoff)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"pickup":  pickup,
			"dropoff": dropoff,
		}).Warn("Distance lookup failed")

		if errors.Is(err, maps.ErrAddressNotFound) {
			return nil, ErrGeocoding
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	miles := milesFromDistance(d)
	total := s.Price(miles)

	return &Estimate{
		DistanceText: d.Text,
		Miles:        miles,
		TotalCost:    total,
		Display:      FormatUSD(total),
	}, nil
}

// Price applies the pricing formula to a distance in miles
func (s *EstimatorService) Price(miles float64) float64 {
	return roundCents(miles*s.pricing.RatePerMile + s.pricing.BaseFee)
}

// FormatUSD renders an amount as "$65.00"
func FormatUSD(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// ToCents converts a dollar amount to minor units
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// milesFromDistance reads the provider's display text ("10.2 mi", "1,204 mi",
// "850 ft") and falls back to the exact meter count.
func milesFromDistance(d *maps.Distance) float64 {
	fields := strings.Fields(strings.ReplaceAll(d.Text, ",", ""))
	if len(fields) == 2 {
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			switch strings.ToLower(fields[1]) {
			case "mi", "mile", "miles":
				return v
			case "ft", "feet":
				return v / 5280
			case "km":
				return v * 1000 / metersPerMile
			case "m":
				return v / metersPerMile
			}
		}
	}
	return float64(d.Meters) / metersPerMile
}
