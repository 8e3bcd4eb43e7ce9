package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const mfaPeriod = 30

var (
	// ErrInvalidMFACode indicates a wrong or expired one-time code
	ErrInvalidMFACode = errors.New("invalid verification code")

	// ErrMFANotInitialized indicates no secret has been generated yet
	ErrMFANotInitialized = errors.New("MFA secret has not been generated")
)

// MFAProfileStore persists TOTP secrets
type MFAProfileStore interface {
	GetByID(id uuid.UUID) (*models.Profile, error)
	SetMFASecret(id uuid.UUID, secret string) error
	EnableMFA(id uuid.UUID) error
}

// MFASetup is returned when a secret is generated
type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// MFAService manages TOTP enrollment: SHA1, six digits, 30 second steps and
// one step of clock skew either way
type MFAService struct {
	profiles MFAProfileStore
	issuer   string
	now      func() time.Time
}

// NewMFAService creates a new MFA service
func NewMFAService(profiles MFAProfileStore, issuer string) *MFAService {
	return &MFAService{profiles: profiles, issuer: issuer, now: time.Now}
}

// GenerateSecret creates and stores a fresh secret. MFA stays disabled until
// a code from the new secret is verified. When MFA is already on, currentCode
// must be valid for the existing secret or nothing changes.
func (s *MFAService) GenerateSecret(profile *models.Profile, currentCode string) (*MFASetup, error) {
	if profile.MFAEnabled {
		if currentCode == "" {
			return nil, ErrMFARequired
		}
		if !s.Validate(profile.MFASecret.String, currentCode) {
			return nil, ErrInvalidMFACode
		}
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: profile.Email,
		Period:      mfaPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate MFA secret: %w", err)
	}

	if err := s.profiles.SetMFASecret(profile.ID, key.Secret()); err != nil {
		return nil, err
	}

	return &MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// VerifyAndEnable checks a code against the stored secret and turns MFA on
func (s *MFAService) VerifyAndEnable(userID uuid.UUID, code string) error {
	profile, err := s.profiles.GetByID(userID)
	if err != nil {
		return err
	}
	if profile == nil || !profile.MFASecret.Valid || profile.MFASecret.String == "" {
		return ErrMFANotInitialized
	}

	if !s.Validate(profile.MFASecret.String, code) {
		return ErrInvalidMFACode
	}

	if profile.MFAEnabled {
		return nil
	}
	return s.profiles.EnableMFA(userID)
}

// Validate checks a six digit code against secret
func (s *MFAService) Validate(secret, code string) bool {
	if len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    mfaPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
