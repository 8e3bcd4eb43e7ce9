package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMFAStore struct {
	mock.Mock
}

func (m *mockMFAStore) GetByID(id uuid.UUID) (*models.Profile, error) {
	args := m.Called(id)
	if p := args.Get(0); p != nil {
		return p.(*models.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMFAStore) SetMFASecret(id uuid.UUID, secret string) error {
	return m.Called(id, secret).Error(0)
}

func (m *mockMFAStore) EnableMFA(id uuid.UUID) error {
	return m.Called(id).Error(0)
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestMFA_GenerateSecret(t *testing.T) {
	store := &mockMFAStore{}
	svc := NewMFAService(store, "LuxRide")
	profile := &models.Profile{ID: uuid.New(), Email: "jordan@example.com"}

	store.On("SetMFASecret", profile.ID, mock.AnythingOfType("string")).Return(nil)

	setup, err := svc.GenerateSecret(profile, "")
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.True(t, strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/"))
	assert.Contains(t, setup.OTPAuthURL, "issuer=LuxRide")
	assert.Contains(t, setup.OTPAuthURL, "secret="+setup.Secret)
	store.AssertExpectations(t)
}

func TestMFA_RotateRequiresCurrentCode(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "LuxRide", AccountName: "jordan@example.com"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	profile := &models.Profile{
		ID:         uuid.New(),
		Email:      "jordan@example.com",
		MFAEnabled: true,
		MFASecret:  models.NewNullString(key.Secret()),
	}

	store := &mockMFAStore{}
	svc := NewMFAService(store, "LuxRide")
	svc.now = func() time.Time { return now }

	_, err = svc.GenerateSecret(profile, "")
	assert.ErrorIs(t, err, ErrMFARequired)

	wrong := "000000"
	if wrong == codeAt(t, key.Secret(), now) {
		wrong = "999999"
	}
	_, err = svc.GenerateSecret(profile, wrong)
	assert.ErrorIs(t, err, ErrInvalidMFACode)
	store.AssertNotCalled(t, "SetMFASecret", mock.Anything, mock.Anything)

	store.On("SetMFASecret", profile.ID, mock.AnythingOfType("string")).Return(nil).Once()
	setup, err := svc.GenerateSecret(profile, codeAt(t, key.Secret(), now))
	require.NoError(t, err)
	assert.NotEqual(t, key.Secret(), setup.Secret)
	store.AssertExpectations(t)
}

func TestMFA_VerifyAndEnable(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "LuxRide", AccountName: "jordan@example.com"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	profile := &models.Profile{ID: uuid.New(), MFASecret: models.NewNullString(key.Secret())}

	store := &mockMFAStore{}
	store.On("GetByID", profile.ID).Return(profile, nil)
	store.On("EnableMFA", profile.ID).Return(nil).Once()

	svc := NewMFAService(store, "LuxRide")
	svc.now = func() time.Time { return now }

	assert.ErrorIs(t, svc.VerifyAndEnable(profile.ID, "000000x"), ErrInvalidMFACode)

	// One step of skew is tolerated
	require.NoError(t, svc.VerifyAndEnable(profile.ID, codeAt(t, key.Secret(), now.Add(-30*time.Second))))
	store.AssertExpectations(t)
}

func TestMFA_ValidateRejectsOldCodes(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "LuxRide", AccountName: "jordan@example.com"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewMFAService(&mockMFAStore{}, "LuxRide")
	svc.now = func() time.Time { return now }

	assert.True(t, svc.Validate(key.Secret(), codeAt(t, key.Secret(), now)))
	assert.False(t, svc.Validate(key.Secret(), codeAt(t, key.Secret(), now.Add(-5*time.Minute))))
}

func TestMFA_VerifyWithoutSecret(t *testing.T) {
	id := uuid.New()
	store := &mockMFAStore{}
	store.On("GetByID", id).Return(&models.Profile{ID: id}, nil)

	err := NewMFAService(store, "LuxRide").VerifyAndEnable(id, "123456")
	assert.ErrorIs(t, err, ErrMFANotInitialized)
}

func TestAuth_SignInRequiresMFACode(t *testing.T) {
	f := newAuthFixture(nil)
	profile, err := f.svc.SignUp(context.Background(), signUpRequest(), Caller{})
	require.NoError(t, err)

	setup, err := f.mfa.GenerateSecret(profile, "")
	require.NoError(t, err)
	require.NoError(t, f.mfa.VerifyAndEnable(profile.ID, codeAt(t, setup.Secret, time.Now())))

	req := models.SignInRequest{Email: "jordan@example.com", Password: "correct horse"}
	_, err = f.svc.SignIn(context.Background(), req, Caller{})
	assert.ErrorIs(t, err, ErrMFARequired)

	req.MFACode = "000000"
	if req.MFACode == codeAt(t, setup.Secret, time.Now()) {
		req.MFACode = "999999"
	}
	_, err = f.svc.SignIn(context.Background(), req, Caller{})
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	req.MFACode = codeAt(t, setup.Secret, time.Now())
	_, err = f.svc.SignIn(context.Background(), req, Caller{})
	assert.NoError(t, err)
}
