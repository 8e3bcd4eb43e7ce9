package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/pkg/jwt"
	"github.com/luxride/booking-portal/pkg/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when signing up with a registered email
	ErrEmailTaken = errors.New("an account with this email already exists")

	// ErrMFARequired is returned when the account has MFA and no code was sent
	ErrMFARequired = errors.New("verification code required")

	// ErrInvalidRefreshToken is returned for unknown, revoked or expired refresh tokens
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

	// ErrProfileNotFound is returned when a session's profile no longer exists
	ErrProfileNotFound = errors.New("profile not found")
)

// AuthProfileStore is the profile storage used by sign-up and sign-in
type AuthProfileStore interface {
	Create(p *models.Profile) error
	GetByID(id uuid.UUID) (*models.Profile, error)
	GetByEmail(email string) (*models.Profile, error)
}

// RefreshTokenStore keeps hashed refresh tokens
type RefreshTokenStore interface {
	Store(userID uuid.UUID, token, ipAddress, userAgent string, expiresAt time.Time) error
	Get(token string) (*models.RefreshToken, error)
	Revoke(token string) (bool, error)
	RevokeAllForUser(userID uuid.UUID) error
}

// AuthResult is returned by sign-in and refresh
type AuthResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
	Profile      *models.Profile `json:"profile"`
	IsAdmin      bool            `json:"is_admin"`
}

// Session is the signed-in profile with its derived admin flag
type Session struct {
	Profile *models.Profile `json:"profile"`
	IsAdmin bool            `json:"is_admin"`
}

// AuthService handles email/password accounts and token sessions
type AuthService struct {
	profiles   AuthProfileStore
	tokens     RefreshTokenStore
	jwt        *jwt.Service
	mfa        *MFAService
	limiter    *RateLimitService
	audit      *AuditService
	validator  *validator.ContactValidator
	bcryptCost int
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *logrus.Logger
}

// AuthConfig carries the token lifetimes and hashing cost
type AuthConfig struct {
	BcryptCost int
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewAuthService creates a new auth service. limiter and audit may be nil.
func NewAuthService(
	profiles AuthProfileStore,
	tokens RefreshTokenStore,
	jwtService *jwt.Service,
	mfa *MFAService,
	limiter *RateLimitService,
	audit *AuditService,
	cfg AuthConfig,
	logger *logrus.Logger,
) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		profiles:   profiles,
		tokens:     tokens,
		jwt:        jwtService,
		mfa:        mfa,
		limiter:    limiter,
		audit:      audit,
		validator:  validator.NewContactValidator(),
		bcryptCost: cfg.BcryptCost,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		logger:     logger,
	}
}

// Register creates a profile with a hashed password. Used by sign-up and by
// the public driver application.
func (s *AuthService) Register(req models.SignUpRequest, role models.Role) (*models.Profile, error) {
	email, err := s.validator.ValidateEmail(req.Email)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"email": "Invalid email format"}}
	}
	if len(req.Password) < 8 {
		return nil, &ValidationError{Fields: map[string]string{"password": "Password must be at least 8 characters"}}
	}

	existing, err := s.profiles.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &models.Profile{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    models.NewNullString(strings.TrimSpace(req.FirstName)),
		LastName:     models.NewNullString(strings.TrimSpace(req.LastName)),
		Phone:        models.NewNullString(s.validator.SanitizePhone(req.Phone)),
		Role:         role,
	}
	if err := s.profiles.Create(profile); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return profile, nil
}

// SignUp registers a client account
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest, caller Caller) (*models.Profile, error) {
	if err := s.checkLimit(ctx, ActionSignUp, caller); err != nil {
		return nil, err
	}

	profile, err := s.Register(req, models.RoleClient)
	if err != nil {
		return nil, err
	}

	s.logAuth("sign_up", &profile.ID, caller, nil)
	s.logger.WithField("user_id", profile.ID).Info("Profile created")

	return profile, nil
}

// SignIn checks the password, and the TOTP code when MFA is on, then issues tokens
func (s *AuthService) SignIn(ctx context.Context, req models.SignInRequest, caller Caller) (*AuthResult, error) {
	if err := s.checkLimit(ctx, ActionSignIn, caller); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, err
	}
	if profile == nil || bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)) != nil {
		s.logSecurity("sign_in_failed", nil, caller, map[string]interface{}{"email": req.Email, "reason": "bad_credentials"})
		return nil, ErrInvalidCredentials
	}

	if profile.MFAEnabled {
		if req.MFACode == "" {
			return nil, ErrMFARequired
		}
		if s.mfa == nil || !s.mfa.Validate(profile.MFASecret.String, req.MFACode) {
			s.logSecurity("sign_in_failed", &profile.ID, caller, map[string]interface{}{"reason": "bad_mfa_code"})
			return nil, ErrInvalidMFACode
		}
	}

	result, err := s.issueTokens(profile, caller)
	if err != nil {
		return nil, err
	}

	s.logAuth("sign_in", &profile.ID, caller, map[string]interface{}{"mfa": profile.MFAEnabled})
	return result, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair issued
func (s *AuthService) Refresh(refreshToken string, caller Caller) (*AuthResult, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	stored, err := s.tokens.Get(refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.Revoked || time.Now().After(stored.ExpiresAt) || stored.UserID != claims.UserID {
		if stored != nil && stored.Revoked {
			s.logSecurity("refresh_token_reuse", &claims.UserID, caller, nil)
		}
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := s.tokens.Revoke(refreshToken)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, ErrInvalidRefreshToken
	}

	profile, err := s.profiles.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	return s.issueTokens(profile, caller)
}

// SignOut revokes every refresh token of the user
func (s *AuthService) SignOut(userID uuid.UUID, caller Caller) error {
	if err := s.tokens.RevokeAllForUser(userID); err != nil {
		return err
	}
	s.logAuth("sign_out", &userID, caller, nil)
	return nil
}

// Session loads the profile behind an authenticated request
func (s *AuthService) Session(userID uuid.UUID) (*Session, error) {
	profile, err := s.profiles.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return &Session{Profile: profile, IsAdmin: profile.IsAdmin()}, nil
}

func (s *AuthService) issueTokens(profile *models.Profile, caller Caller) (*AuthResult, error) {
	access, err := s.jwt.GenerateAccessToken(profile.ID, profile.Email, string(profile.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.GenerateRefreshToken(profile.ID, profile.Email)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Store(profile.ID, refresh, caller.IPAddress, caller.UserAgent, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		Profile:      profile,
		IsAdmin:      profile.IsAdmin(),
	}, nil
}

func (s *AuthService) checkLimit(ctx context.Context, action string, caller Caller) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, action, caller.RateKey())
	var rle *RateLimitError
	if errors.As(err, &rle) {
		s.logSecurity("rate_limit_exceeded", caller.UserID, caller, map[string]interface{}{"action": action})
	}
	return err
}

func (s *AuthService) logAuth(action string, userID *uuid.UUID, caller Caller, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogAuth(action, userID, caller.IPAddress, caller.UserAgent, details); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("Failed to write audit entry")
	}
}

func (s *AuthService) logSecurity(action string, userID *uuid.UUID, caller Caller, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogSecurity(action, userID, caller.IPAddress, caller.UserAgent, details); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("Failed to write audit entry")
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
