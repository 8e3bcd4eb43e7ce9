// Package jwt mints and verifies the portal's HS256 session tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes short-lived access tokens from refresh tokens
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

const issuer = "luxride-booking-portal"

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and expiry.
	// Expired tokens also match jwt.ErrTokenExpired.
	ErrInvalidToken = errors.New("invalid token")

	// ErrWrongTokenType means a refresh token was offered as an access token or the reverse
	ErrWrongTokenType = errors.New("invalid token type")
)

// Claims is the payload of both token types. Role is empty on refresh tokens.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// key is the signing material and lifetime for one token type
type key struct {
	secret []byte
	ttl    time.Duration
}

// Service signs and verifies tokens. Access and refresh tokens use separate secrets.
type Service struct {
	keys map[TokenType]key
	now  func() time.Time
}

// NewService creates a token service
func NewService(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *Service {
	return &Service{
		keys: map[TokenType]key{
			AccessToken:  {secret: []byte(accessSecret), ttl: accessExpiry},
			RefreshToken: {secret: []byte(refreshSecret), ttl: refreshExpiry},
		},
		now: time.Now,
	}
}

// GenerateAccessToken mints an access token carrying the caller's role
func (s *Service) GenerateAccessToken(userID uuid.UUID, email, role string) (string, error) {
	return s.mint(AccessToken, Claims{UserID: userID, Email: email, Role: role})
}

// GenerateRefreshToken mints a refresh token. Each one gets a fresh jti so two
// tokens issued in the same second never collide in the refresh_tokens table.
func (s *Service) GenerateRefreshToken(userID uuid.UUID, email string) (string, error) {
	return s.mint(RefreshToken, Claims{
		UserID:           userID,
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
	})
}

// ValidateAccessToken verifies an access token and returns its claims
func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.verify(AccessToken, token)
}

// ValidateRefreshToken verifies a refresh token and returns its claims
func (s *Service) ValidateRefreshToken(token string) (*Claims, error) {
	return s.verify(RefreshToken, token)
}

func (s *Service) mint(typ TokenType, claims Claims) (string, error) {
	k := s.keys[typ]
	now := s.now()

	claims.TokenType = typ
	claims.Issuer = issuer
	claims.Subject = claims.UserID.String()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(k.ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *Service) verify(typ TokenType, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.keys[typ].secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.TokenType != typ {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongTokenType, typ, claims.TokenType)
	}

	return claims, nil
}
