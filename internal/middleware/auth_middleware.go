package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/services"
	jwtpkg "github.com/luxride/booking-portal/pkg/jwt"
)

// UserContextKey is the gin context key holding the authenticated UserContext
const UserContextKey = "user_context"

// Where a UI should send the user after a guard failure
const (
	LoginRedirect = "/login"
	HomeRedirect  = "/"
)

// UserContext holds the authenticated user's claims
type UserContext struct {
	UserID uuid.UUID
	Email  string
	Role   models.Role
}

// Actor converts the context to the service-layer actor
func (u UserContext) Actor() services.Actor {
	return services.Actor{ID: u.UserID, Role: u.Role}
}

// guardResponse is the body of 401/403 guard failures
type guardResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Redirect string `json:"redirect"`
}

func unauthorized(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, guardResponse{
		Error:    "unauthorized",
		Message:  "Authentication required",
		Code:     code,
		Redirect: LoginRedirect,
	})
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, guardResponse{
		Error:    "forbidden",
		Message:  "Access denied",
		Code:     "INSUFFICIENT_PERMISSIONS",
		Redirect: HomeRedirect,
	})
}

// AuthMiddleware validates the Bearer access token and stores the user context.
// Requests without a valid token get 401 with a redirect to the login view.
func AuthMiddleware(jwtService *jwtpkg.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "MISSING_AUTH_HEADER")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "INVALID_AUTH_FORMAT")
			return
		}

		userCtx, code := authenticate(jwtService, strings.TrimSpace(parts[1]))
		if code != "" {
			unauthorized(c, code)
			return
		}

		setUserContext(c, userCtx)
		c.Next()
	}
}

// OptionalAuth stores the user context when a valid token is present and
// otherwise lets the request through as a guest
func OptionalAuth(jwtService *jwtpkg.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
			if userCtx, code := authenticate(jwtService, strings.TrimSpace(token)); code == "" {
				setUserContext(c, userCtx)
			}
		}
		c.Next()
	}
}

// TokenFromQuery copies a ?token= parameter into the Authorization header.
// Browsers cannot set headers on websocket upgrades.
func TokenFromQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if token := c.Query("token"); token != "" {
				c.Request.Header.Set("Authorization", "Bearer "+token)
			}
		}
		c.Next()
	}
}

func authenticate(jwtService *jwtpkg.Service, token string) (UserContext, string) {
	claims, err := jwtService.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return UserContext{}, "TOKEN_EXPIRED"
		}
		return UserContext{}, "INVALID_TOKEN"
	}

	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return UserContext{}, "INVALID_TOKEN"
	}

	return UserContext{UserID: claims.UserID, Email: claims.Email, Role: role}, ""
}

func setUserContext(c *gin.Context, userCtx UserContext) {
	c.Set(UserContextKey, userCtx)
	// Flat keys for the request logger
	c.Set("user_id", userCtx.UserID.String())
	c.Set("role", string(userCtx.Role))
}

// GetUserContext returns the authenticated user context, if any
func GetUserContext(c *gin.Context) (UserContext, bool) {
	v, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}
	userCtx, ok := v.(UserContext)
	if !ok {
		return UserContext{}, false
	}
	return userCtx, true
}

// MustGetUserContext returns the user context and panics if it is missing.
// Only use behind AuthMiddleware.
func MustGetUserContext(c *gin.Context) UserContext {
	userCtx, exists := GetUserContext(c)
	if !exists {
		panic("user context not found; AuthMiddleware missing from route")
	}
	return userCtx
}

// RequireAuth rejects requests that carry no user context
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := GetUserContext(c); !exists {
			unauthorized(c, "MISSING_USER_CONTEXT")
			return
		}
		c.Next()
	}
}

// RequireCapability allows the request only when the user's role holds cap.
// Must be used after AuthMiddleware.
func RequireCapability(cap models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			unauthorized(c, "MISSING_USER_CONTEXT")
			return
		}
		if !models.Can(userCtx.Role, cap) {
			forbidden(c)
			return
		}
		c.Next()
	}
}

// RequireRole allows the request only for the listed roles
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			unauthorized(c, "MISSING_USER_CONTEXT")
			return
		}
		for _, r := range roles {
			if userCtx.Role == r {
				c.Next()
				return
			}
		}
		forbidden(c)
	}
}
