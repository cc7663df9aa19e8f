package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*jwt.Claims, error)
}

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
}

// ToActor converts the user context into the actor passed to services
func (u UserContext) ToActor() *models.Actor {
	return &models.Actor{UserID: u.UserID, Email: u.Email, Roles: u.Roles}
}

type authFailure struct {
	status  int
	error   string
	message string
	code    string
}

// authenticate extracts and validates the bearer token. A nil failure with a nil
// context means no Authorization header was sent.
func authenticate(c *gin.Context, validator TokenValidator, logger *logrus.Logger) (*UserContext, *authFailure) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	fields := logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		logger.WithFields(fields).Warn("Auth failed: invalid authorization header format")
		return nil, &authFailure{
			status:  http.StatusUnauthorized,
			error:   "unauthorized",
			message: "Invalid authorization header format. Expected: Bearer <token>",
			code:    "INVALID_AUTH_FORMAT",
		}
	}

	claims, err := validator.ValidateAccessToken(strings.TrimSpace(parts[1]))
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			logger.WithFields(fields).Info("Auth failed: token expired")
			return nil, &authFailure{
				status:  http.StatusUnauthorized,
				error:   "token_expired",
				message: "Access token has expired. Please refresh your token.",
				code:    "TOKEN_EXPIRED",
			}
		}
		logger.WithFields(fields).WithError(err).Warn("Auth failed: invalid token")
		return nil, &authFailure{
			status:  http.StatusUnauthorized,
			error:   "invalid_token",
			message: "Invalid access token",
			code:    "INVALID_TOKEN",
		}
	}

	return &UserContext{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

func abortAuth(c *gin.Context, f *authFailure) {
	c.AbortWithStatusJSON(f.status, gin.H{
		"error":   f.error,
		"message": f.message,
		"code":    f.code,
	})
}

// AuthMiddleware rejects requests without a valid bearer token
func AuthMiddleware(validator TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, failure := authenticate(c, validator, logger)
		if failure != nil {
			abortAuth(c, failure)
			return
		}
		if user == nil {
			logger.WithFields(logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}).
				Warn("Auth failed: missing authorization header")
			abortAuth(c, &authFailure{
				status:  http.StatusUnauthorized,
				error:   "unauthorized",
				message: "Authorization header is required",
				code:    "MISSING_AUTH_HEADER",
			})
			return
		}

		c.Set(UserContextKey, *user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a token is sent and lets guests through.
// A token that is sent but invalid is still rejected.
func OptionalAuth(validator TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, failure := authenticate(c, validator, logger)
		if failure != nil {
			abortAuth(c, failure)
			return
		}
		if user != nil {
			c.Set(UserContextKey, *user)
		}
		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found. Auth middleware may not be applied.",
				"code":    "MISSING_USER_CONTEXT",
			})
			return
		}

		actor := userCtx.ToActor()
		for _, role := range roles {
			if actor.HasRole(role) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to access this resource",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}

// ActorFromContext returns the authenticated actor, or nil for guests
func ActorFromContext(c *gin.Context) *models.Actor {
	userCtx, ok := GetUserContext(c)
	if !ok {
		return nil
	}
	return userCtx.ToActor()
}
