package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codetrack/backend/internal/service"
)

const (
	// AuthorizationHeader is the header key for the JWT token
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for the JWT token
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for the user ID
	UserIDKey = "userID"
)

// AuthMiddleware rejects requests without a valid bearer access token and
// stores the authenticated user's ID in the request context.
func AuthMiddleware(userService *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, errMsg := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}

		userID, err := userService.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// bearerToken extracts the access token from the Authorization header,
// returning an empty token with a caller-facing message on failure
func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader(AuthorizationHeader)
	switch {
	case header == "":
		return "", "Authorization header is required"
	case !strings.HasPrefix(header, BearerPrefix):
		return "", "Invalid authorization header format"
	}

	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		return "", "Token is required"
	}
	return token, ""
}

// GetUserID extracts the user ID from the gin context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

// RequireUser returns the authenticated user's ID, aborting with 401 when
// the request carries none
func RequireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Authentication required",
		})
		return uuid.Nil, false
	}
	return userID, true
}
