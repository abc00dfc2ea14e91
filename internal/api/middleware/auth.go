package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"greendrake/negotiation/internal/auth"
	"greendrake/negotiation/internal/utils"
)

// ContextKeyPartyID holds the key for the caller's party id in Gin context.
const ContextKeyPartyID = "partyID"

// BearerToken extracts the token from an "Authorization: Bearer" header.
// Streams opened by EventSource cannot set headers, so the access_token
// query parameter is accepted as well.
func BearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		partyID, err := claims.Party()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextKeyPartyID, partyID)
		c.Next()
	}
}

// PartyID returns the caller set by AuthMiddleware.
func PartyID(c *gin.Context) (utils.SixID, bool) {
	v, exists := c.Get(ContextKeyPartyID)
	if !exists {
		return utils.SixID{}, false
	}
	id, ok := v.(utils.SixID)
	return id, ok
}
