package middlewares

import (
	"net/http"
	"strings"

	"github.com/fishm995/greenhouse-project/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the JWT token from the Authorization header, the
// x-access-token header, or the token query parameter (used by websockets).
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// 1. Try Authorization header
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// 2. x-access-token header
		if tokenString == "" {
			tokenString = c.GetHeader("x-access-token")
		}

		// 3. Fallback to query parameter (e.g., ?token=abc123)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}

		claims, err := utils.ParseToken(secret, tokenString)
		if err != nil {
			msg := "Invalid token"
			if utils.IsExpired(err) {
				msg = "Token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole lets the request through only when the authenticated role is
// one of roles. It must run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
}
