package middleware

import (
	"net/http"
	"strings"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/config"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/utils"
	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware creates a gin middleware for JWT authentication
func JWTAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := utils.ValidateJWT(parts[1], cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Set("adminId", sub)
		}
		if role, ok := claims["role"].(string); ok {
			c.Set("adminRole", role)
		}
		c.Next()
	}
}

// RequireRole restricts a route to admins holding the given role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("adminRole") != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
