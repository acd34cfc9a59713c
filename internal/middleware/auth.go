package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"civicpulse/internal/identity"
)

const (
	// TokenEmailKey holds the email of a verified bearer token.
	TokenEmailKey = "token_email"
	RequestIDKey  = "request_id"
)

// RoleLookup resolves the stored role of a user.
type RoleLookup func(ctx context.Context, email string) (string, error)

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// LoadIdentity verifies the bearer token when one is sent and stores its
// email on the context. Requests without a valid token pass through.
func LoadIdentity(v identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearer(c); token != "" {
			if claims, err := v.Verify(c.Request.Context(), token); err == nil {
				c.Set(TokenEmailKey, claims.Email)
			}
		}
		c.Next()
	}
}

// AuthRequired rejects requests that carry no verified identity.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if TokenEmail(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized Access!"})
			return
		}
		c.Next()
	}
}

// RoleRequired only lets users with one of roles through. It must run after
// AuthRequired.
func RoleRequired(lookup RoleLookup, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := lookup(c.Request.Context(), TokenEmail(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "role lookup failed"})
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden Access!"})
	}
}

// TokenEmail returns the verified email, or "" for anonymous requests.
func TokenEmail(c *gin.Context) string {
	return c.GetString(TokenEmailKey)
}
