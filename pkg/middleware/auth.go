package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding the verified token claims.
const ClaimsKey = "claims"

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		claims, err := verifyHeader(c.Request.Context(), ver, auth)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// OptionalAuth attaches claims when a valid bearer token is present and
// lets the request through either way.
func OptionalAuth(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); auth != "" {
			if claims, err := verifyHeader(c.Request.Context(), ver, auth); err == nil {
				c.Set(ClaimsKey, claims)
			}
		}
		c.Next()
	}
}

// RequireAdmin rejects requests whose claims are missing (401) or not admin (403).
// It must run after AuthMiddleware.
func RequireAdmin(isAdmin func(claims map[string]interface{}) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !isAdmin(claims) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

func verifyHeader(ctx context.Context, ver Verifier, auth string) (map[string]interface{}, error) {
	// Expect 'Bearer <token>'
	var token string
	if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
		return nil, fmt.Errorf("invalid Authorization header")
	}
	idToken, err := ver.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims")
	}
	return claims, nil
}

// ClaimsFromContext returns the claims set by AuthMiddleware or OptionalAuth.
func ClaimsFromContext(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	cm, ok := v.(map[string]interface{})
	return cm, ok
}

// Subject returns the user id from Firebase claims: user_id, falling back to sub.
func Subject(claims map[string]interface{}) string {
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// StringClaim returns claims[key] when it is a string.
func StringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

// AdminFunc builds the admin predicate used by RequireAdmin: a truthy "admin"
// custom claim, role "admin", or an e-mail accepted by emailIsAdmin.
func AdminFunc(emailIsAdmin func(email string) bool) func(map[string]interface{}) bool {
	return func(claims map[string]interface{}) bool {
		switch v := claims["admin"].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if strings.EqualFold(v, "true") {
				return true
			}
		}
		if strings.EqualFold(StringClaim(claims, "role"), "admin") {
			return true
		}
		return emailIsAdmin != nil && emailIsAdmin(StringClaim(claims, "email"))
	}
}
