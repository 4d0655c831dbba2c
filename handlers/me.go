package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/logger"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/middleware"
)

// ProfileLookup resolves a stored display name for a uid.
type ProfileLookup interface {
	GetDisplayName(ctx context.Context, uid string) (string, error)
}

// RegisterMe mounts GET /api/me. It reports who the bearer token belongs to
// and whether that user is an admin, so clients need no hard-coded admin list.
func RegisterMe(r gin.IRouter, ver middleware.Verifier, isAdmin func(map[string]interface{}) bool, profiles ProfileLookup) {
	if ver == nil {
		r.GET("/api/me", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication not configured"})
		})
		return
	}
	r.GET("/api/me", middleware.AuthMiddleware(ver), func(c *gin.Context) {
		claims, _ := middleware.ClaimsFromContext(c)
		uid := middleware.Subject(claims)
		email := middleware.StringClaim(claims, "email")

		display := ""
		if profiles != nil {
			name, err := profiles.GetDisplayName(c.Request.Context(), uid)
			if err != nil {
				logger.Warnf("me: profile lookup for %s: %v", uid, err)
			}
			display = name
		}
		if display == "" {
			display = middleware.StringClaim(claims, "name")
		}
		if display == "" {
			display = email
		}

		c.JSON(http.StatusOK, gin.H{
			"uid":         uid,
			"email":       email,
			"displayName": display,
			"isAdmin":     isAdmin != nil && isAdmin(claims),
		})
	})
}
