package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"snaplink/internal/services"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Authenticator resolves request credentials to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (services.Principal, error)
	AuthenticateAPIKey(ctx context.Context, key string) (services.Principal, error)
}

// AuthRequired accepts either "Authorization: Bearer <token>" or an
// X-API-Key header. Inactive accounts are refused with 403.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			p   services.Principal
			err error
		)
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			p, err = auth.Authenticate(ctx, strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		} else if key := c.GetHeader("X-API-Key"); key != "" {
			p, err = auth.AuthenticateAPIKey(ctx, key)
		} else {
			err = services.ErrUnauthenticated
		}

		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		case !p.IsActive:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Account is inactive"})
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// SuperuserRequired must run after AuthRequired.
func SuperuserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok || !p.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Superuser privileges required"})
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (services.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return services.Principal{}, false
	}
	p, ok := v.(services.Principal)
	return p, ok
}
