package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

const identityKey = "identity"

// requireAuth resolves the bearer token to an identity and stores it on the context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResp{Message: "not authorized, no token"})
			return
		}
		who, err := s.deps.Auth.Authenticate(c, strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(mapErrorToStatus(err), errorResp{Message: "not authorized, token failed"})
			return
		}
		c.Set(identityKey, who)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if who := identity(c); who == nil || !who.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResp{Message: "not authorized as an admin"})
			return
		}
		c.Next()
	}
}

// identity is the caller set by requireAuth, or nil on public routes.
func identity(c *gin.Context) *domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	who, _ := v.(*domain.Identity)
	return who
}

// cors lets the storefront UI at origin call the API. An empty origin allows any.
func cors(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key")
		if origin != "*" {
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
