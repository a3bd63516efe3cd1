package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const principalContextKey = "staybook.principal"

// Roles the edge proxy may assert. Unknown role strings are dropped rather
// than carried through.
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

type principal struct {
	ID    string
	Roles []string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TrustedHeaderAuth builds a principal from the identity headers the edge
// proxy injects after authenticating the caller. The service itself never
// validates credentials.
func TrustedHeaderAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if id == "" {
			c.Next()
			return
		}
		setPrincipal(c, principal{
			ID:    id,
			Roles: parseRoles(c.GetHeader("X-User-Roles")),
		})
		c.Next()
	}
}

func parseRoles(header string) []string {
	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))
	for _, raw := range parts {
		role := strings.ToLower(strings.TrimSpace(raw))
		switch role {
		case RoleGuest, RoleHost, RoleAdmin:
			roles = append(roles, role)
		}
	}
	return roles
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHENTICATED", "error": "auth required"})
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"code": codeForbidden, "error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}
