package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	headerName     = "X-API-Key"
	reviewerHeader = "X-Reviewer"

	roleKey   = "auth.role"
	roleUser  = "user"
	roleAdmin = "admin"
)

// Keys configures request authentication. An empty APIKey disables
// authentication entirely; an empty AdminKey then grants admin to everyone
// and otherwise disables admin routes.
type Keys struct {
	APIKey   string
	AdminKey string
}

func matches(provided, key string) bool {
	return key != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1
}

// APIKeyMiddleware validates the API key from the X-API-Key header. The admin
// key is accepted as well and elevates the request.
func APIKeyMiddleware(keys Keys) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keys.APIKey == "" {
			role := roleUser
			if keys.AdminKey == "" || matches(c.GetHeader(headerName), keys.AdminKey) {
				role = roleAdmin
			}
			c.Set(roleKey, role)
			c.Next()
			return
		}

		provided := c.GetHeader(headerName)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		switch {
		case matches(provided, keys.AdminKey):
			c.Set(roleKey, roleAdmin)
		case matches(provided, keys.APIKey):
			c.Set(roleKey, roleUser)
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

// RequireAdmin rejects requests that did not authenticate with the admin key.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(roleKey) != roleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin key required",
			})
			return
		}
		c.Next()
	}
}

// Reviewer names the caller for audit columns: the X-Reviewer header, or the
// role when the header is absent.
func Reviewer(c *gin.Context) string {
	if r := c.GetHeader(reviewerHeader); r != "" {
		return r
	}
	if role := c.GetString(roleKey); role != "" {
		return role
	}
	return "anonymous"
}
