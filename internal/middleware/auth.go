package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/identity"
	"healthreach-server/internal/models"
	"healthreach-server/internal/utils"
)

const identityKey = "identity"

// AuthMiddleware verifies the bearer token and attaches the caller's
// Identity to the request. It is the only place identity is established.
func AuthMiddleware(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			utils.Unauthorized(c, "Invalid authorization header format")
			return
		}

		id, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			_ = c.Error(err)
			switch {
			case errors.Is(err, identity.ErrCustomToken):
				utils.Unauthorized(c, "Custom tokens are not accepted. Exchange it for an ID token with Firebase first")
			case errors.Is(err, identity.ErrAccountDisabled):
				utils.Forbidden(c, "This account has been deactivated")
			case errors.Is(err, identity.ErrAccountUnavailable):
				utils.Error(c, http.StatusServiceUnavailable, "Authentication is temporarily unavailable", nil)
			default:
				utils.Unauthorized(c, "Invalid or expired token")
			}
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RoleAuthMiddleware allows only the given roles. It must run after
// AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentUser(c)
		if !ok {
			utils.Unauthorized(c, "Authentication required")
			return
		}
		for _, role := range allowedRoles {
			if id.Role == role {
				c.Next()
				return
			}
		}
		utils.Forbidden(c, "You do not have permission to access this resource")
	}
}

// CurrentUser returns the identity attached by AuthMiddleware.
func CurrentUser(c *gin.Context) (*identity.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	id, ok := v.(*identity.Identity)
	return id, ok && id != nil
}

// CurrentUserID returns the caller's id, or "" for anonymous requests.
func CurrentUserID(c *gin.Context) string {
	if id, ok := CurrentUser(c); ok {
		return id.UserID
	}
	return ""
}
