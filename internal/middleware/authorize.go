package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/models"
	"kapacity/api/internal/response"
)

// RequireRoles runs after Resolver and admits only the listed roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "No token provided.")
			return
		}

		if _, ok := roleSet[principal.RoleClaim]; !ok {
			response.Abort(c, http.StatusForbidden, "Access denied")
			return
		}

		c.Next()
	}
}
