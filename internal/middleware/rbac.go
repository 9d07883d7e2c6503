package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

// RequireRoles allows the request through only for the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role is not allowed to manage billings"))
			c.Abort()
			return
		}
		c.Next()
	}
}
