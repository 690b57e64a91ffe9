package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/thinkfish/tutoradmin_backend/utils"
)

// IdentityMiddleware captures the acting admin's name from the X-User-Name
// header set by the authenticating proxy. Handlers that stamp an audit field
// (reviewed_by on additional-hours reviews) fall back to it when the request
// body does not name a reviewer.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userName := strings.TrimSpace(c.GetHeader("X-User-Name")); userName != "" {
			ctx := utils.SetUserNameInContext(c.Request.Context(), userName)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
