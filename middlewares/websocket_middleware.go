package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/jjdimalanta/mangan-app/utils"
)

// WebSocketAuthMiddleware authenticates upgrade requests. Browsers cannot set
// an Authorization header on a websocket handshake, so the token rides in the
// query string.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(401)
			return
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		c.Set("role", claims.Role)
		c.Set("user_id", claims.UserID)

		c.Next()
	}
}
