package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chainshop/internal/api/jwt"
)

func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "jwt missing"})
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")
		address, email, err := jwt.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.Set("address", address)
		c.Set("email", email)
		c.Next()
	}
}
