package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chainshop/internal/api/jwt"
	"chainshop/internal/shopapi"
)

func GetUser(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	address := c.MustGet("address")
	email := c.MustGet("email")

	var user shopapi.User
	res := app.Db.Where(
		"(address NOT IN ('') AND address = ?) OR (email NOT IN ('') AND email = ?)",
		address,
		email,
	).First(&user)
	if res.RowsAffected == 1 {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"user":    user.Profile(),
		})
	} else {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
	}
}

func GetUserFromToken(token string) (address string, email string, err error) {
	address, email, err = jwt.ValidateToken(token)
	if err != nil {
		return "", "", errors.New("invalid jwt")
	}

	return address, email, nil
}
