package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chainshop/internal/shopapi"
)

func GetBalance(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	address := c.Param("address")

	balance, err := app.Rpc.GetBalance(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})
}

func GetGasPrice(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)

	gasPrice, err := app.Rpc.GetGasPrice()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "gas_price": gasPrice.String()})
}
