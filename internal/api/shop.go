package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chainshop/internal/evm"
	"chainshop/internal/shopapi"
)

type addProductParams struct {
	Name  string  `json:"name" binding:"required" validate:"required,max=150"`
	Price float64 `json:"price" binding:"required"` // in BNB
}

type updateProductParams struct {
	Id     uint64  `json:"id" binding:"required"`
	Name   string  `json:"name" binding:"required" validate:"required,max=150"`
	Price  float64 `json:"price" binding:"required"`
	Active bool    `json:"active"`
}

func GetProducts(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	products, err := app.Shop.GetActiveProducts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

func GetAllProducts(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	products, err := app.Shop.GetAllProducts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

func GetShopStats(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	// Watcher-refreshed cache first, live contract reads on a miss
	cached, _ := app.Rdb.Get(context.Background(), "shop_stats").Result()
	if len(cached) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(cached), &payload); err == nil {
			payload["success"] = true
			c.JSON(http.StatusOK, payload)
			return
		}
	}
	stats, err := app.Shop.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	balance, err := app.Shop.GetContractBalance()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"stats":            stats,
		"contract_balance": evm.WeiToEther(balance),
	})
}

func GetRecentPurchases(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	count, err := strconv.ParseUint(c.DefaultQuery("count", "10"), 10, 64)
	if err != nil || count < 1 || count > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid count"})
		return
	}
	purchases, err := app.Shop.GetRecentPurchases(count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purchases": purchases})
}

func GetDrawHistory(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	draws, err := app.Shop.GetDrawHistory()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "draws": draws})
}

func GetLatestDraw(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	winners, err := app.Shop.GetLatestDraw()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "winners": winners})
}

// GetShopUserInfo returns the contract's own view of a wallet: spend,
// accrued commissions, purchase count and draw eligibility.
func GetShopUserInfo(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	wallet := c.Param("wallet")
	if !evm.IsValidAddress(wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid wallet address"})
		return
	}
	info, err := app.Shop.GetUserInfo(wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	eligible, err := app.Shop.IsEligibleForDraw(wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	referrer, _ := app.Shop.GetReferrer(wallet)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"info":     info,
		"eligible": eligible,
		"referrer": referrer,
	})
}

// adminOnly rejects calls from anyone but the configured operator wallet.
func adminOnly(c *gin.Context) bool {
	address, _ := c.Get("address")
	admin := os.Getenv("ADMIN_ADDRESS")
	if admin == "" || address != admin {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "admin access required"})
		return false
	}
	return true
}

func AddProduct(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	if !adminOnly(c) {
		return
	}
	var params addProductParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if params.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "price must be positive"})
		return
	}
	txHash, err := app.Shop.AddProduct(params.Name, evm.EtherToWei(params.Price))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	go watchConfirmation(app, "addProduct", txHash)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "product submitted", "tx_hash": txHash})
}

func UpdateProduct(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	if !adminOnly(c) {
		return
	}
	var params updateProductParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if params.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "price must be positive"})
		return
	}
	txHash, err := app.Shop.UpdateProduct(params.Id, params.Name, evm.EtherToWei(params.Price), params.Active)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	go watchConfirmation(app, "updateProduct", txHash)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "product update submitted", "tx_hash": txHash})
}

func ExecuteLuckyDraw(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	if !adminOnly(c) {
		return
	}
	balance, err := app.Shop.GetContractBalance()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	if balance.Cmp(big.NewInt(0)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "contract balance is empty, nothing to draw"})
		return
	}
	txHash, err := app.Shop.ExecuteLuckyDraw()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	go watchConfirmation(app, "executeLuckyDraw", txHash)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "draw submitted", "tx_hash": txHash})
}

// watchConfirmation waits for the receipt and pings the finance channel once
// mined. Reverts get reported, not swallowed.
func watchConfirmation(app *shopapi.App, op string, txHash string) {
	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	receipt, err := app.Shop.WaitForConfirmation(waitCtx, op, txHash)
	if err != nil {
		fmt.Println("[Shop]", op, "confirmation failed:", err)
		msg := fmt.Sprintf(
			`OPERATION FAILED %s [Transaction: %s](%s%s)`,
			shopapi.EscapeMarkdownV2(op),
			txHash,
			shopapi.EscapeMarkdownV2("https://testnet.bscscan.com/tx/"),
			txHash,
		)
		_ = shopapi.SendTelegramMessage(msg, "finance")
		return
	}
	fmt.Println("[Shop]", op, "confirmed in block", receipt.BlockNumber)
}
