package api

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"chainshop/internal/evm"
	"chainshop/internal/referral"
	"chainshop/internal/shopapi"
	"chainshop/internal/tasks"
)

type registerReferralParams struct {
	ReferralCode string `json:"referralCode" binding:"required" validate:"required,max=8"`
	Wallet       string `json:"wallet" binding:"required" validate:"required,max=42"`
}

type commissionParams struct {
	RefereeWallet  string  `json:"refereeWallet" binding:"required" validate:"required,max=42"`
	PurchaseAmount float64 `json:"purchaseAmount" binding:"required"`
	TxHash         string  `json:"txHash" binding:"required" validate:"required,max=66"`
	ProductId      uint    `json:"productId"`
	ProductName    string  `json:"productName" validate:"max=150"`
}

// GetReferrals lists the relationships where the wallet is the referrer.
func GetReferrals(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	wallet := c.Param("wallet")
	if !evm.IsValidAddress(wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid wallet address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"referrals": shopapi.GetRelationships(app.Db, wallet),
	})
}

func GetCommissionHistory(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	wallet := c.Param("wallet")
	if !evm.IsValidAddress(wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid wallet address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"commissions": shopapi.GetCommissions(app.Db, wallet),
	})
}

func GetReferralStats(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	wallet := c.Param("wallet")
	if !evm.IsValidAddress(wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid wallet address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   shopapi.GetRefStats(app.Db, wallet),
	})
}

// RegisterReferral links an already-registered wallet to the referrer behind
// the code. Used when the code arrives after signup (e.g. from an on-chain
// registration).
func RegisterReferral(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	var params registerReferralParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if !referral.IsValidReferralCode(params.ReferralCode) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid referral code"})
		return
	}
	if !evm.IsValidAddress(params.Wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid wallet address"})
		return
	}
	var referrer shopapi.User
	res := app.Db.Where(
		"referral_code = ?",
		params.ReferralCode,
	).First(&referrer)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "referral code not found"})
		return
	}
	var referee shopapi.User
	res = app.Db.Where(
		"address NOT IN ('') AND address = ?",
		params.Wallet,
	).First(&referee)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "wallet not registered"})
		return
	}
	if referrer.Id == referee.Id {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "self-referral is not allowed"})
		return
	}
	var double shopapi.RefRelation
	res = app.Db.Where(
		"referrer_id = ? AND referee_id = ?",
		referrer.Id,
		referee.Id,
	).First(&double)
	if res.RowsAffected == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "referral already registered"})
		return
	}
	createRelation(app, referrer, referee)
	if referee.Upline == 0 {
		referee.Upline = referrer.Id
		_ = app.Db.Save(&referee)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "referral registered",
	})
}

// RecordCommission writes a pending commission row for a confirmed purchase
// and queues its payout. Tier bonus is computed server-side from the
// referrer's membership tier.
func RecordCommission(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	var params commissionParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if params.PurchaseAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "purchase amount must be positive"})
		return
	}
	if !evm.IsValidAddress(params.RefereeWallet) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid wallet address"})
		return
	}
	var double shopapi.CommissionTx
	res := app.Db.Where(
		"tx_hash = ?",
		params.TxHash,
	).First(&double)
	if res.RowsAffected > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "commission already recorded for this transaction"})
		return
	}
	var referee shopapi.User
	res = app.Db.Where(
		"address NOT IN ('') AND address = ?",
		params.RefereeWallet,
	).First(&referee)
	if res.RowsAffected != 1 || referee.Upline == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "no referrer on record for this wallet"})
		return
	}
	var referrer shopapi.User
	res = app.Db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(
			"id = ?",
			referee.Upline,
		).First(&referrer)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "referrer not found"})
		return
	}
	settings := shopapi.CurrentAppConfig.Settings
	rate := settings.Commission.BaseRate
	base := params.PurchaseAmount * rate
	total := base + referral.BonusCommissionIn(settings.Tiers.Multipliers(), base, referrer.MembershipTier)
	commission := shopapi.CommissionTx{
		ReferrerId:       referrer.Id,
		RefereeId:        referee.Id,
		ReferrerAddress:  referrer.Address,
		PurchaseAmount:   params.PurchaseAmount,
		CommissionAmount: total,
		CommissionRate:   rate,
		TxHash:           params.TxHash,
		Status:           string(referral.StatusPending),
		ProductId:        params.ProductId,
		ProductName:      params.ProductName,
	}
	res = app.Db.Create(&commission)
	if res.Error != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": res.Error.Error()})
		return
	}
	var relation shopapi.RefRelation
	res = app.Db.Where(
		"referrer_id = ? AND referee_id = ?",
		referrer.Id,
		referee.Id,
	).First(&relation)
	if res.RowsAffected == 1 {
		relation.TotalPurchases += params.PurchaseAmount
		relation.TotalCommissions += total
		relation.IsActive = true
		_ = app.Db.Save(&relation)
	}
	task, err := tasks.NewCommissionProcessTask(commission.Id)
	if err == nil {
		_, err = app.Aqc.Enqueue(task)
	}
	if err != nil {
		fmt.Println("[Commission] payout enqueue failed:", err)
	}
	cpUrl := os.Getenv("CP_URL")
	msg := fmt.Sprintf(
		`COMMISSION RECORDED [Transaction: %s](%s%s)
[Referrer: %d](%s/users/%d)
Purchase: %s BNB
Commission: %s BNB
Tier: %s`,
		commission.TxHash,
		shopapi.EscapeMarkdownV2("https://testnet.bscscan.com/tx/"),
		commission.TxHash,
		referrer.Id,
		cpUrl,
		referrer.Id,
		shopapi.EscapeMarkdownV2(fmt.Sprintf("%f", params.PurchaseAmount)),
		shopapi.EscapeMarkdownV2(fmt.Sprintf("%f", total)),
		referrer.MembershipTier,
	)
	fmt.Println(shopapi.SendTelegramMessage(msg, "finance"))
	notification, _ := json.Marshal(shopapi.WsResponseData{
		Target: shopapi.MessageTargetNotification,
		User:   referrer.Data(),
		Data: shopapi.NotificationData{
			Id:      rand.Intn(99999),
			Style:   shopapi.MessageStyleSuccess,
			Type:    shopapi.MessageTypeCommissionEarned,
			Message: fmt.Sprintf("You earned a %.4f BNB commission from %s's purchase.", total, referee.Name),
			TxHash:  commission.TxHash,
			Amount:  total,
		},
		Config: *shopapi.CurrentAppConfig,
	})
	_ = app.Rdb.Publish(ctx, fmt.Sprintf("notification_ch@%d", referrer.Id), notification).Err()
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "commission recorded",
		"commission": commission.Commission(),
	})
}
