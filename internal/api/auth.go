package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/dchest/uniuri"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/spruceid/siwe-go"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"

	"chainshop/internal/api/jwt"
	"chainshop/internal/evm"
	"chainshop/internal/referral"
	"chainshop/internal/shopapi"
)

var ctx = context.Background()

type loginParams struct {
	Email    string `json:"email" binding:"required" validate:"required,max=250"`
	Password string `json:"password" binding:"required" validate:"required,max=100"`
}

type signupParams struct {
	Name         string `json:"name" binding:"required" validate:"required,max=150"`
	Email        string `json:"email" binding:"required" validate:"required,max=250"`
	Password     string `json:"password" binding:"required" validate:"required,min=8,max=100"`
	Wallet       string `json:"wallet" validate:"max=42"`
	ReferralCode string `json:"referralCode" validate:"max=8"`
	Utm          string `json:"utm" validate:"max=500"`
	Ip           string `json:"ip" validate:"max=39"`
	Referer      string `json:"referer" validate:"max=150"`
	Locale       string `json:"locale" validate:"max=5"`
}

type signinParams struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// referralCodeFor derives the code from the wallet when one is linked;
// wallet-less accounts get a random hex slug of the same shape until they
// connect.
func referralCodeFor(wallet string) string {
	if code, err := referral.DeriveReferralCode(wallet); err == nil {
		return code
	}
	return uniuri.NewLenChars(8, []byte("abcdef0123456789"))
}

// Nonce instead of storing the nonce in db for an inexistant user we just put it in some redis that expires
func Nonce(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	address := c.Param("address")

	if !evm.IsValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid address format"})
		return
	}

	nonce := siwe.GenerateNonce()

	err := app.Rdb.Set(ctx, address, nonce, 1*time.Minute).Err()
	if err != nil {
		log.Fatal(err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"nonce":   nonce,
	})
}

// Login Email and password sign in
func Login(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	var loginP loginParams
	if err := c.ShouldBindJSON(&loginP); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	var user shopapi.User
	res := app.Db.Where(
		"email = ?",
		loginP.Email,
	).First(&user)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(loginP.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid email or password"})
		return
	}
	token, err := jwt.GenerateJWT(user.Address, user.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "login successful",
		"token":   token,
		"user":    user.Profile(),
	})
}

// Signup creates an account. A valid referral code links the new user to the
// referrer before the first purchase happens.
func Signup(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	var signupP signupParams
	if err := c.ShouldBindJSON(&signupP); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if signupP.Wallet != "" && !evm.IsValidAddress(signupP.Wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid wallet address"})
		return
	}
	var double shopapi.User
	res := app.Db.Where(
		"email = ?",
		signupP.Email,
	).First(&double)
	if res.RowsAffected == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email already registered"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(signupP.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	upline := uint(0)
	var referrer shopapi.User
	if signupP.ReferralCode != "" && referral.IsValidReferralCode(signupP.ReferralCode) {
		res = app.Db.Where(
			"referral_code = ?",
			signupP.ReferralCode,
		).First(&referrer)
		if res.RowsAffected == 1 {
			upline = referrer.Id
		}
	}
	user := shopapi.User{
		Name:           signupP.Name,
		Email:          signupP.Email,
		Hash:           string(hash),
		Address:        signupP.Wallet,
		ReferralCode:   referralCodeFor(signupP.Wallet),
		MembershipTier: referral.TierBronze,
		Upline:         upline,
		Utm:            signupP.Utm,
		Ip:             signupP.Ip,
		Locale:         signupP.Locale,
		Referer:        signupP.Referer,
	}
	res = app.Db.Create(&user)
	if res.Error != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": res.Error.Error()})
		return
	}
	if upline > 0 {
		fmt.Println("[[New Sign Up]] Referral code:", signupP.ReferralCode)
		createRelation(app, referrer, user)
	}
	cpUrl := os.Getenv("CP_URL")
	msg := fmt.Sprintf(
		`New Signup [User: %d](%s/users/%d)
[%s](mailto:%s)
Locale: %s
IP: [%s](%s%s)`,
		user.Id,
		cpUrl,
		user.Id,
		user.Email,
		user.Email,
		shopapi.EscapeMarkdownV2(user.Locale),
		shopapi.EscapeMarkdownV2(user.Ip),
		"https://iplocation.io/ip/",
		user.Ip,
	)
	if user.Upline > 0 {
		msg = fmt.Sprintf(
			`%s
Invited by [User: %d](%s/users/%d)`,
			msg,
			user.Upline,
			cpUrl,
			user.Upline,
		)
	}
	_ = shopapi.SendTelegramMessage(msg, "signup")
	token, err := jwt.GenerateJWT(user.Address, user.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "signup successful",
		"token":   token,
		"user":    user.Profile(),
	})
}

// Signin Sign in with SIWE, linking the wallet to an existing account or
// creating a wallet-only one.
func Signin(c *gin.Context) {
	app := c.MustGet("app").(*shopapi.App)
	var signinP signinParams
	if err := c.ShouldBindJSON(&signinP); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	// parse message to siwe
	siweMessage, err := siwe.ParseMessage(signinP.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	// get the nonce in cache for address
	addr := siweMessage.GetAddress().String()
	nonce, err := app.Rdb.Get(ctx, addr).Result()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	// domain will be cors restricted its fine to just use the one from the message
	domain := siweMessage.GetDomain()
	// verify signature
	publicKey, err := siweMessage.Verify(signinP.Signature, &domain, &nonce, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	addr = crypto.PubkeyToAddress(*publicKey).Hex()
	if addr == "" {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "signature verification failed"})
		return
	}
	var user shopapi.User
	res := app.Db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(
			"address NOT IN ('') AND address = ?",
			addr,
		).First(&user)
	if res.RowsAffected != 1 {
		// wallet-only account
		user = shopapi.User{
			Address:        addr,
			ReferralCode:   referralCodeFor(addr),
			MembershipTier: referral.TierBronze,
		}
		res = app.Db.Create(&user)
		if res.Error != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": res.Error.Error()})
			return
		}
	} else if derived, err := referral.DeriveReferralCode(addr); err == nil && user.ReferralCode != derived {
		// The random slug from a wallet-less signup gets replaced once the
		// wallet is known.
		user.ReferralCode = derived
		app.Db.Save(&user)
	}
	token, err := jwt.GenerateJWT(user.Address, user.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "wallet login successful",
		"token":   token,
		"user":    user.Profile(),
	})
}

// createRelation records the referrer/referee pair and pushes a ws
// notification to the referrer.
func createRelation(app *shopapi.App, referrer shopapi.User, referee shopapi.User) {
	relation := shopapi.RefRelation{
		ReferrerId:      referrer.Id,
		RefereeId:       referee.Id,
		ReferrerAddress: referrer.Address,
		RefereeAddress:  referee.Address,
		RefereeName:     referee.Name,
		RefereeEmail:    referee.Email,
		IsActive:        false,
	}
	res := app.Db.Create(&relation)
	if res.Error != nil {
		fmt.Println("[Referral] relation create failed:", res.Error)
		return
	}
	referrer.RefCounter++
	_ = app.Db.Save(&referrer)
	notification, _ := json.Marshal(shopapi.WsResponseData{
		Target: shopapi.MessageTargetNotification,
		User:   referrer.Data(),
		Data: shopapi.NotificationData{
			Id:      rand.Intn(99999),
			Style:   shopapi.MessageStyleSuccess,
			Type:    shopapi.MessageTypeCustom,
			Message: fmt.Sprintf("%s joined with your referral link!", referee.Name),
		},
		Config: *shopapi.CurrentAppConfig,
	})
	_ = app.Rdb.Publish(ctx, fmt.Sprintf("notification_ch@%d", referrer.Id), notification).Err()
}
