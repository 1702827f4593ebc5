package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"chainshop/internal/api"
	"chainshop/internal/api/middleware"
	"chainshop/internal/shopapi"
)

var App *shopapi.App

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func ApiInit() { // Run Api Server
	// @title ChainShop Backend
	// @version 0.1
	// @description ChainShop Backend: REST API & WebSocket Server
	// @host localhost:8000
	// @BasePath /
	// @schemes http https ws wss
	ConfigLoad()
	App = shopapi.Init()
	router := gin.Default()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	// This makes it so each ip can only make 100 requests per second
	store := ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: redis.NewClient(&redis.Options{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       1,
		}),
		Rate:  time.Second,
		Limit: 100,
	})
	mw := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})
	router.Use(cors.New(cors.Config{
		AllowOrigins:  GlobalConfig.Origins,
		AllowHeaders:  []string{"Origin", "Access-Control-Allow-Origin", "Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		AllowMethods:  []string{"GET, POST, OPTIONS, PUT, DELETE"},
		MaxAge:        24 * time.Hour,
	}))
	router.Use(func(c *gin.Context) {
		c.Set("app", App)
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", mw, wsHandler)
	router.GET("/ws/", mw, wsHandler)
	core := router.Group("/core/")
	{
		core.GET("/gasPrice", mw, api.GetGasPrice)
		core.GET("/gasPrice/", mw, api.GetGasPrice)
		core.GET("/balance/:address", mw, api.GetBalance)
		core.GET("/balance/:address/", mw, api.GetBalance)
	}
	auth := router.Group("/api/auth/")
	{
		auth.GET("/nonce/:address", mw, api.Nonce)
		auth.GET("/nonce/:address/", mw, api.Nonce)
		auth.POST("/signin", mw, api.Signin)
		auth.POST("/signin/", mw, api.Signin)
		auth.POST("/login", mw, api.Login)
		auth.POST("/login/", mw, api.Login)
		auth.POST("/signup", mw, api.Signup)
		auth.POST("/signup/", mw, api.Signup)
	}
	users := router.Group("/api/user/").Use(middleware.Auth())
	{
		users.GET("/profile", mw, api.GetUser)
		users.GET("/profile/", mw, api.GetUser)
		users.GET("/commissions", mw, api.GetCommissionFeed)
		users.GET("/commissions/", mw, api.GetCommissionFeed)
		users.GET("/payout/:id", mw, api.GetPayoutStatus)
		users.GET("/payout/:id/", mw, api.GetPayoutStatus)
	}
	referrals := router.Group("/api/referrals/")
	{
		referrals.GET("/:wallet", mw, api.GetReferrals)
		referrals.GET("/:wallet/", mw, api.GetReferrals)
		referrals.GET("/:wallet/commissions", mw, api.GetCommissionHistory)
		referrals.GET("/:wallet/commissions/", mw, api.GetCommissionHistory)
		referrals.GET("/:wallet/stats", mw, api.GetReferralStats)
		referrals.GET("/:wallet/stats/", mw, api.GetReferralStats)
		referrals.POST("/register", mw, api.RegisterReferral)
		referrals.POST("/register/", mw, api.RegisterReferral)
		referrals.POST("/commission", mw, api.RecordCommission)
		referrals.POST("/commission/", mw, api.RecordCommission)
	}
	shop := router.Group("/api/shop/")
	{
		shop.GET("/products", mw, api.GetProducts)
		shop.GET("/products/", mw, api.GetProducts)
		shop.GET("/products/all", mw, api.GetAllProducts)
		shop.GET("/products/all/", mw, api.GetAllProducts)
		shop.GET("/stats", mw, api.GetShopStats)
		shop.GET("/stats/", mw, api.GetShopStats)
		shop.GET("/purchases", mw, api.GetRecentPurchases)
		shop.GET("/purchases/", mw, api.GetRecentPurchases)
		shop.GET("/draws", mw, api.GetDrawHistory)
		shop.GET("/draws/", mw, api.GetDrawHistory)
		shop.GET("/draws/latest", mw, api.GetLatestDraw)
		shop.GET("/draws/latest/", mw, api.GetLatestDraw)
		shop.GET("/users/:wallet", mw, api.GetShopUserInfo)
		shop.GET("/users/:wallet/", mw, api.GetShopUserInfo)
	}
	admin := router.Group("/api/admin/").Use(middleware.Auth())
	{
		admin.POST("/products", mw, api.AddProduct)
		admin.POST("/products/", mw, api.AddProduct)
		admin.POST("/products/update", mw, api.UpdateProduct)
		admin.POST("/products/update/", mw, api.UpdateProduct)
		admin.POST("/draw", mw, api.ExecuteLuckyDraw)
		admin.POST("/draw/", mw, api.ExecuteLuckyDraw)
	}
	fmt.Println("[ ChainShop Backend is up and listening to " + GlobalConfig.Port + " ]")
	Logger.Info("ChainShop Backend is up and listening to " + GlobalConfig.Port)
	if GlobalConfig.Ssl {
		if err := router.RunTLS(GlobalConfig.Port, GlobalConfig.SslCert, GlobalConfig.SslKey); err != nil {
			log.Fatal("Failed to run ChainShop Backend on "+GlobalConfig.Port+": ", err)
		}
		return
	}
	if err := router.Run(GlobalConfig.Port); err != nil {
		log.Fatal("Failed to run ChainShop Backend on "+GlobalConfig.Port+": ", err)
	}
}

// wsHandler streams sync payloads and notifications to the logged-in user.
// Clients send "sync" to force a refresh; pushed notifications are cached in
// redis until the client acks them.
func wsHandler(c *gin.Context) {
	token := c.DefaultQuery("token", "")
	user := shopapi.User{}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
		return
	}
	address, email, err := api.GetUserFromToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
		return
	}
	app := c.MustGet("app").(*shopapi.App)
	res := app.Db.Where(
		"(address NOT IN ('') AND address = ?) OR (email NOT IN ('') AND email = ?)",
		address,
		email,
	).First(&user)
	if res.RowsAffected != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
		return
	}
	// Upgrade Connection
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to set websocket upgrade: %+v", err)
		return
	}
	defer conn.Close()
	appConfigRaw, _ := app.Rdb.Get(c, "app_config").Result()
	if len(appConfigRaw) > 0 {
		_ = json.Unmarshal([]byte(appConfigRaw), &shopapi.CurrentAppConfig)
	}
	// Set a pong handler to update the connection's last pong time
	lastPong := time.Now()
	conn.SetPongHandler(func(string) error {
		lastPong = time.Now()
		return nil
	})
	pingPeriod := 3 * time.Second
	timeout := 9 * time.Second
	var mu sync.Mutex // Mutex to synchronize writes to the WebSocket connection
	jsonData := shopapi.SyncUserStats(app.Rdb, app.Db, app.Shop, user)
	if jsonData != nil {
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			fmt.Println("Socket: Failed to send data:", err)
			return
		}
	}
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		fmt.Println("Socket: Failed to send ping:", err)
		_ = conn.Close()
		return
	}
	go func() {
		pubsub := app.Rdb.Subscribe(c, fmt.Sprintf("notification_ch@%d", user.Id))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for msg := range ch {
			var msgDecoded shopapi.WsResponseData
			err = json.Unmarshal([]byte(msg.Payload), &msgDecoded)
			if err == nil {
				app.Rdb.Set(context.Background(), fmt.Sprintf("notification_cache@%d:%d", user.Id, msgDecoded.Data.Id), msg.Payload, 1*time.Hour)
			}
			mu.Lock()
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Println("Socket: Failed to send ping:", err)
				mu.Unlock()
				_ = conn.Close()
				return
			}
			mu.Unlock()
		}
	}()
	// Start listening for commands via ws
	go func() {
		defer conn.Close()

		for {
			messageType, p, err := conn.ReadMessage()
			if err != nil {
				log.Println(err)
				return
			}
			switch messageType {
			case websocket.TextMessage:
				message := string(p)
				// Check if the message is an acknowledgment
				var ackMsg struct {
					Type string `json:"type"`
					Id   int    `json:"id"`
				}
				if err := json.Unmarshal([]byte(message), &ackMsg); err == nil {
					if ackMsg.Type == "ack" {
						// Remove the acknowledged message from Redis
						_, err := app.Rdb.Del(context.Background(), fmt.Sprintf("notification_cache@%d:%d", user.Id, ackMsg.Id)).Result()
						if err != nil {
							fmt.Println("failed to delete acknowledged message from Redis:", err)
						}
						continue
					}
				}
				if message == "sync" {
					_ = app.Db.Where(
						"id = ?",
						user.Id,
					).First(&user)
					jsonData := shopapi.SyncUserStats(app.Rdb, app.Db, app.Shop, user)
					if jsonData != nil {
						mu.Lock()
						if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
							fmt.Println("Socket: Failed to send data:", err)
							mu.Unlock()
							return
						}
						mu.Unlock()
					}
				}
			default:
				fmt.Println("Socket: Unhandled message type:", messageType)
			}
		}
	}()
	for {
		// We process all the cached notifications
		iter := app.Rdb.Scan(context.Background(), 0, fmt.Sprintf("notification_cache@%d:*", user.Id), 0).Iterator()
		for iter.Next(context.Background()) {
			lastNotification, _ := app.Rdb.Get(context.Background(), iter.Val()).Result()
			if len(lastNotification) > 0 {
				mu.Lock()
				if err := conn.WriteMessage(websocket.TextMessage, []byte(lastNotification)); err != nil {
					log.Println("Socket: Failed to send data:", err)
					mu.Unlock()
					_ = conn.Close()
					return
				}
				mu.Unlock()
			}
		}
		if time.Since(lastPong) > timeout {
			log.Println("Socket: Client did not respond to ping, closing connection")
		}
		mu.Lock()
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			log.Println("Socket: Failed to send ping:", err)
			mu.Unlock()
			return
		}
		mu.Unlock()
		time.Sleep(pingPeriod)
	}
}
