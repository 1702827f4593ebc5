package shopapi

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"chainshop/internal/chain"
	"chainshop/internal/contract"
	"chainshop/internal/evm"
	"chainshop/internal/referral"
)

type App struct {
	Rpc   *evm.Client
	Rdb   *redis.Client
	Db    *gorm.DB
	Aqc   *asynq.Client
	Aqi   *asynq.Inspector
	Chain *chain.Validator
	Shop  *contract.Gateway
}

type AppConfig struct {
	Settings AppSettings `json:"settings"`
}

type AppSettings struct {
	Commission CommissionSettings `json:"commission"`
	Tiers      TierSettings       `json:"tiers"`
	Limits     SettingLimit       `json:"limits"`
}

type CommissionSettings struct {
	BaseRate float64 `json:"base_rate"`
}

type TierSettings struct {
	Bronze   float64 `json:"bronze"`
	Silver   float64 `json:"silver"`
	Gold     float64 `json:"gold"`
	Platinum float64 `json:"platinum"`
}

// Multipliers flattens the configured tier table into the shape the
// commission math consumes.
func (t TierSettings) Multipliers() map[string]float64 {
	return map[string]float64{
		referral.TierBronze:   t.Bronze,
		referral.TierSilver:   t.Silver,
		referral.TierGold:     t.Gold,
		referral.TierPlatinum: t.Platinum,
	}
}

type SettingLimit struct {
	PayoutMin       float64 `json:"payout_min"`
	PayoutMax       float64 `json:"payout_max"`
	RecentPurchases uint64  `json:"recent_purchases"`
}

var (
	DefaultAppConfig *AppConfig
	CurrentAppConfig *AppConfig
)

func Init() *App {
	loadEnv()
	redisClient := setupRedis()
	db := setupDb()
	asynqClient := setupAsynqClient()
	asynqInspector := setupAsynqInspector()
	client := evm.New(os.Getenv("RPC_URL"))
	validator := chain.NewValidator(client, chain.RequiredChainId)
	gateway := setupGateway(validator)

	DefaultAppConfig = &AppConfig{
		Settings: AppSettings{
			Commission: CommissionSettings{
				BaseRate: 0.1,
			},
			Tiers: TierSettings{
				Bronze:   1.0,
				Silver:   1.2,
				Gold:     1.5,
				Platinum: 2.0,
			},
			Limits: SettingLimit{
				PayoutMin:       0.001,
				PayoutMax:       100,
				RecentPurchases: 10,
			},
		},
	}

	app := &App{
		Rpc:   client,
		Rdb:   redisClient,
		Db:    db,
		Aqc:   asynqClient,
		Aqi:   asynqInspector,
		Chain: validator,
		Shop:  gateway,
	}
	isSet := false
	appConfigRaw, _ := app.Rdb.Get(context.Background(), "app_config").Result()
	if len(appConfigRaw) > 0 {
		err := json.Unmarshal([]byte(appConfigRaw), &CurrentAppConfig)
		if err != nil {
		} else {
			isSet = true
		}
	}
	if !isSet {
		CurrentAppConfig = DefaultAppConfig
		currentConfig, _ := json.Marshal(DefaultAppConfig)
		app.Rdb.Set(context.Background(), "app_config", currentConfig, 0)
	}
	return app
}

// AppWorker is the payout process: consumes commission tasks instead of
// serving HTTP.
type AppWorker struct {
	Rpc *evm.Client
	Rdb *redis.Client
	Db  *gorm.DB
	Aqs *asynq.Server
}

func InitWorker() *AppWorker {
	loadEnv()
	redisClient := setupRedis()
	db := setupDb()
	asynqServer := setupAsynqServer()
	client := evm.New(os.Getenv("RPC_URL"))

	app := &AppWorker{
		Rpc: client,
		Rdb: redisClient,
		Db:  db,
		Aqs: asynqServer,
	}
	if CurrentAppConfig == nil {
		appConfigRaw, _ := app.Rdb.Get(context.Background(), "app_config").Result()
		if len(appConfigRaw) > 0 {
			_ = json.Unmarshal([]byte(appConfigRaw), &CurrentAppConfig)
		}
	}
	return app
}

func setupRedis() *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	return redisClient
}

func setupDb() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		panic("failed to connect to the db")
	}
	err = db.AutoMigrate(
		&User{},
		&RefRelation{},
		&CommissionTx{},
	)
	if err != nil {
		panic("failed to run migrations")
	}

	return db
}

// setupGateway binds the shop contract with the validator pinned to the
// required chain. The API process always talks to the right network, so the
// validator is observed as connected up front.
func setupGateway(validator *chain.Validator) *contract.Gateway {
	validator.Observe(true, chain.RequiredChainId)
	binding, err := contract.NewWeb3Binding(
		os.Getenv("RPC_URL"),
		os.Getenv("SHOP_ADMIN_KEY"),
		os.Getenv("SHOP_CONTRACT_ADDRESS"),
		chain.RequiredChainId,
	)
	if err != nil {
		panic("failed to bind the shop contract")
	}
	return contract.NewGateway(binding, validator)
}

func setupAsynqClient() *asynq.Client {
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return asynqClient
}

func setupAsynqInspector() *asynq.Inspector {
	asynqInspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return asynqInspector
}

func setupAsynqServer() *asynq.Server {
	concurency, err := strconv.Atoi(os.Getenv("PAYOUT_SCALE"))
	if err != nil {
		concurency = 10
	}
	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		asynq.Config{
			Concurrency: concurency,
			Queues: map[string]int{
				"commissions": 1,
			},
		},
	)
	return asynqServer
}

func loadEnv() {
	env := os.Getenv("APP_ENV")
	if "" == env {
		env = "development"
	}

	godotenv.Load(".env." + env + ".local")

	if "test" != env {
		godotenv.Load(".env.local")
	}
	godotenv.Load(".env." + env)
	godotenv.Load()
}
