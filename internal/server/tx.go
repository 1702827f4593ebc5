package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"chainshop/internal/app"
	"chainshop/internal/evm"
	"chainshop/internal/referral"
	"chainshop/internal/shopapi"
	"chainshop/internal/tasks"
)

const purchaseEventAbi = `[{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"buyer","type":"address"},{"indexed":false,"internalType":"uint256","name":"purchaseId","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"productId","type":"uint256"},{"indexed":false,"internalType":"string","name":"productName","type":"string"},{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"},{"indexed":false,"internalType":"address","name":"referrer","type":"address"},{"indexed":false,"internalType":"uint256","name":"commission","type":"uint256"}],"name":"ProductPurchased","type":"event"}]`

func getCurrentBlockNumber(client *ethclient.Client) (uint64, error) {
	header, err := client.HeaderByNumber(context.Background(), nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// WatchInit runs the purchase watcher process: it tails ProductPurchased
// events from the shop contract and records the matching commissions, so
// purchases made outside this backend still accrue. It also refreshes the
// cached shop stats the API serves.
func WatchInit() {
	App = shopapi.Init()
	go purchaseWatchHandle(App)
	app.DoEvery(30*time.Second, func(t time.Time) {
		refreshShopStatsCache(App)
	})
}

func refreshShopStatsCache(a *shopapi.App) {
	stats, err := a.Shop.GetStats()
	if err != nil {
		fmt.Println("[[Stats Cache]]", app.CurrentMessageTime(), "refresh failed:", err)
		return
	}
	balance, err := a.Shop.GetContractBalance()
	if err != nil {
		fmt.Println("[[Stats Cache]]", app.CurrentMessageTime(), "refresh failed:", err)
		return
	}
	payload, err := json.Marshal(gin.H{
		"stats":            stats,
		"contract_balance": evm.WeiToEther(balance),
	})
	if err != nil {
		return
	}
	a.Rdb.Set(context.Background(), "shop_stats", payload, 2*time.Minute)
}

func purchaseWatchHandle(app *shopapi.App) {
	nodeUrl := os.Getenv("RPC_WSS")
	if nodeUrl == "" {
		nodeUrl = os.Getenv("RPC_URL")
	}
	web3Conn, err := ethclient.Dial(nodeUrl)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	defer web3Conn.Close()
	fmt.Println("[[Purchase Watch]] Waiting for events...")
	subscribeToPurchaseEvents(app, web3Conn)
}

func subscribeToPurchaseEvents(app *shopapi.App, web3Conn *ethclient.Client) {
	fromBlock, err := getCurrentBlockNumber(web3Conn)
	if err != nil {
		fmt.Println("Block number error")
		fmt.Println(err.Error())
		return
	}
	fromBlock -= 20
	addr := common.HexToAddress(os.Getenv("SHOP_CONTRACT_ADDRESS"))
	contractAbi, err := abi.JSON(strings.NewReader(purchaseEventAbi))
	if err != nil {
		fmt.Println("ABI reader error")
		fmt.Println(err.Error())
		return
	}
	eventSignature := contractAbi.Events["ProductPurchased"].ID.Hex()
	for {
		query := ethereum.FilterQuery{
			Addresses: []common.Address{addr},
			FromBlock: new(big.Int).SetUint64(fromBlock),
		}
		logs, err := web3Conn.FilterLogs(context.Background(), query)
		if err != nil {
			fmt.Println("Logs reading error")
			fmt.Println(err.Error())
			time.Sleep(30 * time.Second)
			continue
		}
		for _, vLog := range logs {
			event := struct {
				PurchaseId  *big.Int
				ProductId   *big.Int
				ProductName string
				Amount      *big.Int
				Referrer    common.Address
				Commission  *big.Int
			}{}
			err = contractAbi.UnpackIntoInterface(&event, "ProductPurchased", vLog.Data)
			if err != nil {
				fmt.Println("ABI reader error")
				fmt.Println(err.Error())
				time.Sleep(30 * time.Second)
				continue
			}
			if len(vLog.Topics) != 2 {
				fmt.Println("Unexpected number of topics in log")
				time.Sleep(10 * time.Second)
				continue
			}
			if vLog.Topics[0].Hex() != eventSignature {
				continue
			}
			buyer := common.HexToAddress(vLog.Topics[1].Hex())
			res := handlePurchaseEvent(app, vLog, buyer, event.ProductId, event.ProductName, event.Amount)
			if res {
				fromBlock = vLog.BlockNumber
			}
		}
		time.Sleep(5 * time.Second)
	}
}

// handlePurchaseEvent records one purchase-driven commission. Dedupes by the
// purchase transaction hash, so replays and restarts are safe.
func handlePurchaseEvent(app *shopapi.App, log types.Log, buyer common.Address, productId *big.Int, productName string, amount *big.Int) (result bool) {
	result = true
	var txDouble shopapi.CommissionTx
	res := app.Db.Where(
		"tx_hash = ?",
		log.TxHash.Hex(),
	).First(&txDouble)
	if res.RowsAffected > 0 {
		return
	}
	amountTx := evm.WeiToEther(amount)
	fmt.Println("Amount from chain:", amount, "Amount to DB:", amountTx)
	if amountTx <= 0 {
		result = false
		return
	}
	var referee shopapi.User
	res = app.Db.Where(
		"address <> '' AND address IS NOT NULL AND address = ?",
		buyer.Hex(),
	).First(&referee)
	if res.RowsAffected != 1 || referee.Upline == 0 {
		// Organic purchase, nothing to accrue
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
		result = false
		return
	}
	settings := shopapi.CurrentAppConfig.Settings
	rate := settings.Commission.BaseRate
	base := amountTx * rate
	total := base + referral.BonusCommissionIn(settings.Tiers.Multipliers(), base, referrer.MembershipTier)
	tx := app.Db.Begin()
	defer func() {
		tx.Rollback()
	}()
	commission := shopapi.CommissionTx{
		ReferrerId:       referrer.Id,
		RefereeId:        referee.Id,
		ReferrerAddress:  referrer.Address,
		PurchaseAmount:   amountTx,
		CommissionAmount: total,
		CommissionRate:   rate,
		TxHash:           log.TxHash.Hex(),
		Status:           string(referral.StatusPending),
		ProductId:        uint(productId.Uint64()),
		ProductName:      productName,
	}
	res = tx.Create(&commission)
	if res.Error != nil {
		result = false
		return
	}
	var relation shopapi.RefRelation
	res = tx.Where(
		"referrer_id = ? AND referee_id = ?",
		referrer.Id,
		referee.Id,
	).First(&relation)
	if res.RowsAffected == 1 {
		relation.TotalPurchases += amountTx
		relation.TotalCommissions += total
		relation.IsActive = true
		res = tx.Save(&relation)
		if res.Error != nil {
			result = false
			return
		}
	}
	tx.Commit()
	task, err := tasks.NewCommissionProcessTask(commission.Id)
	if err == nil {
		_, err = app.Aqc.Enqueue(task)
	}
	if err != nil {
		fmt.Println("[[Purchase Watch]] payout enqueue failed:", err)
	}
	cpUrl := os.Getenv("CP_URL")
	msg := fmt.Sprintf(
		`PURCHASE ON CHAIN [Transaction: %s](%s%s)
[Referrer: %d](%s/users/%d)
Amount: %s
Commission: %s
Referrer Downline: %v`,
		commission.TxHash,
		shopapi.EscapeMarkdownV2("https://testnet.bscscan.com/tx/"),
		commission.TxHash,
		referrer.Id,
		cpUrl,
		referrer.Id,
		shopapi.EscapeMarkdownV2(fmt.Sprintf("%f", amountTx)),
		shopapi.EscapeMarkdownV2(fmt.Sprintf("%f", total)),
		referrer.RefCounter,
	)
	fmt.Println(shopapi.SendTelegramMessage(msg, "finance"))
	notification, _ := json.Marshal(shopapi.WsResponseData{
		Target: shopapi.MessageTargetNotification,
		User:   referrer.Data(),
		Data: shopapi.NotificationData{
			Id:      rand.Intn(99999),
			Style:   shopapi.MessageStyleSuccess,
			Type:    shopapi.MessageTypeCommissionEarned,
			Message: fmt.Sprintf("Referral purchase confirmed, %.4f BNB commission queued for payout.", total),
			TxHash:  commission.TxHash,
			Amount:  total,
		},
		Config: *shopapi.CurrentAppConfig,
	})
	_ = app.Rdb.Publish(context.Background(), fmt.Sprintf("notification_ch@%d", referrer.Id), notification).Err()
	jsonData := shopapi.SyncUserStats(app.Rdb, app.Db, app.Shop, referrer)
	if jsonData != nil {
		app.Rdb.Publish(context.Background(), fmt.Sprintf("notification_ch@%d", referrer.Id), jsonData)
	}
	return result
}
