package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"

	"github.com/hibiken/asynq"
	"gorm.io/gorm/clause"

	"chainshop/internal/app"
	"chainshop/internal/chain"
	"chainshop/internal/referral"
	"chainshop/internal/shopapi"
	"chainshop/internal/tasks"
)

// PayoutProcessor drains the commissions queue: each task pays one pending
// commission out to the referrer's wallet. Notifications run on the side
// pool so a slow telegram call never holds a payout slot.
type PayoutProcessor struct {
	app  *shopapi.AppWorker
	pool *Pool
}

func PayoutInit() {
	app := shopapi.InitWorker()
	if _, err := app.Rpc.Connect(os.Getenv("PAYOUT_KEY"), chain.RequiredChainId); err != nil {
		log.Fatal("Failed to connect payout wallet: ", err)
	}
	speed, err := strconv.Atoi(os.Getenv("NOTIFY_POOL_SPEED"))
	if err != nil {
		speed = 4
	}
	processor := &PayoutProcessor{
		app:  app,
		pool: NewPool(speed, 64),
	}
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeCommissionProcess, processor.HandleCommissionProcess)
	fmt.Println("[ ChainShop Payout Worker is up ]")
	if err := app.Aqs.Run(mux); err != nil {
		log.Fatal("Failed to run payout worker: ", err)
	}
}

func (p *PayoutProcessor) HandleCommissionProcess(ctx context.Context, t *asynq.Task) error {
	var payload tasks.CommissionProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	var commission shopapi.CommissionTx
	res := p.app.Db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(
			"id = ?",
			payload.CommissionId,
		).First(&commission)
	if res.RowsAffected != 1 {
		return fmt.Errorf("commission %d not found", payload.CommissionId)
	}
	if referral.CommissionStatus(commission.Status).Terminal() {
		// Already settled, retry delivered a duplicate
		return nil
	}
	if commission.ReferrerAddress == "" {
		return p.fail(ctx, commission, "referrer has no wallet linked")
	}
	limits := shopapi.CurrentAppConfig.Settings.Limits
	if commission.CommissionAmount < limits.PayoutMin {
		return p.fail(ctx, commission, "commission below payout minimum")
	}
	if commission.CommissionAmount > limits.PayoutMax {
		return p.fail(ctx, commission, "commission above payout maximum")
	}
	// Floor the amount so float noise never pays out more than accrued.
	payoutHash, err := p.app.Rpc.SendTransaction(commission.ReferrerAddress, app.RoundCost(commission.CommissionAmount, 8))
	if err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			return p.fail(ctx, commission, err.Error())
		}
		return fmt.Errorf("payout send failed: %w", err)
	}
	commission.Status = string(referral.StatusCompleted)
	commission.PayoutHash = payoutHash
	res = p.app.Db.Save(&commission)
	if res.Error != nil {
		return res.Error
	}
	p.pool.Exec(&payoutNotice{
		app:        p.app,
		commission: commission,
		style:      shopapi.MessageStyleSuccess,
		message:    fmt.Sprintf("Commission of %.4f BNB paid out to your wallet.", commission.CommissionAmount),
	})
	return nil
}

// fail marks the commission terminally failed. The row stays for the ledger;
// nothing is deleted.
func (p *PayoutProcessor) fail(_ context.Context, commission shopapi.CommissionTx, reason string) error {
	commission.Status = string(referral.StatusFailed)
	res := p.app.Db.Save(&commission)
	if res.Error != nil {
		return res.Error
	}
	fmt.Println("[[Payout]] commission", commission.Id, "failed:", reason)
	p.pool.Exec(&payoutNotice{
		app:        p.app,
		commission: commission,
		style:      shopapi.MessageStyleError,
		message:    fmt.Sprintf("Commission payout failed: %s", reason),
	})
	return nil
}

type payoutNotice struct {
	app        *shopapi.AppWorker
	commission shopapi.CommissionTx
	style      string
	message    string
}

func (n *payoutNotice) Execute() {
	var referrer shopapi.User
	res := n.app.Db.Where(
		"id = ?",
		n.commission.ReferrerId,
	).First(&referrer)
	if res.RowsAffected != 1 {
		return
	}
	notification, _ := json.Marshal(shopapi.WsResponseData{
		Target: shopapi.MessageTargetNotification,
		User:   referrer.Data(),
		Data: shopapi.NotificationData{
			Id:      rand.Intn(99999),
			Style:   n.style,
			Type:    shopapi.MessageTypeCommissionPaid,
			Message: n.message,
			TxHash:  n.commission.PayoutHash,
			Amount:  n.commission.CommissionAmount,
		},
		Config: *shopapi.CurrentAppConfig,
	})
	_ = n.app.Rdb.Publish(context.Background(), fmt.Sprintf("notification_ch@%d", referrer.Id), notification).Err()
	cpUrl := os.Getenv("CP_URL")
	msg := fmt.Sprintf(
		`PAYOUT %s [Referrer: %d](%s/users/%d)
Amount: %s
Status: %s`,
		shopapi.EscapeMarkdownV2(n.commission.PayoutHash),
		referrer.Id,
		cpUrl,
		referrer.Id,
		shopapi.EscapeMarkdownV2(fmt.Sprintf("%f", n.commission.CommissionAmount)),
		shopapi.EscapeMarkdownV2(n.commission.Status),
	)
	fmt.Println(shopapi.SendTelegramMessage(msg, "finance"))
}
