package shopapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"chainshop/internal/contract"
	"chainshop/internal/referral"
	"chainshop/internal/telegram"
)

const (
	MessageTargetSync         = "sync"
	MessageTargetNotification = "notify"
	MessageTargetAlert        = "alert"

	MessageStyleSuccess = "success"
	MessageStyleWarning = "warning"
	MessageStyleError   = "error"
	MessageStyleInfo    = "info"

	MessageTypeCustom            = "custom"
	MessageTypePurchaseConfirmed = "purchase_confirmed"
	MessageTypeCommissionEarned  = "commission_earned"
	MessageTypeCommissionPaid    = "commission_paid"
	MessageTypeDrawExecuted      = "draw_executed"
)

type WsResponseData struct {
	Target        string               `json:"target"` // Websocket message type: 'notify', 'alert', 'sync'
	User          UserData             `json:"user"`
	ReferralStats referral.MergedStats `json:"referral_stats"`
	Data          NotificationData     `json:"data"`
	Config        AppConfig            `json:"app_config"`
}

type NotificationData struct {
	Id      int     `json:"id"`
	Style   string  `json:"style"`   // Target component style: 'success', 'warning', 'error', 'info'
	Type    string  `json:"type"`    // Notification type, see MessageType constants
	Message string  `json:"message"`
	TxHash  string  `json:"tx_hash"`
	Amount  float64 `json:"amount"` // Purchase or commission amount in BNB
}

func EscapeMarkdownV2(text string) string {
	specialChars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	for _, char := range specialChars {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

func SendTelegramMessage(msg string, chat string) error {
	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		err := errors.New("TELEGRAM_TOKEN is not set")
		return err
	}
	var chatId string
	switch chat {
	case "signup":
		chatId = os.Getenv("SIGNUP_CHAT_ID")
		if chatId == "" {
			err := errors.New("SIGNUP CHAT_ID is not set")
			return err
		}
	case "finance":
		chatId = os.Getenv("FINANCE_CHAT_ID")
		if chatId == "" {
			err := errors.New("FINANCE CHAT_ID is not set")
			return err
		}
	default:
		chatId = os.Getenv("DEFAULT_CHAT_ID")
		if chatId == "" {
			err := errors.New("DEFAULT CHAT_ID is not set")
			return err
		}
	}
	chatIdInt, err := strconv.Atoi(chatId)
	if err != nil {
		return err
	}
	id := int64(chatIdInt)
	bot, err := telegram.NewBot(token)
	if err != nil {
		return err
	}
	// Send a message
	_, err = bot.Api.SendMessage(id, msg, &gotgbot.SendMessageOpts{
		ParseMode: "MarkdownV2",
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{
			IsDisabled: true,
		},
	})
	if err != nil {
		return err
	}
	return nil
}

func WaitForAsynqTaskResult(ctx context.Context, i *asynq.Inspector, queue, taskID string) (*asynq.TaskInfo, error) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			taskInfo, err := i.GetTaskInfo(queue, taskID)
			if err != nil {
				return nil, err
			}
			if taskInfo.CompletedAt.IsZero() {
				continue
			}
			return taskInfo, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("context closed")
		}
	}
}

func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// SyncUserStats builds the ws sync payload: profile plus the merged referral
// aggregate. The contract counters go in side by side with the backend ones;
// a failed contract read leaves them zeroed with ContractVerified false.
func SyncUserStats(rdb *redis.Client, db *gorm.DB, shop *contract.Gateway, user User) (jsonData []byte) {
	stats := GetRefStats(db, user.Address)
	var info *contract.UserInfo
	if shop != nil && user.Address != "" {
		// Cached contract view first, live call on a miss
		cacheKey := fmt.Sprintf("contract_user@%s", user.Address)
		cached, _ := rdb.Get(context.Background(), cacheKey).Result()
		if len(cached) > 0 {
			var cachedInfo contract.UserInfo
			if err := json.Unmarshal([]byte(cached), &cachedInfo); err == nil {
				info = &cachedInfo
			}
		}
		if info == nil {
			if fresh, err := shop.GetUserInfo(user.Address); err == nil {
				info = &fresh
				if raw, err := json.Marshal(fresh); err == nil {
					rdb.Set(context.Background(), cacheKey, raw, 30*time.Second)
				}
			}
		}
	}
	data := WsResponseData{
		Target:        MessageTargetSync,
		Config:        *CurrentAppConfig,
		User:          user.Data(),
		ReferralStats: referral.MergeContract(stats, info),
	}
	var err error
	jsonData, err = json.Marshal(data)
	if err != nil {
		return
	}
	return
}
