package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeCommissionProcess = "commission:process"

	QueueCommissions = "commissions"
)

type CommissionProcessPayload struct {
	CommissionId uint `json:"commission_id"`
}

// CommissionTaskId is the stable queue id for a commission row, so the payout
// status of a row can be looked up through the inspector.
func CommissionTaskId(commissionId uint) string {
	return fmt.Sprintf("commission:%d", commissionId)
}

// NewCommissionProcessTask queues the payout of a pending commission row.
// Completed tasks are retained for an hour so status lookups still resolve.
func NewCommissionProcessTask(commissionId uint) (*asynq.Task, error) {
	payload, err := json.Marshal(CommissionProcessPayload{CommissionId: commissionId})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TypeCommissionProcess,
		payload,
		asynq.Queue(QueueCommissions),
		asynq.MaxRetry(3),
		asynq.TaskID(CommissionTaskId(commissionId)),
		asynq.Retention(time.Hour),
	), nil
}
