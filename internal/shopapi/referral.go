package shopapi

import (
	"strconv"
	"time"

	"gorm.io/gorm"
	_ "time/tzdata"

	"chainshop/internal/referral"
)

// RefRelation is a Structure designed to store referral relations
type RefRelation struct {
	CreatedAt        time.Time `json:"created_at"`
	ReferrerId       uint      `json:"referrer_id" gorm:"primaryKey;autoIncrement:false"`
	RefereeId        uint      `json:"referee_id" gorm:"primaryKey;autoIncrement:false"`
	ReferrerAddress  string    `gorm:"index" json:"referrer_address"`
	RefereeAddress   string    `json:"referee_address"`
	RefereeName      string    `json:"referee_name"`
	RefereeEmail     string    `json:"referee_email"`
	TotalPurchases   float64   `json:"total_purchases"`
	TotalCommissions float64   `json:"total_commissions"`
	IsActive         bool      `json:"is_active"`
}

// CommissionTx is one commission accrual. Status mirrors the payout
// lifecycle: pending until the payout transaction confirms, then completed or
// failed.
type CommissionTx struct {
	Id               uint      `json:"id" gorm:"primarykey"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ReferrerId       uint      `gorm:"index" json:"referrer_id"`
	RefereeId        uint      `json:"referee_id"`
	ReferrerAddress  string    `gorm:"index" json:"referrer_address"`
	PurchaseAmount   float64   `json:"purchase_amount"`
	CommissionAmount float64   `json:"commission_amount"`
	CommissionRate   float64   `json:"commission_rate"`
	TxHash           string    `gorm:"index" json:"tx_hash"`
	PayoutHash       string    `json:"payout_hash"`
	Status           string    `gorm:"not null;default:pending" json:"status"`
	ProductId        uint      `json:"product_id"`
	ProductName      string    `json:"product_name"`
}

func (r RefRelation) Relationship() referral.Relationship {
	return referral.Relationship{
		ReferrerId:       strconv.FormatUint(uint64(r.ReferrerId), 10),
		RefereeId:        strconv.FormatUint(uint64(r.RefereeId), 10),
		ReferrerWallet:   r.ReferrerAddress,
		RefereeWallet:    r.RefereeAddress,
		JoinDate:         r.CreatedAt.Format(time.RFC3339),
		TotalPurchases:   r.TotalPurchases,
		TotalCommissions: r.TotalCommissions,
		IsActive:         r.IsActive,
		RefereeName:      r.RefereeName,
		RefereeEmail:     r.RefereeEmail,
	}
}

func (t CommissionTx) Commission() referral.Commission {
	return referral.Commission{
		Id:               strconv.FormatUint(uint64(t.Id), 10),
		ReferrerId:       strconv.FormatUint(uint64(t.ReferrerId), 10),
		RefereeId:        strconv.FormatUint(uint64(t.RefereeId), 10),
		PurchaseAmount:   t.PurchaseAmount,
		CommissionAmount: t.CommissionAmount,
		CommissionRate:   t.CommissionRate,
		TransactionHash:  t.TxHash,
		Date:             t.CreatedAt.Format(time.RFC3339),
		Status:           referral.CommissionStatus(t.Status),
		ProductId:        strconv.FormatUint(uint64(t.ProductId), 10),
		ProductName:      t.ProductName,
	}
}

func GetRelationships(db *gorm.DB, address string) []referral.Relationship {
	var rows []RefRelation
	db.Where("referrer_address = ?", address).
		Order("created_at DESC").
		Find(&rows)
	relationships := []referral.Relationship{}
	for _, row := range rows {
		relationships = append(relationships, row.Relationship())
	}
	return relationships
}

func GetCommissions(db *gorm.DB, address string) []referral.Commission {
	var rows []CommissionTx
	db.Where("referrer_address = ?", address).
		Order("created_at DESC").
		Find(&rows)
	commissions := []referral.Commission{}
	for _, row := range rows {
		commissions = append(commissions, row.Commission())
	}
	return commissions
}

// GetRefStats recomputes the aggregate from raw rows on every call.
func GetRefStats(db *gorm.DB, address string) referral.Stats {
	return referral.ComputeStats(
		GetRelationships(db, address),
		GetCommissions(db, address),
		time.Now(),
	)
}
