package contract

import "math/big"

// Product is a catalog entry as stored on-chain. Prices are wei.
type Product struct {
	Id        uint64   `json:"id"`
	Name      string   `json:"name"`
	Price     *big.Int `json:"price"`
	Active    bool     `json:"active"`
	TotalSold uint64   `json:"total_sold"`
}

// UserInfo is the on-chain ledger view of a wallet. Read-only to this system;
// it is merged next to backend stats, never summed into them.
type UserInfo struct {
	Wallet           string   `json:"wallet"`
	TotalSpent       *big.Int `json:"total_spent"`
	TotalCommissions *big.Int `json:"total_commissions"`
	PurchaseCount    uint64   `json:"purchase_count"`
	EligibleForDraw  bool     `json:"eligible_for_draw"`
	LastPurchaseTime uint64   `json:"last_purchase_time"`
}

type Purchase struct {
	Id          uint64   `json:"id"`
	ProductId   uint64   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Amount      *big.Int `json:"amount"`
	Buyer       string   `json:"buyer"`
	Referrer    string   `json:"referrer"`
	Commission  *big.Int `json:"commission"`
	Timestamp   uint64   `json:"timestamp"`
}

type DrawWinner struct {
	Winner    string   `json:"winner"`
	Prize     *big.Int `json:"prize"`
	Position  uint64   `json:"position"`
	Round     uint64   `json:"round"`
	Timestamp uint64   `json:"timestamp"`
}

type Stats struct {
	TotalUsers      uint64   `json:"total_users"`
	TotalPurchases  uint64   `json:"total_purchases"`
	TotalProducts   uint64   `json:"total_products"`
	EligibleForDraw uint64   `json:"eligible_for_draw"`
	ContractBalance *big.Int `json:"contract_balance"`
	TotalDraws      uint64   `json:"total_draws"`
}
