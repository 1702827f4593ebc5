package referral

import "time"

// CommissionStatus lifecycle: pending -> completed (payout confirmed) or
// pending -> failed (payout errored). Terminal once completed or failed.
type CommissionStatus string

const (
	StatusPending   CommissionStatus = "pending"
	StatusCompleted CommissionStatus = "completed"
	StatusFailed    CommissionStatus = "failed"
)

func (s CommissionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Relationship is one (referrer, referee) pair. Created server-side on
// signup-with-code, updated as the referee buys, deactivated but never
// deleted.
type Relationship struct {
	ReferrerId       string  `json:"referrerId"`
	RefereeId        string  `json:"refereeId"`
	ReferrerWallet   string  `json:"referrerWallet"`
	RefereeWallet    string  `json:"refereeWallet"`
	JoinDate         string  `json:"joinDate"`
	TotalPurchases   float64 `json:"totalPurchases"`
	TotalCommissions float64 `json:"totalCommissions"`
	IsActive         bool    `json:"isActive"`
	RefereeName      string  `json:"refereeName,omitempty"`
	RefereeEmail     string  `json:"refereeEmail,omitempty"`
}

type Commission struct {
	Id               string           `json:"id"`
	ReferrerId       string           `json:"referrerId"`
	RefereeId        string           `json:"refereeId"`
	RefereeWallet    string           `json:"refereeWallet,omitempty"`
	PurchaseAmount   float64          `json:"purchaseAmount"`
	CommissionAmount float64          `json:"commissionAmount"`
	CommissionRate   float64          `json:"commissionRate"`
	TransactionHash  string           `json:"transactionHash"`
	Date             string           `json:"date"`
	Status           CommissionStatus `json:"status"`
	ProductId        string           `json:"productId,omitempty"`
	ProductName      string           `json:"productName,omitempty"`
}

type TopPerformer struct {
	Wallet      string  `json:"wallet"`
	Name        string  `json:"name"`
	Commissions float64 `json:"commissions"`
	Referrals   int     `json:"referrals"`
}

// Stats is derived, never stored: recomputed on every fetch.
type Stats struct {
	TotalReferrals     int            `json:"totalReferrals"`
	ActiveReferrals    int            `json:"activeReferrals"`
	TotalCommissions   float64        `json:"totalCommissions"`
	PendingCommissions float64        `json:"pendingCommissions"`
	ConversionRate     float64        `json:"conversionRate"`
	TopPerformers      []TopPerformer `json:"topPerformers"`
	MonthlyEarnings    float64        `json:"monthlyEarnings"`
	WeeklyEarnings     float64        `json:"weeklyEarnings"`
}

// MergedStats carries the backend aggregate plus the contract's independent
// view side by side. The two ledgers may diverge (pending confirmations), so
// the contract numbers are a cross-check signal and are never summed into
// the backend ones.
type MergedStats struct {
	Stats
	ContractTotalPurchases   float64 `json:"contractTotalPurchases"`
	ContractTotalCommissions float64 `json:"contractTotalCommissions"`
	ContractPurchaseCount    uint64  `json:"contractPurchaseCount"`
	ContractEligibleForDraw  bool    `json:"contractEligibleForDraw"`
	ContractVerified         bool    `json:"contractVerified"`
}

// ZeroStats is the degraded-read fallback: dashboards render zeros instead of
// failing when the backend is unreachable.
func ZeroStats() Stats {
	return Stats{TopPerformers: []TopPerformer{}}
}

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ComputeStats rebuilds the aggregate from raw rows. Completed commissions
// count toward totals, pending toward pending, failed toward neither.
func ComputeStats(relationships []Relationship, commissions []Commission, now time.Time) Stats {
	stats := ZeroStats()
	stats.TotalReferrals = len(relationships)

	performers := map[string]*TopPerformer{}
	order := []string{}
	for _, rel := range relationships {
		if rel.IsActive {
			stats.ActiveReferrals++
		}
		p, ok := performers[rel.RefereeWallet]
		if !ok {
			p = &TopPerformer{Wallet: rel.RefereeWallet, Name: rel.RefereeName}
			performers[rel.RefereeWallet] = p
			order = append(order, rel.RefereeWallet)
		}
		p.Referrals++
		p.Commissions += rel.TotalCommissions
	}

	monthCutoff := now.AddDate(0, 0, -30)
	weekCutoff := now.AddDate(0, 0, -7)
	for _, c := range commissions {
		switch c.Status {
		case StatusCompleted:
			stats.TotalCommissions += c.CommissionAmount
			if t, ok := parseDate(c.Date); ok {
				if t.After(monthCutoff) {
					stats.MonthlyEarnings += c.CommissionAmount
				}
				if t.After(weekCutoff) {
					stats.WeeklyEarnings += c.CommissionAmount
				}
			}
		case StatusPending:
			stats.PendingCommissions += c.CommissionAmount
		}
	}

	if stats.TotalReferrals > 0 {
		stats.ConversionRate = float64(stats.ActiveReferrals) / float64(stats.TotalReferrals) * 100
	}

	for _, wallet := range order {
		stats.TopPerformers = append(stats.TopPerformers, *performers[wallet])
	}
	sortPerformers(stats.TopPerformers)
	if len(stats.TopPerformers) > 5 {
		stats.TopPerformers = stats.TopPerformers[:5]
	}
	return stats
}

func sortPerformers(performers []TopPerformer) {
	// Insertion sort is stable, so equals keep their first-seen order.
	for i := 1; i < len(performers); i++ {
		for j := i; j > 0 && performers[j].Commissions > performers[j-1].Commissions; j-- {
			performers[j], performers[j-1] = performers[j-1], performers[j]
		}
	}
}
