package referral

import (
	"testing"
	"time"
)

func TestCommissionStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !StatusCompleted.Terminal() {
		t.Error("completed must be terminal")
	}
	if !StatusFailed.Terminal() {
		t.Error("failed must be terminal")
	}
}

func TestComputeStatsConversionRate(t *testing.T) {
	rels := make([]Relationship, 0, 10)
	for i := 0; i < 10; i++ {
		rels = append(rels, Relationship{
			RefereeWallet: "0xwallet",
			IsActive:      i < 4,
		})
	}
	stats := ComputeStats(rels, nil, time.Now())
	if stats.TotalReferrals != 10 {
		t.Fatalf("TotalReferrals = %d, want 10", stats.TotalReferrals)
	}
	if stats.ActiveReferrals != 4 {
		t.Fatalf("ActiveReferrals = %d, want 4", stats.ActiveReferrals)
	}
	if !almostEqual(stats.ConversionRate, 40) {
		t.Errorf("ConversionRate = %v, want 40", stats.ConversionRate)
	}
}

func TestComputeStatsEmptyInput(t *testing.T) {
	stats := ComputeStats(nil, nil, time.Now())
	if stats.ConversionRate != 0 {
		t.Errorf("ConversionRate with no referrals = %v, want 0", stats.ConversionRate)
	}
	if stats.TopPerformers == nil {
		t.Error("TopPerformers must be an empty slice, not nil")
	}
}

func TestComputeStatsCommissionBuckets(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	commissions := []Commission{
		{CommissionAmount: 10, Status: StatusCompleted, Date: now.AddDate(0, 0, -1).Format(time.RFC3339)},
		{CommissionAmount: 20, Status: StatusCompleted, Date: now.AddDate(0, 0, -14).Format(time.RFC3339)},
		{CommissionAmount: 40, Status: StatusCompleted, Date: now.AddDate(0, 0, -60).Format(time.RFC3339)},
		{CommissionAmount: 7, Status: StatusPending, Date: now.Format(time.RFC3339)},
		{CommissionAmount: 99, Status: StatusFailed, Date: now.Format(time.RFC3339)},
	}
	stats := ComputeStats(nil, commissions, now)

	// Completed only; pending and failed never count toward the total.
	if !almostEqual(stats.TotalCommissions, 70) {
		t.Errorf("TotalCommissions = %v, want 70", stats.TotalCommissions)
	}
	if !almostEqual(stats.PendingCommissions, 7) {
		t.Errorf("PendingCommissions = %v, want 7", stats.PendingCommissions)
	}
	if !almostEqual(stats.MonthlyEarnings, 30) {
		t.Errorf("MonthlyEarnings = %v, want 30", stats.MonthlyEarnings)
	}
	if !almostEqual(stats.WeeklyEarnings, 10) {
		t.Errorf("WeeklyEarnings = %v, want 10", stats.WeeklyEarnings)
	}
}

func TestComputeStatsTopPerformers(t *testing.T) {
	rels := []Relationship{
		{RefereeWallet: "0xa", RefereeName: "a", TotalCommissions: 5, IsActive: true},
		{RefereeWallet: "0xb", RefereeName: "b", TotalCommissions: 50, IsActive: true},
		{RefereeWallet: "0xc", RefereeName: "c", TotalCommissions: 20},
		{RefereeWallet: "0xd", RefereeName: "d", TotalCommissions: 30},
		{RefereeWallet: "0xe", RefereeName: "e", TotalCommissions: 10},
		{RefereeWallet: "0xf", RefereeName: "f", TotalCommissions: 1},
		{RefereeWallet: "0xg", RefereeName: "g", TotalCommissions: 2},
	}
	stats := ComputeStats(rels, nil, time.Now())
	if len(stats.TopPerformers) != 5 {
		t.Fatalf("TopPerformers length = %d, want 5", len(stats.TopPerformers))
	}
	if stats.TopPerformers[0].Wallet != "0xb" {
		t.Errorf("top performer = %q, want 0xb", stats.TopPerformers[0].Wallet)
	}
	for i := 1; i < len(stats.TopPerformers); i++ {
		if stats.TopPerformers[i].Commissions > stats.TopPerformers[i-1].Commissions {
			t.Errorf("performers not sorted at %d: %v > %v",
				i, stats.TopPerformers[i].Commissions, stats.TopPerformers[i-1].Commissions)
		}
	}
}

func TestComputeStatsDateFormats(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	commissions := []Commission{
		{CommissionAmount: 10, Status: StatusCompleted, Date: "2026-03-14"},
		{CommissionAmount: 20, Status: StatusCompleted, Date: "not-a-date"},
	}
	stats := ComputeStats(nil, commissions, now)
	if !almostEqual(stats.TotalCommissions, 30) {
		t.Errorf("TotalCommissions = %v, want 30", stats.TotalCommissions)
	}
	// Unparseable dates still count toward the total, just not the windows.
	if !almostEqual(stats.WeeklyEarnings, 10) {
		t.Errorf("WeeklyEarnings = %v, want 10", stats.WeeklyEarnings)
	}
}

func TestComputeStatsTopPerformerTieOrder(t *testing.T) {
	rels := []Relationship{
		{RefereeWallet: "0xa", RefereeName: "a", TotalCommissions: 5},
		{RefereeWallet: "0xb", RefereeName: "b", TotalCommissions: 10},
		{RefereeWallet: "0xc", RefereeName: "c", TotalCommissions: 5},
	}
	// Ties keep their first-seen order, so repeated fetches render the same list.
	for run := 0; run < 20; run++ {
		stats := ComputeStats(rels, nil, time.Now())
		wallets := []string{}
		for _, p := range stats.TopPerformers {
			wallets = append(wallets, p.Wallet)
		}
		if len(wallets) != 3 || wallets[0] != "0xb" || wallets[1] != "0xa" || wallets[2] != "0xc" {
			t.Fatalf("run %d: performer order = %v, want [0xb 0xa 0xc]", run, wallets)
		}
	}
}
