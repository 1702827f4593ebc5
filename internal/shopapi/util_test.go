package shopapi

import (
	"context"
	"testing"
	"time"

	"chainshop/internal/referral"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a_b", "a\\_b"},
		{"1.5 BNB!", "1\\.5 BNB\\!"},
		{"(x-y)", "\\(x\\-y\\)"},
	}
	for _, tt := range tests {
		if got := EscapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundFloat(t *testing.T) {
	tests := []struct {
		val       float64
		precision uint
		want      float64
	}{
		{1.23456, 2, 1.23},
		{1.23556, 2, 1.24},
		{0.000149, 4, 0.0001},
		{10, 2, 10},
	}
	for _, tt := range tests {
		if got := RoundFloat(tt.val, tt.precision); got != tt.want {
			t.Errorf("RoundFloat(%v, %d) = %v, want %v", tt.val, tt.precision, got, tt.want)
		}
	}
}

func TestWaitForAsynqTaskResultHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := WaitForAsynqTaskResult(ctx, nil, "commissions", "commission:1"); err == nil {
		t.Fatal("expected an error once the context is cancelled")
	}
}

func TestTierSettingsMultipliers(t *testing.T) {
	tiers := TierSettings{Bronze: 1.0, Silver: 1.25, Gold: 1.6, Platinum: 2.5}
	m := tiers.Multipliers()
	if m[referral.TierSilver] != 1.25 || m[referral.TierPlatinum] != 2.5 {
		t.Errorf("multipliers = %v", m)
	}
	if referral.MultiplierIn(m, "Gold") != 1.6 {
		t.Errorf("configured gold multiplier not applied")
	}
}

func TestUserProfileConversion(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := User{
		Id:             7,
		CreatedAt:      created,
		Address:        "0x1234567890abcdef1234567890abcdef12345678",
		Name:           "Tester",
		Email:          "a@b.c",
		Hash:           "never-exposed",
		ReferralCode:   "12345678",
		MembershipTier: "gold",
	}
	p := u.Profile()
	if p.Id != "7" || p.Wallet != u.Address || p.ReferralCode != "12345678" {
		t.Errorf("profile = %+v", p)
	}
	if p.CreatedAt != created.Format(time.RFC3339) {
		t.Errorf("createdAt = %q", p.CreatedAt)
	}

	d := u.Data()
	if d.ID != 7 || d.MembershipTier != "gold" {
		t.Errorf("data = %+v", d)
	}
}

func TestCommissionTxConversion(t *testing.T) {
	row := CommissionTx{
		Id:               12,
		CreatedAt:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		ReferrerId:       3,
		RefereeId:        9,
		PurchaseAmount:   2,
		CommissionAmount: 0.3,
		CommissionRate:   0.1,
		TxHash:           "0xdeadbeef",
		Status:           "pending",
		ProductId:        4,
		ProductName:      "Starter Pack",
	}
	c := row.Commission()
	if c.Id != "12" || c.ReferrerId != "3" || c.RefereeId != "9" {
		t.Errorf("ids = %q %q %q", c.Id, c.ReferrerId, c.RefereeId)
	}
	if c.Status != referral.StatusPending {
		t.Errorf("status = %q", c.Status)
	}
	if c.TransactionHash != "0xdeadbeef" || c.ProductId != "4" {
		t.Errorf("commission = %+v", c)
	}
}

func TestRefRelationConversion(t *testing.T) {
	row := RefRelation{
		ReferrerId:       1,
		RefereeId:        2,
		ReferrerAddress:  "0xaaaa567890abcdef1234567890abcdef12345678",
		RefereeAddress:   "0xbbbb567890abcdef1234567890abcdef12345678",
		TotalPurchases:   5,
		TotalCommissions: 0.75,
		IsActive:         true,
	}
	r := row.Relationship()
	if r.ReferrerId != "1" || r.RefereeId != "2" {
		t.Errorf("ids = %q %q", r.ReferrerId, r.RefereeId)
	}
	if r.ReferrerWallet != row.ReferrerAddress || !r.IsActive {
		t.Errorf("relationship = %+v", r)
	}
}
