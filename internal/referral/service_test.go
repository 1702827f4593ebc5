package referral

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"chainshop/internal/contract"
)

type fakeBackend struct {
	relationships []Relationship
	commissions   []Commission
	stats         Stats
	err           error

	registered []string
	recorded   []Commission
	writeErr   error
}

func (f *fakeBackend) Referrals(_ context.Context, _ string) ([]Relationship, error) {
	return f.relationships, f.err
}

func (f *fakeBackend) Commissions(_ context.Context, _ string) ([]Commission, error) {
	return f.commissions, f.err
}

func (f *fakeBackend) Stats(_ context.Context, _ string) (Stats, error) {
	return f.stats, f.err
}

func (f *fakeBackend) RegisterReferral(_ context.Context, code string, wallet string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.registered = append(f.registered, code+":"+wallet)
	return nil
}

func (f *fakeBackend) RecordCommission(_ context.Context, c Commission) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.recorded = append(f.recorded, c)
	return nil
}

type fakeChain struct {
	info contract.UserInfo
	err  error
}

func (f *fakeChain) GetUserInfo(_ string) (contract.UserInfo, error) {
	return f.info, f.err
}

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

func TestFetchHealthy(t *testing.T) {
	backend := &fakeBackend{
		relationships: []Relationship{{RefereeWallet: "0xa", IsActive: true}},
		commissions:   []Commission{{CommissionAmount: 5, Status: StatusCompleted}},
		stats:         Stats{TotalReferrals: 1, TotalCommissions: 5},
	}
	chain := &fakeChain{info: contract.UserInfo{
		TotalSpent:       big.NewInt(2e18),
		TotalCommissions: big.NewInt(5e17),
		PurchaseCount:    3,
		EligibleForDraw:  true,
	}}
	svc := NewService(backend, chain)

	snap := svc.Fetch(context.Background(), testWallet)
	if snap.Degraded {
		t.Fatal("healthy fetch must not be degraded")
	}
	if len(snap.Relationships) != 1 || len(snap.Commissions) != 1 {
		t.Fatalf("unexpected snapshot rows: %d relationships, %d commissions",
			len(snap.Relationships), len(snap.Commissions))
	}
	if !snap.Stats.ContractVerified {
		t.Error("contract ledger should be marked verified")
	}
	if snap.Stats.ContractPurchaseCount != 3 {
		t.Errorf("ContractPurchaseCount = %d, want 3", snap.Stats.ContractPurchaseCount)
	}
	if !almostEqual(snap.Stats.ContractTotalPurchases, 2.0) {
		t.Errorf("ContractTotalPurchases = %v, want 2.0", snap.Stats.ContractTotalPurchases)
	}
}

func TestFetchDegradesToZero(t *testing.T) {
	backend := &fakeBackend{err: errors.New("backend down")}
	svc := NewService(backend, &fakeChain{err: errors.New("rpc down")})

	snap := svc.Fetch(context.Background(), testWallet)
	if !snap.Degraded {
		t.Fatal("snapshot must be marked degraded when the backend fails")
	}
	if snap.Relationships == nil || len(snap.Relationships) != 0 {
		t.Errorf("relationships must degrade to empty slice, got %#v", snap.Relationships)
	}
	if snap.Commissions == nil || len(snap.Commissions) != 0 {
		t.Errorf("commissions must degrade to empty slice, got %#v", snap.Commissions)
	}
	if snap.Stats.TotalCommissions != 0 || snap.Stats.PendingCommissions != 0 {
		t.Errorf("stats must degrade to zero, got %+v", snap.Stats)
	}
	if snap.Stats.ContractVerified {
		t.Error("contract ledger must not be verified when the chain read fails")
	}
}

func TestMergeContractKeepsLedgersSeparate(t *testing.T) {
	backendStats := Stats{TotalCommissions: 100, PendingCommissions: 10}
	info := &contract.UserInfo{
		TotalSpent:       big.NewInt(7e18),
		TotalCommissions: big.NewInt(3e18),
		PurchaseCount:    9,
	}
	merged := MergeContract(backendStats, info)
	if !almostEqual(merged.TotalCommissions, 100) {
		t.Errorf("backend total changed by merge: %v", merged.TotalCommissions)
	}
	if !almostEqual(merged.ContractTotalCommissions, 3.0) {
		t.Errorf("ContractTotalCommissions = %v, want 3.0", merged.ContractTotalCommissions)
	}
	if !almostEqual(merged.ContractTotalPurchases, 7.0) {
		t.Errorf("ContractTotalPurchases = %v, want 7.0", merged.ContractTotalPurchases)
	}
}

func TestMergeContractWithoutChainData(t *testing.T) {
	merged := MergeContract(Stats{TotalCommissions: 50}, nil)
	if merged.ContractVerified {
		t.Error("nil contract info must leave ContractVerified false")
	}
	if !almostEqual(merged.TotalCommissions, 50) {
		t.Errorf("backend stats lost in merge: %v", merged.TotalCommissions)
	}
}

func TestRegisterReferralValidation(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, nil)

	if err := svc.RegisterReferral(context.Background(), "NOTVALID", testWallet); err == nil {
		t.Error("invalid code must be rejected before hitting the backend")
	}
	if len(backend.registered) != 0 {
		t.Fatalf("backend called despite invalid code: %v", backend.registered)
	}

	if err := svc.RegisterReferral(context.Background(), "abcdef12", testWallet); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.registered) != 1 {
		t.Fatalf("expected one registration, got %d", len(backend.registered))
	}
}

func TestWritesFailLoudly(t *testing.T) {
	backend := &fakeBackend{writeErr: errors.New("db down")}
	svc := NewService(backend, nil)

	if err := svc.RegisterReferral(context.Background(), "abcdef12", testWallet); err == nil {
		t.Error("registration failure must propagate")
	}
	err := svc.RecordCommission(context.Background(), Commission{CommissionAmount: 1})
	if err == nil {
		t.Error("commission failure must propagate")
	}
}

func TestRecordCommissionValidation(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend, nil)

	if err := svc.RecordCommission(context.Background(), Commission{CommissionAmount: 0}); err == nil {
		t.Error("zero commission must be rejected")
	}
	if err := svc.RecordCommission(context.Background(), Commission{CommissionAmount: -1}); err == nil {
		t.Error("negative commission must be rejected")
	}
	if err := svc.RecordCommission(context.Background(), Commission{CommissionAmount: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.recorded) != 1 {
		t.Fatalf("expected one recorded commission, got %d", len(backend.recorded))
	}
	if backend.recorded[0].Status != StatusPending {
		t.Errorf("default status = %q, want pending", backend.recorded[0].Status)
	}
}
