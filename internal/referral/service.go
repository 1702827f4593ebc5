package referral

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"chainshop/internal/contract"
	"chainshop/internal/evm"
)

// BackendSource is the REST side of the referral program (see
// internal/backend for the production client).
type BackendSource interface {
	Referrals(ctx context.Context, wallet string) ([]Relationship, error)
	Commissions(ctx context.Context, wallet string) ([]Commission, error)
	Stats(ctx context.Context, wallet string) (Stats, error)
	RegisterReferral(ctx context.Context, referralCode string, refereeWallet string) error
	RecordCommission(ctx context.Context, c Commission) error
}

// ContractSource is the on-chain side, giving the independent second ledger.
type ContractSource interface {
	GetUserInfo(address string) (contract.UserInfo, error)
}

// Service reconciles the backend ledger with the contract ledger. Reads
// degrade to empty/zero values so a dead backend never blanks the dashboard;
// writes fail loudly so money movement is never silently dropped.
type Service struct {
	backend BackendSource
	chain   ContractSource
}

func NewService(backend BackendSource, chain ContractSource) *Service {
	return &Service{backend: backend, chain: chain}
}

// Snapshot is one consistent view of a wallet's referral activity. Degraded
// is set when any backend fetch failed and zero values were substituted.
type Snapshot struct {
	Wallet        string         `json:"wallet"`
	Relationships []Relationship `json:"relationships"`
	Commissions   []Commission   `json:"commissions"`
	Stats         MergedStats    `json:"stats"`
	Degraded      bool           `json:"degraded"`
}

func (s *Service) FetchRelationships(ctx context.Context, wallet string) ([]Relationship, error) {
	rels, err := s.backend.Referrals(ctx, wallet)
	if err != nil {
		return []Relationship{}, err
	}
	if rels == nil {
		rels = []Relationship{}
	}
	return rels, nil
}

func (s *Service) FetchCommissionHistory(ctx context.Context, wallet string) ([]Commission, error) {
	history, err := s.backend.Commissions(ctx, wallet)
	if err != nil {
		return []Commission{}, err
	}
	if history == nil {
		history = []Commission{}
	}
	return history, nil
}

func (s *Service) FetchStats(ctx context.Context, wallet string) (Stats, error) {
	stats, err := s.backend.Stats(ctx, wallet)
	if err != nil {
		return ZeroStats(), err
	}
	if stats.TopPerformers == nil {
		stats.TopPerformers = []TopPerformer{}
	}
	return stats, nil
}

// Fetch loads relationships, commission history and stats concurrently, then
// folds in the contract's own counters. Backend failures degrade the affected
// slice to its zero value; the snapshot always comes back usable.
func (s *Service) Fetch(ctx context.Context, wallet string) *Snapshot {
	snap := &Snapshot{Wallet: wallet}

	g, gctx := errgroup.WithContext(ctx)
	var (
		stats Stats
		info  *contract.UserInfo
	)
	g.Go(func() error {
		var err error
		snap.Relationships, err = s.FetchRelationships(gctx, wallet)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Commissions, err = s.FetchCommissionHistory(gctx, wallet)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.FetchStats(gctx, wallet)
		return err
	})
	if err := g.Wait(); err != nil {
		snap.Degraded = true
	}

	if s.chain != nil {
		if u, err := s.chain.GetUserInfo(wallet); err == nil {
			info = &u
		}
	}
	snap.Stats = MergeContract(stats, info)
	return snap
}

// MergeContract places the contract counters next to the backend aggregate.
// The fields stay separate so a ledger mismatch remains visible.
func MergeContract(stats Stats, info *contract.UserInfo) MergedStats {
	merged := MergedStats{Stats: stats}
	if info == nil {
		return merged
	}
	merged.ContractVerified = true
	merged.ContractPurchaseCount = info.PurchaseCount
	merged.ContractEligibleForDraw = info.EligibleForDraw
	merged.ContractTotalPurchases = evm.WeiToEther(info.TotalSpent)
	merged.ContractTotalCommissions = evm.WeiToEther(info.TotalCommissions)
	return merged
}

// RegisterReferral links a new signup to the referrer behind the code.
// Unlike reads, a failure here propagates: a lost registration cannot be
// reconstructed later.
func (s *Service) RegisterReferral(ctx context.Context, referralCode string, refereeWallet string) error {
	if !IsValidReferralCode(referralCode) {
		return fmt.Errorf("invalid referral code %q", referralCode)
	}
	if err := s.backend.RegisterReferral(ctx, referralCode, refereeWallet); err != nil {
		return fmt.Errorf("referral registration failed: %w", err)
	}
	return nil
}

// RecordCommission writes a commission row for a confirmed purchase. Fails
// loudly for the same reason as RegisterReferral.
func (s *Service) RecordCommission(ctx context.Context, c Commission) error {
	if c.CommissionAmount <= 0 {
		return fmt.Errorf("commission amount must be positive, got %f", c.CommissionAmount)
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	if err := s.backend.RecordCommission(ctx, c); err != nil {
		return fmt.Errorf("commission record failed: %w", err)
	}
	return nil
}
