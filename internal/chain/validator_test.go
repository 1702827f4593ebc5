package chain

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeProvider struct {
	connected bool
	chainId   int64
	switchErr error
	addErr    error

	switchCalls int32
	addCalls    int32
}

func (p *fakeProvider) IsConnected() bool { return p.connected }
func (p *fakeProvider) ChainId() int64    { return p.chainId }

func (p *fakeProvider) SwitchChain(chainId int64) error {
	atomic.AddInt32(&p.switchCalls, 1)
	if p.switchErr != nil {
		return p.switchErr
	}
	p.chainId = chainId
	return nil
}

func (p *fakeProvider) AddChain(chainId int64) error {
	atomic.AddInt32(&p.addCalls, 1)
	if p.addErr != nil {
		return p.addErr
	}
	p.chainId = chainId
	return nil
}

func TestObserveStateTransitions(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		chainId   int64
		want      State
	}{
		{"disconnected", false, 0, Disconnected},
		{"correct chain", true, RequiredChainId, ConnectedCorrectChain},
		{"wrong chain", true, 1, ConnectedWrongChain},
		{"another wrong chain", true, 56, ConnectedWrongChain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(&fakeProvider{}, RequiredChainId)
			if got := v.Observe(tt.connected, tt.chainId); got != tt.want {
				t.Errorf("Observe(%v, %d) = %v, want %v", tt.connected, tt.chainId, got, tt.want)
			}
			if got := v.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChainChangeWhileConnected(t *testing.T) {
	v := NewValidator(&fakeProvider{}, RequiredChainId)
	v.Observe(true, RequiredChainId)
	if !v.IsCorrectChain() {
		t.Fatal("expected correct chain")
	}
	// Wallet hops networks mid-session.
	v.Observe(true, 1)
	if !v.IsWrongChain() {
		t.Error("chain-change event must move state to wrong chain")
	}
	if v.CanInteractWithContract() {
		t.Error("contract interaction must be gated on the wrong chain")
	}
}

func TestWarningFiresOncePerWrongChainPeriod(t *testing.T) {
	v := NewValidator(&fakeProvider{}, RequiredChainId)
	var warnings int32
	v.OnWarning(func(currentId int64, requiredId int64) {
		atomic.AddInt32(&warnings, 1)
		if requiredId != RequiredChainId {
			t.Errorf("warning requiredId = %d, want %d", requiredId, RequiredChainId)
		}
	})

	v.Observe(true, 1)
	v.Observe(true, 1)
	v.Observe(true, 56) // still wrong, still the same period
	if got := atomic.LoadInt32(&warnings); got != 1 {
		t.Fatalf("warnings = %d, want exactly 1", got)
	}

	// Returning to the correct chain resets the latch.
	v.Observe(true, RequiredChainId)
	v.Observe(true, 1)
	if got := atomic.LoadInt32(&warnings); got != 2 {
		t.Errorf("warnings after reset = %d, want 2", got)
	}
}

func TestWarningLatchResetsOnDisconnect(t *testing.T) {
	v := NewValidator(&fakeProvider{}, RequiredChainId)
	var warnings int32
	v.OnWarning(func(int64, int64) { atomic.AddInt32(&warnings, 1) })

	v.Observe(true, 1)
	v.Observe(false, 0)
	v.Observe(true, 1)
	if got := atomic.LoadInt32(&warnings); got != 2 {
		t.Errorf("warnings = %d, want 2", got)
	}
}

func TestValidateForWrite(t *testing.T) {
	p := &fakeProvider{connected: true, chainId: RequiredChainId}
	v := NewValidator(p, RequiredChainId)
	if err := v.ValidateForWrite(); err != nil {
		t.Fatalf("unexpected error on correct chain: %v", err)
	}

	// The provider silently hopped since the last Observe; the write must
	// still be blocked.
	p.chainId = 1
	err := v.ValidateForWrite()
	if err == nil {
		t.Fatal("write on wrong chain must be blocked")
	}
	if !strings.Contains(err.Error(), "Ethereum Mainnet") || !strings.Contains(err.Error(), RequiredChainName) {
		t.Errorf("blocking message should name both chains, got %q", err.Error())
	}

	p.connected = false
	if err := v.ValidateForWrite(); err == nil {
		t.Error("write without connection must be blocked")
	}
}

func TestSwitchToRequiredChain(t *testing.T) {
	p := &fakeProvider{connected: true, chainId: 1}
	v := NewValidator(p, RequiredChainId)
	v.Observe(true, 1)

	if err := v.SwitchToRequiredChain(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsCorrectChain() {
		t.Error("state not updated after successful switch")
	}
	if atomic.LoadInt32(&p.addCalls) != 0 {
		t.Error("AddChain called although SwitchChain succeeded")
	}
}

func TestSwitchFallsBackToAddChain(t *testing.T) {
	p := &fakeProvider{connected: true, chainId: 1, switchErr: errors.New("unknown chain")}
	v := NewValidator(p, RequiredChainId)
	v.Observe(true, 1)

	if err := v.SwitchToRequiredChain(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&p.addCalls) != 1 {
		t.Errorf("AddChain calls = %d, want 1", p.addCalls)
	}
	if !v.IsCorrectChain() {
		t.Error("state not updated after add-chain fallback")
	}
}

func TestSwitchReportsWhenFallbackFails(t *testing.T) {
	p := &fakeProvider{
		connected: true,
		chainId:   1,
		switchErr: errors.New("unknown chain"),
		addErr:    errors.New("user rejected"),
	}
	v := NewValidator(p, RequiredChainId)
	v.Observe(true, 1)

	if err := v.SwitchToRequiredChain(); err == nil {
		t.Fatal("expected error when both switch and add fail")
	}
	if v.IsCorrectChain() {
		t.Error("state must stay wrong when the switch failed")
	}
	// No automatic retry.
	if atomic.LoadInt32(&p.switchCalls) != 1 || atomic.LoadInt32(&p.addCalls) != 1 {
		t.Errorf("retried automatically: switch=%d add=%d", p.switchCalls, p.addCalls)
	}
}

func TestChainName(t *testing.T) {
	tests := []struct {
		chainId int64
		want    string
	}{
		{1, "Ethereum Mainnet"},
		{56, "BSC Mainnet"},
		{97, "BSC Testnet"},
		{137, "Polygon"},
		{4242, "Chain 4242"},
	}
	for _, tt := range tests {
		if got := ChainName(tt.chainId); got != tt.want {
			t.Errorf("ChainName(%d) = %q, want %q", tt.chainId, got, tt.want)
		}
	}
}
