package chain

import (
	"fmt"
	"sync"
)

// RequiredChainId is the only network the deployed contract lives on.
const RequiredChainId int64 = 97

const RequiredChainName = "BSC Testnet"

// Connectivity states. ConnectedWrongChain is entered any time the reported
// id differs from the required one, including on a chain-change event while
// already connected.
type State int

const (
	Disconnected State = iota
	ConnectedCorrectChain
	ConnectedWrongChain
)

func (s State) String() string {
	switch s {
	case ConnectedCorrectChain:
		return "connected"
	case ConnectedWrongChain:
		return "wrong_chain"
	default:
		return "disconnected"
	}
}

// Provider is the slice of the wallet client the validator drives.
type Provider interface {
	IsConnected() bool
	ChainId() int64
	SwitchChain(chainId int64) error
	AddChain(chainId int64) error
}

// Validator tracks chain connectivity against the single required chain id
// and raises a blocking warning exactly once per wrong-chain period.
type Validator struct {
	mu         sync.Mutex
	provider   Provider
	requiredId int64

	state       State
	chainId     int64
	warnedOnce  bool
	isSwitching bool
	onWarning   func(currentId int64, requiredId int64)
}

func NewValidator(provider Provider, requiredId int64) *Validator {
	return &Validator{
		provider:   provider,
		requiredId: requiredId,
		state:      Disconnected,
	}
}

// OnWarning installs the sink for the one-shot wrong-chain warning.
func (v *Validator) OnWarning(f func(currentId int64, requiredId int64)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onWarning = f
}

// Observe feeds a connectivity report into the state machine. Connect events,
// chain-change events and disconnects all go through here.
func (v *Validator) Observe(connected bool, chainId int64) State {
	v.mu.Lock()
	var warn func(int64, int64)
	switch {
	case !connected:
		v.state = Disconnected
		v.chainId = 0
		v.warnedOnce = false
	case chainId == v.requiredId:
		v.state = ConnectedCorrectChain
		v.chainId = chainId
		// Latch resets once the chain is correct again.
		v.warnedOnce = false
	default:
		v.state = ConnectedWrongChain
		v.chainId = chainId
		if !v.warnedOnce {
			v.warnedOnce = true
			warn = v.onWarning
		}
	}
	state := v.state
	current := v.chainId
	required := v.requiredId
	v.mu.Unlock()
	if warn != nil {
		warn(current, required)
	}
	return state
}

func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Validator) CurrentChainId() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.chainId
}

func (v *Validator) RequiredChainId() int64 {
	return v.requiredId
}

func (v *Validator) IsWrongChain() bool {
	return v.State() == ConnectedWrongChain
}

func (v *Validator) IsCorrectChain() bool {
	return v.State() == ConnectedCorrectChain
}

// CanInteractWithContract gates every contract read and write.
func (v *Validator) CanInteractWithContract() bool {
	return v.State() == ConnectedCorrectChain
}

func (v *Validator) IsSwitching() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isSwitching
}

// ValidateForWrite re-checks the live provider chain id immediately before a
// transaction is submitted. UI state and wallet state can race, so writes
// never trust the cached state alone.
func (v *Validator) ValidateForWrite() error {
	current := v.provider.ChainId()
	if !v.provider.IsConnected() {
		return fmt.Errorf("transaction blocked: wallet is not connected")
	}
	if current != v.requiredId {
		return fmt.Errorf(
			"transaction blocked: currently on %s (%d), but %s (%d) is required",
			ChainName(current), current, RequiredChainName, v.requiredId,
		)
	}
	return nil
}

// SwitchToRequiredChain asks the provider to switch; if refused, falls back
// to adding the full chain descriptor. Fallback failure is reported without
// automatic retry.
func (v *Validator) SwitchToRequiredChain() error {
	v.mu.Lock()
	v.isSwitching = true
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		v.isSwitching = false
		v.mu.Unlock()
	}()

	err := v.provider.SwitchChain(v.requiredId)
	if err == nil {
		v.Observe(v.provider.IsConnected(), v.requiredId)
		return nil
	}
	if addErr := v.provider.AddChain(v.requiredId); addErr != nil {
		return fmt.Errorf("switch failed (%v); add network failed: %w", err, addErr)
	}
	v.Observe(v.provider.IsConnected(), v.requiredId)
	return nil
}

// ChainName maps well-known chain ids to display names.
func ChainName(chainId int64) string {
	switch chainId {
	case 1:
		return "Ethereum Mainnet"
	case 56:
		return "BSC Mainnet"
	case 97:
		return "BSC Testnet"
	case 137:
		return "Polygon"
	case 80001:
		return "Polygon Mumbai"
	default:
		return fmt.Sprintf("Chain %d", chainId)
	}
}
