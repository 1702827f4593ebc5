package evm

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sync"

	"github.com/chenzhijie/go-web3"
	"github.com/ethereum/go-ethereum/common"
)

const weiPerEther = 1e18

var addressCheck = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ErrNotConnected is returned by operations that need an active provider.
var ErrNotConnected = errors.New("wallet not connected")

// ErrUserRejected marks a request the wallet owner declined. Callers treat it
// as a cancellation, not a failure.
var ErrUserRejected = errors.New("user rejected the request")

// ChainDescriptor is the full chain definition used for the add-chain
// fallback when a plain switch is refused by the provider.
type ChainDescriptor struct {
	ChainId        int64  `json:"chain_id"`
	Name           string `json:"name"`
	RpcUrl         string `json:"rpc_url"`
	ExplorerUrl    string `json:"explorer_url"`
	CurrencySymbol string `json:"currency_symbol"`
	CurrencyName   string `json:"currency_name"`
}

// State is a snapshot of the wallet connection.
type State struct {
	Address     string  `json:"address"`
	Balance     float64 `json:"balance"`
	ChainId     int64   `json:"chain_id"`
	IsConnected bool    `json:"is_connected"`
}

// Client wraps a web3 RPC provider plus an optional signing account. It is the
// single integration point with the wallet/provider layer: address, balance,
// chain id, connect/disconnect and native transfers.
type Client struct {
	mu      sync.Mutex
	w3      *web3.Web3
	rpcUrl  string
	chainId int64
	privKey string
	chains  map[int64]ChainDescriptor

	onChainChanged   func(chainId int64)
	onAccountChanged func(address string)
}

func New(rpcUrl string) *Client {
	return &Client{
		rpcUrl: rpcUrl,
		chains: map[int64]ChainDescriptor{},
	}
}

func IsValidAddress(address string) bool {
	return addressCheck.MatchString(address)
}

// Connect dials the provider, binds the signing key and reports the resulting
// wallet state. An empty private key yields a read-only connection.
func (c *Client) Connect(privKey string, chainId int64) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w3, err := web3.NewWeb3(c.rpcUrl)
	if err != nil {
		return State{}, fmt.Errorf("provider dial failed: %w", err)
	}
	w3.Eth.SetChainId(chainId)
	if privKey != "" {
		if err := w3.Eth.SetAccount(privKey); err != nil {
			return State{}, fmt.Errorf("account setup failed: %w", err)
		}
	}
	c.w3 = w3
	c.chainId = chainId
	c.privKey = privKey

	state := State{
		ChainId:     chainId,
		IsConnected: true,
	}
	if privKey != "" {
		state.Address = w3.Eth.Address().Hex()
		balance, err := c.balanceLocked(state.Address)
		if err == nil {
			state.Balance = balance
		}
	}
	if c.onAccountChanged != nil && state.Address != "" {
		c.onAccountChanged(state.Address)
	}
	if c.onChainChanged != nil {
		c.onChainChanged(chainId)
	}
	return state, nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w3 = nil
	c.privKey = ""
	if c.onAccountChanged != nil {
		c.onAccountChanged("")
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w3 != nil
}

func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w3 == nil || c.privKey == "" {
		return ""
	}
	return c.w3.Eth.Address().Hex()
}

func (c *Client) ChainId() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainId
}

// GetBalance reports the native-currency balance in ether units. Read errors
// degrade to zero, same as the rest of the read surface.
func (c *Client) GetBalance(address string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceLocked(address)
}

func (c *Client) balanceLocked(address string) (float64, error) {
	if c.w3 == nil {
		return 0, ErrNotConnected
	}
	if !IsValidAddress(address) {
		return 0, fmt.Errorf("invalid address %q", address)
	}
	wei, err := c.w3.Eth.GetBalance(common.HexToAddress(address), nil)
	if err != nil {
		return 0, err
	}
	return WeiToEther(wei), nil
}

func (c *Client) GetGasPrice() (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w3 == nil {
		return nil, ErrNotConnected
	}
	tip, err := c.w3.Eth.SuggestGasTipCap()
	if err != nil {
		return nil, err
	}
	fee, err := c.w3.Eth.EstimateFee()
	if err != nil {
		return nil, err
	}
	price := new(big.Int).Add(fee.BaseFee, tip)
	return price, nil
}

func (c *Client) GetBlockNumber() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w3 == nil {
		return 0, ErrNotConnected
	}
	return c.w3.Eth.GetBlockNumber()
}

// RegisterChain stores a chain descriptor for the add-chain fallback.
func (c *Client) RegisterChain(desc ChainDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chains[desc.ChainId] = desc
}

// SwitchChain points the provider at another chain id. When the current RPC
// endpoint does not serve that chain the switch fails and AddChain is the
// fallback.
func (c *Client) SwitchChain(chainId int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w3 == nil {
		return ErrNotConnected
	}
	reported, err := c.w3.Eth.ChainID()
	if err != nil {
		return fmt.Errorf("switch failed: %w", err)
	}
	if reported.Int64() != chainId {
		return fmt.Errorf("provider serves chain %d, not %d", reported.Int64(), chainId)
	}
	c.w3.Eth.SetChainId(chainId)
	c.chainId = chainId
	if c.onChainChanged != nil {
		c.onChainChanged(chainId)
	}
	return nil
}

// AddChain re-dials the provider using the registered descriptor for chainId.
// Used when SwitchChain is refused; failure here is reported, not retried.
func (c *Client) AddChain(chainId int64) error {
	c.mu.Lock()
	desc, ok := c.chains[chainId]
	privKey := c.privKey
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no descriptor registered for chain %d", chainId)
	}
	c.mu.Lock()
	c.rpcUrl = desc.RpcUrl
	c.mu.Unlock()
	_, err := c.Connect(privKey, chainId)
	if err != nil {
		return fmt.Errorf("add chain %s failed: %w", desc.Name, err)
	}
	return nil
}

// SetChainId overrides the chain id the client reports, without re-dialing.
// Exists so chain-change events from the provider can be mirrored.
func (c *Client) SetChainId(chainId int64) {
	c.mu.Lock()
	c.chainId = chainId
	cb := c.onChainChanged
	c.mu.Unlock()
	if cb != nil {
		cb(chainId)
	}
}

func (c *Client) OnChainChanged(f func(chainId int64)) { c.onChainChanged = f }

func (c *Client) OnAccountChanged(f func(address string)) { c.onAccountChanged = f }

// SendTransaction transfers native currency to an address and returns the
// transaction hash once the receipt is available.
func (c *Client) SendTransaction(to string, amount float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w3 == nil {
		return "", ErrNotConnected
	}
	if c.privKey == "" {
		return "", errors.New("no signing account bound")
	}
	if !IsValidAddress(to) {
		return "", fmt.Errorf("invalid address %q", to)
	}
	nonce, err := c.w3.Eth.GetNonce(c.w3.Eth.Address(), nil)
	if err != nil {
		return "", err
	}
	tip, err := c.w3.Eth.SuggestGasTipCap()
	if err != nil {
		return "", err
	}
	fee, err := c.w3.Eth.EstimateFee()
	if err != nil {
		return "", err
	}
	gasPrice := new(big.Int).Add(fee.BaseFee, tip)
	receipt, err := c.w3.Eth.SyncSendRawTransaction(
		common.HexToAddress(to),
		EtherToWei(amount),
		nonce,
		21000,
		gasPrice,
		nil,
	)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(weiPerEther))
	out, _ := f.Float64()
	return out
}

func EtherToWei(amount float64) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	f.Mul(f, big.NewFloat(weiPerEther))
	wei, _ := f.Int(nil)
	return wei
}
