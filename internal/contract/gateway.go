package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"chainshop/internal/chain"
)

// Binding is the raw call/send surface of the deployed contract. The
// production binding lives in web3.go; tests inject their own.
type Binding interface {
	Call(method string, args ...interface{}) (interface{}, error)
	// Send signs with the target chain id attached, so the transaction
	// cannot be silently rerouted to another network.
	Send(method string, value *big.Int, args ...interface{}) (string, error)
	Receipt(txHash string) (*Receipt, error)
}

// Receipt is the confirmation state of a submitted transaction.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Failed      bool   `json:"failed"`
}

var ErrReceiptNotFound = errors.New("receipt not available yet")

// Gateway is the typed read/write access point for the shop contract. Every
// read is refused while the validator reports anything other than the correct
// chain, and every write re-validates the live chain id before submission.
type Gateway struct {
	bind      Binding
	validator *chain.Validator

	// Invoked once a write is confirmed on-chain. This is where dependent
	// reads (products, purchases) get refetched.
	onConfirmed func(op string, txHash string)
}

func NewGateway(bind Binding, validator *chain.Validator) *Gateway {
	return &Gateway{bind: bind, validator: validator}
}

func (g *Gateway) OnConfirmed(f func(op string, txHash string)) {
	g.onConfirmed = f
}

// interactionError names the blocking reason: wrong chain vs not connected.
func (g *Gateway) interactionError(verb string) error {
	if g.validator.IsWrongChain() {
		return fmt.Errorf("please switch to %s to %s", chain.RequiredChainName, verb)
	}
	return fmt.Errorf("please connect your wallet to %s", verb)
}

func (g *Gateway) readEnabled() error {
	if !g.validator.CanInteractWithContract() {
		return g.interactionError("read contract data")
	}
	return nil
}

func (g *Gateway) GetAllProducts() ([]Product, error) {
	if err := g.readEnabled(); err != nil {
		return nil, err
	}
	raw, err := g.bind.Call("getAllProducts")
	if err != nil {
		return nil, err
	}
	return DecodeProducts(raw)
}

func (g *Gateway) GetActiveProducts() ([]Product, error) {
	if err := g.readEnabled(); err != nil {
		return nil, err
	}
	raw, err := g.bind.Call("getActiveProducts")
	if err != nil {
		return nil, err
	}
	return DecodeProducts(raw)
}

func (g *Gateway) GetStats() (Stats, error) {
	if err := g.readEnabled(); err != nil {
		return Stats{}, err
	}
	raw, err := g.bind.Call("getStats")
	if err != nil {
		return Stats{}, err
	}
	return DecodeStats(raw)
}

func (g *Gateway) ProductCount() (uint64, error) {
	if err := g.readEnabled(); err != nil {
		return 0, err
	}
	raw, err := g.bind.Call("productCount")
	if err != nil {
		return 0, err
	}
	n, err := DecodeBig(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed product count: %w", err)
	}
	return n.Uint64(), nil
}

func (g *Gateway) GetContractBalance() (*big.Int, error) {
	if err := g.readEnabled(); err != nil {
		return nil, err
	}
	raw, err := g.bind.Call("getContractBalance")
	if err != nil {
		return nil, err
	}
	n, err := DecodeBig(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed balance: %w", err)
	}
	return n, nil
}

func (g *Gateway) GetRecentPurchases(count uint64) ([]Purchase, error) {
	if err := g.readEnabled(); err != nil {
		return nil, err
	}
	raw, err := g.bind.Call("getRecentPurchases", new(big.Int).SetUint64(count))
	if err != nil {
		return nil, err
	}
	return DecodePurchases(raw)
}

func (g *Gateway) GetPurchase(purchaseId uint64) (Purchase, error) {
	if err := g.readEnabled(); err != nil {
		return Purchase{}, err
	}
	raw, err := g.bind.Call("getPurchase", new(big.Int).SetUint64(purchaseId))
	if err != nil {
		return Purchase{}, err
	}
	return DecodePurchase(raw)
}

func (g *Gateway) GetDrawHistory() ([]DrawWinner, error) {
	if err := g.readEnabled(); err != nil {
		return nil, err
	}
	raw, err := g.bind.Call("getDrawHistory")
	if err != nil {
		return nil, err
	}
	return DecodeDrawWinners(raw)
}

func (g *Gateway) GetLatestDraw() ([]DrawWinner, error) {
	if err := g.readEnabled(); err != nil {
		return nil, err
	}
	raw, err := g.bind.Call("getLatestDraw")
	if err != nil {
		return nil, err
	}
	return DecodeDrawWinners(raw)
}

func (g *Gateway) GetUserPurchases(address string) ([]uint64, error) {
	if err := g.readEnabled(); err != nil {
		return nil, err
	}
	raw, err := g.bind.Call("getUserPurchases", address)
	if err != nil {
		return nil, err
	}
	return DecodePurchaseIds(raw)
}

func (g *Gateway) GetUserInfo(address string) (UserInfo, error) {
	if err := g.readEnabled(); err != nil {
		return UserInfo{}, err
	}
	raw, err := g.bind.Call("getUserInfo", address)
	if err != nil {
		return UserInfo{}, err
	}
	return DecodeUserInfo(raw)
}

func (g *Gateway) GetReferrer(address string) (string, error) {
	if err := g.readEnabled(); err != nil {
		return "", err
	}
	raw, err := g.bind.Call("getReferrer", address)
	if err != nil {
		return "", err
	}
	referrer, err := DecodeAddress(raw)
	if err != nil {
		return "", fmt.Errorf("malformed referrer: %w", err)
	}
	return referrer, nil
}

func (g *Gateway) IsEligibleForDraw(address string) (bool, error) {
	if err := g.readEnabled(); err != nil {
		return false, err
	}
	raw, err := g.bind.Call("isEligibleForDraw", address)
	if err != nil {
		return false, err
	}
	eligible, err := DecodeBool(raw)
	if err != nil {
		return false, fmt.Errorf("malformed eligibility flag: %w", err)
	}
	return eligible, nil
}

// submit runs the common write pipeline: interaction gate, synchronous chain
// re-validation, then the send. Provider and contract errors come back
// verbatim.
func (g *Gateway) submit(verb string, method string, value *big.Int, args ...interface{}) (string, error) {
	if !g.validator.CanInteractWithContract() {
		return "", g.interactionError(verb)
	}
	if err := g.validator.ValidateForWrite(); err != nil {
		return "", err
	}
	return g.bind.Send(method, value, args...)
}

func (g *Gateway) PurchaseProduct(productId uint64, priceWei *big.Int) (string, error) {
	return g.submit("make purchases", "purchaseProduct", priceWei, new(big.Int).SetUint64(productId))
}

func (g *Gateway) RegisterUser(referrer string) (string, error) {
	return g.submit("register", "registerUser", nil, referrer)
}

func (g *Gateway) AddProduct(name string, priceWei *big.Int) (string, error) {
	return g.submit("add products", "addProduct", nil, name, priceWei)
}

func (g *Gateway) UpdateProduct(productId uint64, name string, priceWei *big.Int, active bool) (string, error) {
	return g.submit("update products", "updateProduct", nil, new(big.Int).SetUint64(productId), name, priceWei, active)
}

func (g *Gateway) ExecuteLuckyDraw() (string, error) {
	return g.submit("execute draws", "executeLuckyDraw", nil)
}

// WaitForConfirmation polls the receipt until the transaction is mined or ctx
// expires. Side effects (refetches, notifications) fire only on confirmation.
func (g *Gateway) WaitForConfirmation(ctx context.Context, op string, txHash string) (*Receipt, error) {
	t := time.NewTicker(3 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			receipt, err := g.bind.Receipt(txHash)
			if errors.Is(err, ErrReceiptNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if receipt.Failed {
				return receipt, fmt.Errorf("transaction %s reverted", txHash)
			}
			if g.onConfirmed != nil {
				g.onConfirmed(op, txHash)
			}
			return receipt, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("confirmation wait cancelled: %w", ctx.Err())
		}
	}
}
