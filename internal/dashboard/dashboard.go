package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chainshop/internal/backend"
	"chainshop/internal/chain"
	"chainshop/internal/contract"
	"chainshop/internal/evm"
	"chainshop/internal/referral"
	"chainshop/internal/session"
)

// Controller is the client-side view-model: one place where wallet state,
// chain validation, contract data and the referral snapshot meet. All reads
// go through State(), all mutations through the operation methods.
type Controller struct {
	wallet    *evm.Client
	validator *chain.Validator
	shop      *contract.Gateway
	api       *backend.Client
	referrals *referral.Service
	poller    *referral.Poller
	session   *session.Manager
	cfg       Config

	mu    sync.RWMutex
	state State

	wsCancel context.CancelFunc
}

// State is the rendered snapshot. Contract numbers and backend numbers stay
// in their own fields all the way to the view.
type State struct {
	Wallet          evm.State             `json:"wallet"`
	ChainState      string                `json:"chainState"`
	ChainWarning    string                `json:"chainWarning"`
	Products        []contract.Product    `json:"products"`
	ShopStats       contract.Stats        `json:"shopStats"`
	RecentPurchases []contract.Purchase   `json:"recentPurchases"`
	UserPurchases   []contract.Purchase   `json:"userPurchases"`
	LatestDraw      []contract.DrawWinner `json:"latestDraw"`
	Referral        *referral.Snapshot    `json:"referral"`
	ReferralLink    string                `json:"referralLink"`
	LoggedIn        bool                  `json:"loggedIn"`
	Profile         session.Profile       `json:"profile"`
}

type Config struct {
	Origin string // public site origin for referral links
	WsUrl  string // backend websocket endpoint, optional
}

func New(
	wallet *evm.Client,
	validator *chain.Validator,
	shop *contract.Gateway,
	api *backend.Client,
	referrals *referral.Service,
	store session.Store,
	cfg Config,
) *Controller {
	c := &Controller{
		wallet:    wallet,
		validator: validator,
		shop:      shop,
		api:       api,
		referrals: referrals,
		poller:    referral.NewPoller(referrals),
		session:   session.NewManager(store),
	}
	c.cfg = cfg
	validator.OnWarning(func(currentId int64, requiredId int64) {
		c.mu.Lock()
		c.state.ChainWarning = fmt.Sprintf(
			"wrong network: on %s (%d), switch to %s (%d)",
			chain.ChainName(currentId), currentId,
			chain.ChainName(requiredId), requiredId,
		)
		c.mu.Unlock()
	})
	api.OnUnauthorized(func() {
		_ = c.session.Teardown(context.Background())
		c.mu.Lock()
		c.state.LoggedIn = false
		c.state.Profile = session.Profile{}
		c.mu.Unlock()
	})
	return c
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Restore brings a persisted session back before any wallet is connected.
func (c *Controller) Restore(ctx context.Context) error {
	if err := c.session.Restore(ctx); err != nil {
		return err
	}
	if c.session.IsLoggedIn() {
		c.api.SetToken(c.session.Token())
		profile, _ := c.session.Profile()
		c.mu.Lock()
		c.state.LoggedIn = true
		c.state.Profile = profile
		c.mu.Unlock()
	}
	return nil
}

// ConnectWallet connects, feeds the validator, starts the referral poller and
// loads the shop data. The poller follows whatever wallet is current, so a
// later account switch is picked up without restarting it.
func (c *Controller) ConnectWallet(ctx context.Context, privKey string, chainId int64) error {
	walletState, err := c.wallet.Connect(privKey, chainId)
	if err != nil {
		return err
	}
	c.validator.Observe(true, walletState.ChainId)
	link, _ := referral.BuildReferralLink(c.cfg.Origin, walletState.Address)
	c.mu.Lock()
	c.state.Wallet = walletState
	c.state.ChainState = c.validator.State().String()
	c.state.ReferralLink = link
	if c.validator.IsCorrectChain() {
		c.state.ChainWarning = ""
	}
	c.mu.Unlock()

	c.poller.Start(ctx, c.activeWallet, c.applySnapshot)
	if c.cfg.WsUrl != "" && c.session.IsLoggedIn() {
		c.startPush(ctx)
	}
	if c.validator.CanInteractWithContract() {
		return c.RefreshShop()
	}
	return nil
}

func (c *Controller) DisconnectWallet() {
	c.poller.Stop()
	c.stopPush()
	c.wallet.Disconnect()
	c.validator.Observe(false, 0)
	c.mu.Lock()
	c.state.Wallet = evm.State{}
	c.state.ChainState = c.validator.State().String()
	c.state.ChainWarning = ""
	c.state.Referral = nil
	c.state.ReferralLink = ""
	c.state.Products = nil
	c.state.RecentPurchases = nil
	c.state.UserPurchases = nil
	c.mu.Unlock()
}

// SwitchNetwork moves the wallet to the required chain, then re-observes.
func (c *Controller) SwitchNetwork() error {
	if err := c.validator.SwitchToRequiredChain(); err != nil {
		return err
	}
	c.validator.Observe(c.wallet.IsConnected(), c.wallet.ChainId())
	c.mu.Lock()
	c.state.Wallet.ChainId = c.wallet.ChainId()
	c.state.ChainState = c.validator.State().String()
	if c.validator.IsCorrectChain() {
		c.state.ChainWarning = ""
	}
	c.mu.Unlock()
	if c.validator.CanInteractWithContract() {
		return c.RefreshShop()
	}
	return nil
}

// RefreshShop reloads products, stats, recent purchases, the latest draw and
// the connected wallet's own purchase history from the contract.
func (c *Controller) RefreshShop() error {
	products, err := c.shop.GetActiveProducts()
	if err != nil {
		return err
	}
	stats, err := c.shop.GetStats()
	if err != nil {
		return err
	}
	purchases, err := c.shop.GetRecentPurchases(10)
	if err != nil {
		return err
	}
	winners, err := c.shop.GetLatestDraw()
	if err != nil {
		return err
	}
	var history []contract.Purchase
	if addr := c.activeWallet(); addr != "" {
		history, err = c.purchaseHistory(addr)
		if err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.state.Products = products
	c.state.ShopStats = stats
	c.state.RecentPurchases = purchases
	c.state.UserPurchases = history
	c.state.LatestDraw = winners
	c.mu.Unlock()
	return nil
}

// purchaseHistory resolves the wallet's purchase ids into full purchase
// records.
func (c *Controller) purchaseHistory(address string) ([]contract.Purchase, error) {
	ids, err := c.shop.GetUserPurchases(address)
	if err != nil {
		return nil, err
	}
	history := make([]contract.Purchase, 0, len(ids))
	for _, id := range ids {
		p, err := c.shop.GetPurchase(id)
		if err != nil {
			return nil, err
		}
		history = append(history, p)
	}
	return history, nil
}

// Purchase runs the full flow: chain-gated submit, receipt wait, backend
// commission record, then a refetch of everything the purchase changed.
func (c *Controller) Purchase(ctx context.Context, productId uint64) (string, error) {
	products := c.State().Products
	var price *contract.Product
	for i := range products {
		if products[i].Id == productId {
			price = &products[i]
			break
		}
	}
	if price == nil {
		return "", fmt.Errorf("unknown product %d", productId)
	}
	txHash, err := c.shop.PurchaseProduct(productId, price.Price)
	if err != nil {
		return "", err
	}
	if _, err := c.shop.WaitForConfirmation(ctx, "purchaseProduct", txHash); err != nil {
		return txHash, err
	}
	// Commission recording must fail loudly; the purchase itself is already
	// settled on chain at this point.
	err = c.api.RecordCommission(ctx, referral.Commission{
		RefereeWallet:   c.wallet.Address(),
		PurchaseAmount:  evm.WeiToEther(price.Price),
		TransactionHash: txHash,
		ProductName:     price.Name,
		Status:          referral.StatusPending,
	})
	if err != nil {
		return txHash, fmt.Errorf("purchase confirmed but commission record failed: %w", err)
	}
	if err := c.RefreshShop(); err != nil {
		return txHash, err
	}
	c.applySnapshot(c.referrals.Fetch(ctx, c.wallet.Address()))
	return txHash, nil
}

func (c *Controller) Login(ctx context.Context, email string, password string) error {
	token, profile, err := c.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.session.Establish(ctx, token, profile); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.LoggedIn = true
	c.state.Profile = profile
	c.mu.Unlock()
	return nil
}

// Signup prefills the referral code from an invite link when one was
// followed.
func (c *Controller) Signup(ctx context.Context, params backend.SignupParams, inviteUrl string) error {
	if params.ReferralCode == "" && inviteUrl != "" {
		params.ReferralCode = referral.ParseReferralCode(inviteUrl)
	}
	token, profile, err := c.api.Signup(ctx, params)
	if err != nil {
		return err
	}
	if err := c.session.Establish(ctx, token, profile); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.LoggedIn = true
	c.state.Profile = profile
	c.mu.Unlock()
	return nil
}

func (c *Controller) Logout(ctx context.Context) error {
	c.api.SetToken("")
	c.mu.Lock()
	c.state.LoggedIn = false
	c.state.Profile = session.Profile{}
	c.mu.Unlock()
	return c.session.Teardown(ctx)
}

func (c *Controller) activeWallet() string {
	if !c.wallet.IsConnected() {
		return ""
	}
	return c.wallet.Address()
}

func (c *Controller) applySnapshot(snap *referral.Snapshot) {
	c.mu.Lock()
	c.state.Referral = snap
	c.mu.Unlock()
}

// startPush subscribes to the backend websocket. Pushed sync payloads update
// the referral stats immediately; the 30s poller keeps running as the
// fallback for missed frames.
func (c *Controller) startPush(ctx context.Context) {
	c.stopPush()
	ctx, cancel := context.WithCancel(ctx)
	c.wsCancel = cancel
	go c.pushLoop(ctx)
}

func (c *Controller) stopPush() {
	if c.wsCancel != nil {
		c.wsCancel()
		c.wsCancel = nil
	}
}

func (c *Controller) pushLoop(ctx context.Context) {
	u, err := url.Parse(c.cfg.WsUrl)
	if err != nil {
		return
	}
	q := u.Query()
	q.Set("token", c.session.Token())
	u.RawQuery = q.Encode()
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		c.readPush(ctx, conn)
		conn.Close()
	}
}

type pushFrame struct {
	Target        string               `json:"target"`
	ReferralStats referral.MergedStats `json:"referral_stats"`
}

func (c *Controller) readPush(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame pushFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Target != "sync" {
			continue
		}
		addr := c.activeWallet()
		if addr == "" {
			continue
		}
		c.mu.Lock()
		if c.state.Referral == nil {
			c.state.Referral = &referral.Snapshot{Wallet: addr}
		}
		c.state.Referral.Stats = frame.ReferralStats
		c.mu.Unlock()
	}
}
