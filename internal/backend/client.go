package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"chainshop/internal/referral"
	"chainshop/internal/session"
)

// ErrUnauthorized signals a rejected or expired token. The client tears the
// session down before returning it, so callers only have to route the user
// back to login.
var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the commerce REST API. Every response carries the
// {success, message} envelope; message is forwarded verbatim on failure.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string

	// Called when the API answers 401/403.
	onUnauthorized func()
}

func New(baseUrl string) *Client {
	c := resty.New().
		SetBaseURL(baseUrl).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) OnUnauthorized(f func()) {
	c.onUnauthorized = f
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type authPayload struct {
	envelope
	Token string          `json:"token"`
	User  session.Profile `json:"user"`
}

type profilePayload struct {
	envelope
	User session.Profile `json:"user"`
}

type referralsPayload struct {
	envelope
	Referrals []referral.Relationship `json:"referrals"`
}

type commissionsPayload struct {
	envelope
	Commissions []referral.Commission `json:"commissions"`
}

type statsPayload struct {
	envelope
	Stats referral.Stats `json:"stats"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	c.mu.RLock()
	if c.token != "" {
		req.SetHeader("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
	return req
}

// check maps transport status and envelope into an error. API-provided
// messages pass through untouched so the UI shows the server's own wording.
func (c *Client) check(resp *resty.Response, env envelope) error {
	status := resp.StatusCode()
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		if env.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, env.Message)
		}
		return ErrUnauthorized
	}
	if status >= 400 || !env.Success {
		if env.Message != "" {
			return errors.New(env.Message)
		}
		return fmt.Errorf("api error: status %d", status)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, email string, password string) (string, session.Profile, error) {
	var out authPayload
	resp, err := c.request(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).SetError(&out).
		Post("/api/auth/login")
	if err != nil {
		return "", session.Profile{}, err
	}
	if err := c.check(resp, out.envelope); err != nil {
		return "", session.Profile{}, err
	}
	c.SetToken(out.Token)
	return out.Token, out.User, nil
}

type SignupParams struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Wallet       string `json:"wallet"`
	ReferralCode string `json:"referralCode,omitempty"`
}

func (c *Client) Signup(ctx context.Context, params SignupParams) (string, session.Profile, error) {
	var out authPayload
	resp, err := c.request(ctx).
		SetBody(params).
		SetResult(&out).SetError(&out).
		Post("/api/auth/signup")
	if err != nil {
		return "", session.Profile{}, err
	}
	if err := c.check(resp, out.envelope); err != nil {
		return "", session.Profile{}, err
	}
	c.SetToken(out.Token)
	return out.Token, out.User, nil
}

func (c *Client) Profile(ctx context.Context) (session.Profile, error) {
	var out profilePayload
	resp, err := c.request(ctx).
		SetResult(&out).SetError(&out).
		Get("/api/user/profile")
	if err != nil {
		return session.Profile{}, err
	}
	if err := c.check(resp, out.envelope); err != nil {
		return session.Profile{}, err
	}
	return out.User, nil
}

func (c *Client) Referrals(ctx context.Context, wallet string) ([]referral.Relationship, error) {
	var out referralsPayload
	resp, err := c.request(ctx).
		SetResult(&out).SetError(&out).
		Get("/api/referrals/" + wallet)
	if err != nil {
		return nil, err
	}
	if err := c.check(resp, out.envelope); err != nil {
		return nil, err
	}
	return out.Referrals, nil
}

func (c *Client) Commissions(ctx context.Context, wallet string) ([]referral.Commission, error) {
	var out commissionsPayload
	resp, err := c.request(ctx).
		SetResult(&out).SetError(&out).
		Get("/api/referrals/" + wallet + "/commissions")
	if err != nil {
		return nil, err
	}
	if err := c.check(resp, out.envelope); err != nil {
		return nil, err
	}
	return out.Commissions, nil
}

func (c *Client) Stats(ctx context.Context, wallet string) (referral.Stats, error) {
	var out statsPayload
	resp, err := c.request(ctx).
		SetResult(&out).SetError(&out).
		Get("/api/referrals/" + wallet + "/stats")
	if err != nil {
		return referral.Stats{}, err
	}
	if err := c.check(resp, out.envelope); err != nil {
		return referral.Stats{}, err
	}
	return out.Stats, nil
}

func (c *Client) RegisterReferral(ctx context.Context, referralCode string, refereeWallet string) error {
	var out envelope
	resp, err := c.request(ctx).
		SetBody(map[string]string{"referralCode": referralCode, "wallet": refereeWallet}).
		SetResult(&out).SetError(&out).
		Post("/api/referrals/register")
	if err != nil {
		return err
	}
	return c.check(resp, out)
}

func (c *Client) RecordCommission(ctx context.Context, commission referral.Commission) error {
	var out envelope
	resp, err := c.request(ctx).
		SetBody(map[string]interface{}{
			"refereeWallet":  commission.RefereeWallet,
			"purchaseAmount": commission.PurchaseAmount,
			"txHash":         commission.TransactionHash,
			"productName":    commission.ProductName,
		}).
		SetResult(&out).SetError(&out).
		Post("/api/referrals/commission")
	if err != nil {
		return err
	}
	return c.check(resp, out)
}
