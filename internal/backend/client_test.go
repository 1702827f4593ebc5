package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"chainshop/internal/referral"
)

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

func TestLogin(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"token":   "jwt-token",
			"user":    map[string]string{"email": "a@b.c", "wallet": testWallet},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	token, profile, err := c.Login(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "jwt-token" {
		t.Errorf("token = %q", token)
	}
	if profile.Wallet != testWallet {
		t.Errorf("profile = %+v", profile)
	}
	if gotBody["email"] != "a@b.c" || gotBody["password"] != "secret" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestLoginForwardsServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "invalid email or password",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, _, err := c.Login(context.Background(), "a@b.c", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	// The server's own wording, untouched.
	if err.Error() != "invalid email or password" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestEnvelopeFailureWithOkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "referral code not found",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.RegisterReferral(context.Background(), "abcdef12", testWallet)
	if err == nil {
		t.Fatal("success=false must be an error even on HTTP 200")
	}
	if err.Error() != "referral code not found" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestUnauthorizedTriggersCallback(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"message": "token expired",
			})
		}))

		c := New(srv.URL)
		c.SetToken("stale")
		var fired int32
		c.OnUnauthorized(func() { atomic.AddInt32(&fired, 1) })

		_, err := c.Profile(context.Background())
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("status %d: err = %v, want ErrUnauthorized", status, err)
		}
		if atomic.LoadInt32(&fired) != 1 {
			t.Errorf("status %d: callback fired %d times", status, fired)
		}
		srv.Close()
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"user":    map[string]string{},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Profile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("header sent without a token: %q", gotAuth)
	}

	c.SetToken("jwt-token")
	if _, err := c.Profile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer jwt-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestReferralReads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/referrals/" + testWallet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success":   true,
				"referrals": []map[string]interface{}{{"refereeWallet": "0xa", "isActive": true}},
			})
		case "/api/referrals/" + testWallet + "/commissions":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success":     true,
				"commissions": []map[string]interface{}{{"commissionAmount": 1.5, "status": "pending"}},
			})
		case "/api/referrals/" + testWallet + "/stats":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"stats":   map[string]interface{}{"totalReferrals": 3, "conversionRate": 66.7},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	referrals, err := c.Referrals(ctx, testWallet)
	if err != nil || len(referrals) != 1 || !referrals[0].IsActive {
		t.Errorf("Referrals = %+v, err %v", referrals, err)
	}
	commissions, err := c.Commissions(ctx, testWallet)
	if err != nil || len(commissions) != 1 || commissions[0].Status != referral.StatusPending {
		t.Errorf("Commissions = %+v, err %v", commissions, err)
	}
	stats, err := c.Stats(ctx, testWallet)
	if err != nil || stats.TotalReferrals != 3 {
		t.Errorf("Stats = %+v, err %v", stats, err)
	}
}

func TestRecordCommissionBody(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/referrals/commission" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.RecordCommission(context.Background(), referral.Commission{
		RefereeWallet:   testWallet,
		PurchaseAmount:  2.5,
		TransactionHash: "0xdeadbeef",
		ProductName:     "Starter Pack",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["refereeWallet"] != testWallet || gotBody["txHash"] != "0xdeadbeef" {
		t.Errorf("request body = %v", gotBody)
	}
	if gotBody["purchaseAmount"].(float64) != 2.5 {
		t.Errorf("purchaseAmount = %v", gotBody["purchaseAmount"])
	}
}

func TestSignupSendsReferralCode(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"token":   "t",
			"user":    map[string]string{},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, _, err := c.Signup(context.Background(), SignupParams{
		Name:         "Tester",
		Email:        "a@b.c",
		Password:     "secret",
		Wallet:       testWallet,
		ReferralCode: "abcdef12",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["referralCode"] != "abcdef12" {
		t.Errorf("referralCode = %v", gotBody["referralCode"])
	}
}
