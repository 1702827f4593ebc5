package contract

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// ABI unpacking yields named structs for some providers and positional
// []interface{} tuples for others; both shapes must decode identically.

type productTuple struct {
	Id        *big.Int
	Name      string
	Price     *big.Int
	Active    bool
	TotalSold *big.Int
}

func TestDecodeProductFromStruct(t *testing.T) {
	p, err := DecodeProduct(productTuple{
		Id:        big.NewInt(7),
		Name:      "Starter Pack",
		Price:     big.NewInt(5e17),
		Active:    true,
		TotalSold: big.NewInt(12),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Id != 7 || p.Name != "Starter Pack" || !p.Active || p.TotalSold != 12 {
		t.Errorf("decoded product mismatch: %+v", p)
	}
	if p.Price.Cmp(big.NewInt(5e17)) != 0 {
		t.Errorf("price = %s, want 5e17", p.Price)
	}
}

func TestDecodeProductFromPositionalTuple(t *testing.T) {
	raw := []interface{}{big.NewInt(7), "Starter Pack", big.NewInt(5e17), true, big.NewInt(12)}
	p, err := DecodeProduct(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Id != 7 || p.Name != "Starter Pack" {
		t.Errorf("decoded product mismatch: %+v", p)
	}
}

func TestDecodeProductRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
	}{
		{"nil", nil},
		{"wrong arity", []interface{}{big.NewInt(7), "x"}},
		{"wrong type in slot", []interface{}{big.NewInt(7), 42, big.NewInt(1), true, big.NewInt(0)}},
		{"nil price", []interface{}{big.NewInt(7), "x", (*big.Int)(nil), true, big.NewInt(0)}},
		{"scalar", 42},
		{"missing struct field", struct{ Id *big.Int }{big.NewInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeProduct(tt.raw); err == nil {
				t.Errorf("DecodeProduct(%v) accepted malformed input", tt.raw)
			}
		})
	}
}

func TestDecodeUserInfo(t *testing.T) {
	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	raw := []interface{}{
		addr,
		big.NewInt(3e18),
		big.NewInt(1e17),
		big.NewInt(4),
		true,
		big.NewInt(1700000000),
	}
	u, err := DecodeUserInfo(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Wallet != addr.Hex() {
		t.Errorf("wallet = %q, want %q", u.Wallet, addr.Hex())
	}
	if u.PurchaseCount != 4 || !u.EligibleForDraw || u.LastPurchaseTime != 1700000000 {
		t.Errorf("decoded user mismatch: %+v", u)
	}
}

func TestDecodeUserInfoNamesMissingField(t *testing.T) {
	raw := []interface{}{
		common.Address{},
		big.NewInt(0),
		"not a number",
		big.NewInt(0),
		false,
		big.NewInt(0),
	}
	_, err := DecodeUserInfo(raw)
	if err == nil {
		t.Fatal("expected error for malformed totalCommissions")
	}
	if !strings.Contains(err.Error(), "totalCommissions") {
		t.Errorf("error should name the bad field, got %q", err.Error())
	}
}

func TestDecodeStats(t *testing.T) {
	raw := []interface{}{
		big.NewInt(100),
		big.NewInt(250),
		big.NewInt(8),
		big.NewInt(40),
		big.NewInt(9e18),
		big.NewInt(3),
	}
	s, err := DecodeStats(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalUsers != 100 || s.TotalPurchases != 250 || s.TotalDraws != 3 {
		t.Errorf("decoded stats mismatch: %+v", s)
	}
	if s.ContractBalance.Cmp(big.NewInt(9e18)) != 0 {
		t.Errorf("balance = %s, want 9e18", s.ContractBalance)
	}
}

func TestDecodeProductsList(t *testing.T) {
	raw := []interface{}{
		[]interface{}{big.NewInt(1), "A", big.NewInt(1), true, big.NewInt(0)},
		[]interface{}{big.NewInt(2), "B", big.NewInt(2), false, big.NewInt(5)},
	}
	products, err := DecodeProducts(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 2 || products[1].Name != "B" {
		t.Errorf("decoded list mismatch: %+v", products)
	}
}

func TestDecodeProductsRejectsBadItem(t *testing.T) {
	raw := []interface{}{
		[]interface{}{big.NewInt(1), "A", big.NewInt(1), true, big.NewInt(0)},
		[]interface{}{"broken"},
	}
	if _, err := DecodeProducts(raw); err == nil {
		t.Error("list with a malformed item must be rejected as a whole")
	}
}

func TestDecodeDrawWinner(t *testing.T) {
	raw := []interface{}{
		common.HexToAddress("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"),
		big.NewInt(1e18),
		big.NewInt(1),
		big.NewInt(12),
		big.NewInt(1700000000),
	}
	w, err := DecodeDrawWinner(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Position != 1 || w.Round != 12 {
		t.Errorf("decoded winner mismatch: %+v", w)
	}
}

func TestDecodePurchaseIds(t *testing.T) {
	ids, err := DecodePurchaseIds([]interface{}{big.NewInt(3), big.NewInt(9)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 9 {
		t.Errorf("ids = %v, want [3 9]", ids)
	}
	if _, err := DecodePurchaseIds([]interface{}{"x"}); err == nil {
		t.Error("non-numeric id must be rejected")
	}
}

func TestDecodeAddress(t *testing.T) {
	want := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678").Hex()
	got, err := DecodeAddress("0x1234567890abcdef1234567890abcdef12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("address = %q, want %q", got, want)
	}
	if _, err := DecodeAddress("nope"); err == nil {
		t.Error("malformed address must be rejected")
	}
}
