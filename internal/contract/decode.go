package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ABI-decoded values arrive as loosely-shaped tuples: either a generated
// struct with named fields or a positional []interface{}. Every decoder here
// maps fields exhaustively and rejects malformed tuples instead of defaulting
// the missing pieces.

type tuple struct {
	v      reflect.Value
	fields []string
}

func newTuple(raw interface{}, fields ...string) (*tuple, error) {
	if raw == nil {
		return nil, fmt.Errorf("nil tuple")
	}
	v := reflect.ValueOf(raw)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("nil tuple")
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return &tuple{v: v, fields: fields}, nil
	case reflect.Slice:
		if v.Len() != len(fields) {
			return nil, fmt.Errorf("tuple arity %d, want %d", v.Len(), len(fields))
		}
		return &tuple{v: v, fields: fields}, nil
	}
	return nil, fmt.Errorf("unexpected tuple kind %s", v.Kind())
}

func (t *tuple) field(name string) (interface{}, error) {
	if t.v.Kind() == reflect.Struct {
		f := t.v.FieldByNameFunc(func(s string) bool {
			return strings.EqualFold(s, name)
		})
		if !f.IsValid() {
			return nil, fmt.Errorf("missing field %q", name)
		}
		return f.Interface(), nil
	}
	for i, fname := range t.fields {
		if fname == name {
			return t.v.Index(i).Interface(), nil
		}
	}
	return nil, fmt.Errorf("missing field %q", name)
}

func asBig(raw interface{}) (*big.Int, error) {
	switch n := raw.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil uint256")
		}
		return n, nil
	case big.Int:
		return new(big.Int).Set(&n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case int64:
		return big.NewInt(n), nil
	}
	return nil, fmt.Errorf("not an integer: %T", raw)
}

func asUint64(raw interface{}) (uint64, error) {
	n, err := asBig(raw)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("value %s out of uint64 range", n)
	}
	return n.Uint64(), nil
}

func asBool(raw interface{}) (bool, error) {
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("not a bool: %T", raw)
	}
	return b, nil
}

func asString(raw interface{}) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("not a string: %T", raw)
	}
	return s, nil
}

func asAddress(raw interface{}) (string, error) {
	switch a := raw.(type) {
	case common.Address:
		return a.Hex(), nil
	case string:
		if !common.IsHexAddress(a) {
			return "", fmt.Errorf("malformed address %q", a)
		}
		return common.HexToAddress(a).Hex(), nil
	}
	return "", fmt.Errorf("not an address: %T", raw)
}

type fieldReader struct {
	t   *tuple
	err error
}

func (r *fieldReader) big(name string) *big.Int {
	if r.err != nil {
		return nil
	}
	raw, err := r.t.field(name)
	if err == nil {
		var n *big.Int
		n, err = asBig(raw)
		if err == nil {
			return n
		}
	}
	r.err = fmt.Errorf("%s: %w", name, err)
	return nil
}

func (r *fieldReader) uint64(name string) uint64 {
	if r.err != nil {
		return 0
	}
	raw, err := r.t.field(name)
	if err == nil {
		var n uint64
		n, err = asUint64(raw)
		if err == nil {
			return n
		}
	}
	r.err = fmt.Errorf("%s: %w", name, err)
	return 0
}

func (r *fieldReader) bool(name string) bool {
	if r.err != nil {
		return false
	}
	raw, err := r.t.field(name)
	if err == nil {
		var b bool
		b, err = asBool(raw)
		if err == nil {
			return b
		}
	}
	r.err = fmt.Errorf("%s: %w", name, err)
	return false
}

func (r *fieldReader) string(name string) string {
	if r.err != nil {
		return ""
	}
	raw, err := r.t.field(name)
	if err == nil {
		var s string
		s, err = asString(raw)
		if err == nil {
			return s
		}
	}
	r.err = fmt.Errorf("%s: %w", name, err)
	return ""
}

func (r *fieldReader) address(name string) string {
	if r.err != nil {
		return ""
	}
	raw, err := r.t.field(name)
	if err == nil {
		var s string
		s, err = asAddress(raw)
		if err == nil {
			return s
		}
	}
	r.err = fmt.Errorf("%s: %w", name, err)
	return ""
}

func DecodeProduct(raw interface{}) (Product, error) {
	t, err := newTuple(raw, "id", "name", "price", "active", "totalSold")
	if err != nil {
		return Product{}, fmt.Errorf("malformed product tuple: %w", err)
	}
	r := &fieldReader{t: t}
	p := Product{
		Id:        r.uint64("id"),
		Name:      r.string("name"),
		Price:     r.big("price"),
		Active:    r.bool("active"),
		TotalSold: r.uint64("totalSold"),
	}
	if r.err != nil {
		return Product{}, fmt.Errorf("malformed product tuple: %w", r.err)
	}
	return p, nil
}

func DecodeUserInfo(raw interface{}) (UserInfo, error) {
	t, err := newTuple(raw, "wallet", "totalSpent", "totalCommissions", "purchaseCount", "eligibleForDraw", "lastPurchaseTime")
	if err != nil {
		return UserInfo{}, fmt.Errorf("malformed user tuple: %w", err)
	}
	r := &fieldReader{t: t}
	u := UserInfo{
		Wallet:           r.address("wallet"),
		TotalSpent:       r.big("totalSpent"),
		TotalCommissions: r.big("totalCommissions"),
		PurchaseCount:    r.uint64("purchaseCount"),
		EligibleForDraw:  r.bool("eligibleForDraw"),
		LastPurchaseTime: r.uint64("lastPurchaseTime"),
	}
	if r.err != nil {
		return UserInfo{}, fmt.Errorf("malformed user tuple: %w", r.err)
	}
	return u, nil
}

func DecodePurchase(raw interface{}) (Purchase, error) {
	t, err := newTuple(raw, "id", "productId", "productName", "amount", "buyer", "referrer", "commission", "timestamp")
	if err != nil {
		return Purchase{}, fmt.Errorf("malformed purchase tuple: %w", err)
	}
	r := &fieldReader{t: t}
	p := Purchase{
		Id:          r.uint64("id"),
		ProductId:   r.uint64("productId"),
		ProductName: r.string("productName"),
		Amount:      r.big("amount"),
		Buyer:       r.address("buyer"),
		Referrer:    r.address("referrer"),
		Commission:  r.big("commission"),
		Timestamp:   r.uint64("timestamp"),
	}
	if r.err != nil {
		return Purchase{}, fmt.Errorf("malformed purchase tuple: %w", r.err)
	}
	return p, nil
}

func DecodeDrawWinner(raw interface{}) (DrawWinner, error) {
	t, err := newTuple(raw, "winner", "prize", "position", "round", "timestamp")
	if err != nil {
		return DrawWinner{}, fmt.Errorf("malformed draw tuple: %w", err)
	}
	r := &fieldReader{t: t}
	w := DrawWinner{
		Winner:    r.address("winner"),
		Prize:     r.big("prize"),
		Position:  r.uint64("position"),
		Round:     r.uint64("round"),
		Timestamp: r.uint64("timestamp"),
	}
	if r.err != nil {
		return DrawWinner{}, fmt.Errorf("malformed draw tuple: %w", r.err)
	}
	return w, nil
}

func DecodeStats(raw interface{}) (Stats, error) {
	t, err := newTuple(raw, "totalUsers", "totalPurchases", "totalProducts", "eligibleForDraw", "contractBalance", "totalDraws")
	if err != nil {
		return Stats{}, fmt.Errorf("malformed stats tuple: %w", err)
	}
	r := &fieldReader{t: t}
	s := Stats{
		TotalUsers:      r.uint64("totalUsers"),
		TotalPurchases:  r.uint64("totalPurchases"),
		TotalProducts:   r.uint64("totalProducts"),
		EligibleForDraw: r.uint64("eligibleForDraw"),
		ContractBalance: r.big("contractBalance"),
		TotalDraws:      r.uint64("totalDraws"),
	}
	if r.err != nil {
		return Stats{}, fmt.Errorf("malformed stats tuple: %w", r.err)
	}
	return s, nil
}

func decodeSlice(raw interface{}, decode func(interface{}) error) error {
	if raw == nil {
		return fmt.Errorf("nil list")
	}
	v := reflect.ValueOf(raw)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("nil list")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("not a list: %T", raw)
	}
	for i := 0; i < v.Len(); i++ {
		if err := decode(v.Index(i).Interface()); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func DecodeProducts(raw interface{}) ([]Product, error) {
	out := []Product{}
	err := decodeSlice(raw, func(item interface{}) error {
		p, err := DecodeProduct(item)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func DecodePurchases(raw interface{}) ([]Purchase, error) {
	out := []Purchase{}
	err := decodeSlice(raw, func(item interface{}) error {
		p, err := DecodePurchase(item)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func DecodeDrawWinners(raw interface{}) ([]DrawWinner, error) {
	out := []DrawWinner{}
	err := decodeSlice(raw, func(item interface{}) error {
		w, err := DecodeDrawWinner(item)
		if err != nil {
			return err
		}
		out = append(out, w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func DecodePurchaseIds(raw interface{}) ([]uint64, error) {
	out := []uint64{}
	err := decodeSlice(raw, func(item interface{}) error {
		id, err := asUint64(item)
		if err != nil {
			return err
		}
		out = append(out, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("malformed purchase id list: %w", err)
	}
	return out, nil
}

func DecodeBig(raw interface{}) (*big.Int, error) {
	return asBig(raw)
}

func DecodeBool(raw interface{}) (bool, error) {
	return asBool(raw)
}

func DecodeAddress(raw interface{}) (string, error) {
	return asAddress(raw)
}
