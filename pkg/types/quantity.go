package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Quantity is an unsigned integer as servers serialize it for EVM transactions:
// a hex string, a decimal string, a bare JSON number or an ethers BigNumber object.
type Quantity struct {
	v *big.Int
}

// NewQuantity wraps a big.Int
func NewQuantity(v *big.Int) Quantity {
	if v == nil {
		return Quantity{}
	}
	return Quantity{v: new(big.Int).Set(v)}
}

// Int returns the value, zero when unset
func (q Quantity) Int() *big.Int {
	if q.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(q.v)
}

// IsZero reports whether the quantity is unset or zero
func (q Quantity) IsZero() bool {
	return q.v == nil || q.v.Sign() == 0
}

func (q Quantity) String() string {
	return q.Int().String()
}

// MarshalJSON encodes the quantity as a 0x-prefixed hex string
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.EncodeBig(q.Int()))
}

// UnmarshalJSON accepts every encoding listed on Quantity
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		q.v = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := parseQuantity(s)
		if err != nil {
			return err
		}
		q.v = v
	case '{':
		var obj struct {
			Hex string `json:"hex"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		v, err := parseQuantity(obj.Hex)
		if err != nil {
			return err
		}
		q.v = v
	default:
		v, ok := new(big.Int).SetString(string(data), 10)
		if !ok {
			return fmt.Errorf("invalid quantity: %s", string(data))
		}
		q.v = v
	}

	if q.v.Sign() < 0 {
		return fmt.Errorf("quantity must not be negative: %s", q.v)
	}
	return nil
}

func parseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if digits == "" {
			return new(big.Int), nil
		}
		v, ok := new(big.Int).SetString(digits, 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex quantity: %s", s)
		}
		return v, nil
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal quantity: %s", s)
	}
	return v, nil
}
