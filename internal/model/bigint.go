package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// BigInt is an arbitrary-precision integer that is encoded as a decimal string.
// A zero value encodes as null.
type BigInt struct {
	Int *big.Int
}

// NewBigInt wraps v. The caller must not mutate v afterwards.
func NewBigInt(v *big.Int) BigInt {
	return BigInt{Int: v}
}

// BigIntFromString parses a decimal or 0x-prefixed hex string.
func BigIntFromString(s string) (BigInt, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BigInt{}, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return BigInt{}, fmt.Errorf("invalid integer: %q", s)
	}
	return BigInt{Int: v}, nil
}

// String returns the decimal form, or "0" when unset.
func (b BigInt) String() string {
	if b.Int == nil {
		return "0"
	}
	return b.Int.String()
}

// IsSet reports whether the value holds an integer.
func (b BigInt) IsSet() bool {
	return b.Int != nil
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(b.Int.String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		b.Int = nil
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := BigIntFromString(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
