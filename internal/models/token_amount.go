package models

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// TokenAmount is an arbitrary-precision integer amount in the smallest token
// unit. Money never touches floating point: the column type is NUMERIC(38,0)
// and the JSON representation is a decimal string.
type TokenAmount struct {
	value big.Int
}

func NewTokenAmount(v int64) TokenAmount {
	var a TokenAmount
	a.value.SetInt64(v)
	return a
}

func ParseTokenAmount(s string) (TokenAmount, error) {
	var a TokenAmount
	if _, ok := a.value.SetString(s, 10); !ok {
		return TokenAmount{}, fmt.Errorf("invalid token amount %q", s)
	}
	return a, nil
}

func (a TokenAmount) String() string { return a.value.String() }

func (a TokenAmount) IsZero() bool { return a.value.Sign() == 0 }

func (a TokenAmount) IsNegative() bool { return a.value.Sign() < 0 }

// Cmp returns -1, 0 or 1 as a is less than, equal to or greater than b.
func (a TokenAmount) Cmp(b TokenAmount) int { return a.value.Cmp(&b.value) }

func (a TokenAmount) Add(b TokenAmount) TokenAmount {
	var out TokenAmount
	out.value.Add(&a.value, &b.value)
	return out
}

func (a TokenAmount) Sub(b TokenAmount) TokenAmount {
	var out TokenAmount
	out.value.Sub(&a.value, &b.value)
	return out
}

// MulDiv returns floor(a * num / den). Used for basis-point and percentage
// math so intermediate products never overflow.
func (a TokenAmount) MulDiv(num, den int64) TokenAmount {
	var out TokenAmount
	out.value.Mul(&a.value, big.NewInt(num))
	out.value.Quo(&out.value, big.NewInt(den))
	return out
}

func (a TokenAmount) Value() (driver.Value, error) {
	return a.value.String(), nil
}

func (a *TokenAmount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		a.value.SetInt64(0)
		return nil
	case int64:
		a.value.SetInt64(v)
		return nil
	case []byte:
		return a.setString(string(v))
	case string:
		return a.setString(v)
	default:
		return fmt.Errorf("cannot scan %T into TokenAmount", src)
	}
}

func (a *TokenAmount) setString(s string) error {
	if _, ok := a.value.SetString(s, 10); !ok {
		return fmt.Errorf("cannot scan %q into TokenAmount", s)
	}
	return nil
}

func (a TokenAmount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.value.String() + `"`), nil
}

func (a *TokenAmount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		a.value.SetInt64(0)
		return nil
	}
	return a.setString(s)
}
