package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenAmount(t *testing.T) {
	a, err := ParseTokenAmount("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", a.String())

	_, err = ParseTokenAmount("12.5")
	assert.Error(t, err)

	_, err = ParseTokenAmount("abc")
	assert.Error(t, err)
}

func TestTokenAmount_Arithmetic(t *testing.T) {
	a := NewTokenAmount(5_000_000)
	b := NewTokenAmount(1_500_000)

	assert.Equal(t, "6500000", a.Add(b).String())
	assert.Equal(t, "3500000", a.Sub(b).String())
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(NewTokenAmount(5_000_000)))
}

func TestTokenAmount_MulDivFloors(t *testing.T) {
	// 99 * 50 / 100 = 49.5 floors to 49.
	assert.Equal(t, "49", NewTokenAmount(99).MulDiv(50, 100).String())

	// Basis-point math on a value that divides cleanly.
	assert.Equal(t, "5000000", NewTokenAmount(100_000_000).MulDiv(500, 10_000).String())
}

func TestTokenAmount_Signs(t *testing.T) {
	assert.True(t, NewTokenAmount(0).IsZero())
	assert.False(t, NewTokenAmount(1).IsZero())
	assert.True(t, NewTokenAmount(5).Sub(NewTokenAmount(7)).IsNegative())
	assert.False(t, NewTokenAmount(5).IsNegative())
}

func TestTokenAmount_JSONDecimalString(t *testing.T) {
	raw, err := json.Marshal(NewTokenAmount(5_000_000))
	require.NoError(t, err)
	assert.Equal(t, `"5000000"`, string(raw))

	var decoded TokenAmount
	require.NoError(t, json.Unmarshal([]byte(`"60000000"`), &decoded))
	assert.Equal(t, "60000000", decoded.String())

	// Bare numbers are accepted for lenient clients.
	require.NoError(t, json.Unmarshal([]byte(`42`), &decoded))
	assert.Equal(t, "42", decoded.String())

	require.NoError(t, json.Unmarshal([]byte(`null`), &decoded))
	assert.True(t, decoded.IsZero())
}

func TestTokenAmount_ScanDatabaseValues(t *testing.T) {
	var a TokenAmount

	require.NoError(t, a.Scan("12345678901234567890123456789012345678"))
	assert.Equal(t, "12345678901234567890123456789012345678", a.String())

	require.NoError(t, a.Scan([]byte("777")))
	assert.Equal(t, "777", a.String())

	require.NoError(t, a.Scan(int64(42)))
	assert.Equal(t, "42", a.String())

	require.NoError(t, a.Scan(nil))
	assert.True(t, a.IsZero())

	assert.Error(t, a.Scan(3.14))
}
