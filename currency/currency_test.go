package currency

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdcAddr  = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	wmaticAdr = common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")
	usdtAddr  = common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F")

	usdc   = NewToken(usdcAddr, "USDC", 6)
	usdt   = NewToken(usdtAddr, "USDT", 6)
	wmatic = NewToken(wmaticAdr, "WMATIC", 18)
	matic  = NewNative("MATIC", 18)
)

func TestCheckAddress(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  common.Address
		ok    bool
	}{
		{name: "checksummed", input: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", want: usdcAddr, ok: true},
		{name: "lower case", input: "0x2791bca1f2de4661ed88a30c99a7a9449aa84174", want: usdcAddr, ok: true},
		{name: "upper case", input: "0x2791BCA1F2DE4661ED88A30C99A7A9449AA84174", want: usdcAddr, ok: true},
		{name: "no prefix", input: "2791bca1f2de4661ed88a30c99a7a9449aa84174", want: usdcAddr, ok: true},
		{name: "bad checksum", input: "0x2791bCa1f2de4661ED88A30C99A7a9449Aa84174"},
		{name: "too short", input: "0x2791bca1"},
		{name: "not hex", input: "0xzz91bca1f2de4661ed88a30c99a7a9449aa84174"},
		{name: "native marker", input: "ETH"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CheckAddress(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestCurrencyIdentity(t *testing.T) {
	assert.Equal(t, NativeID, matic.ID())
	assert.Equal(t, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", usdc.ID())
	assert.True(t, matic.Equal(NewNative("ETH", 18)))
	assert.False(t, matic.Equal(wmatic))
	assert.True(t, usdc.Equal(Currency{Address: usdcAddr}))
	assert.True(t, IsNativeID("eth"))
}

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		c       Currency
		want    string
		wantErr error
	}{
		{name: "whole", value: "12", c: usdc, want: "12000000"},
		{name: "fractional", value: "1.5", c: usdc, want: "1500000"},
		{name: "full precision", value: "0.000001", c: usdc, want: "1"},
		{name: "trailing zeros beyond decimals", value: "1.0000000", c: usdc, want: "1000000"},
		{name: "eighteen decimals", value: "0.1", c: matic, want: "100000000000000000"},
		{name: "too many decimals", value: "0.0000001", c: usdc, wantErr: ErrTooManyDecimals},
		{name: "negative", value: "-1", c: usdc, wantErr: ErrInvalidAmount},
		{name: "garbage", value: "abc", c: usdc, wantErr: ErrInvalidAmount},
		{name: "exponent", value: "1e6", c: usdc, wantErr: ErrInvalidAmount},
		{name: "empty", value: "", c: usdc, wantErr: ErrInvalidAmount},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := ParseAmount(tc.value, tc.c)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, a.Raw.String())
			assert.True(t, a.Currency.Equal(tc.c))
		})
	}
}

func TestTryParseAmount(t *testing.T) {
	_, ok := TryParseAmount("0", usdc)
	assert.False(t, ok)
	_, ok = TryParseAmount("0.000", usdc)
	assert.False(t, ok)
	_, ok = TryParseAmount("", usdc)
	assert.False(t, ok)
	_, ok = TryParseAmount("0.0000001", usdc)
	assert.False(t, ok)

	a, ok := TryParseAmount("2.5", usdc)
	require.True(t, ok)
	assert.Equal(t, int64(2_500_000), a.Raw.Int64())
}

func TestAmountFormatting(t *testing.T) {
	a := NewAmount(usdc, big.NewInt(1_234_567_890))
	assert.Equal(t, "1234.56789", a.Exact())
	assert.Equal(t, "1230", a.Significant(3))
	assert.Equal(t, "1234.57", a.Significant(6))
	assert.Equal(t, "1234.56789 USDC", a.String())

	small := NewAmount(usdc, big.NewInt(1234))
	assert.Equal(t, "0.00123", small.Significant(3))
	assert.Equal(t, "0", NewAmount(usdc, nil).Significant(3))
}

func TestAmountIsImmutableCopy(t *testing.T) {
	raw := big.NewInt(100)
	a := NewAmount(usdc, raw)
	raw.SetInt64(5)
	assert.Equal(t, int64(100), a.Raw.Int64())
	assert.True(t, NewAmount(usdc, big.NewInt(5)).LessThan(a))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(matic, wmatic, []Currency{usdc, usdt, usdc}, []common.Address{usdcAddr, usdtAddr})

	t.Run("lookup by id", func(t *testing.T) {
		c, ok := r.Lookup("ETH")
		require.True(t, ok)
		assert.True(t, c.Native)
		assert.Equal(t, "MATIC", c.Symbol)

		c, ok = r.Lookup("0x2791bca1f2de4661ed88a30c99a7a9449aa84174")
		require.True(t, ok)
		assert.Equal(t, "USDC", c.Symbol)

		_, ok = r.Lookup("")
		assert.False(t, ok)
		_, ok = r.Lookup("0x0000000000000000000000000000000000000001")
		assert.False(t, ok)
	})

	t.Run("wrap", func(t *testing.T) {
		assert.Equal(t, wmatic, r.Wrap(matic))
		assert.Equal(t, usdc, r.Wrap(usdc))
	})

	t.Run("stable set", func(t *testing.T) {
		assert.True(t, r.IsStable(usdc))
		assert.False(t, r.IsStable(wmatic))
		assert.False(t, r.IsStable(matic))
	})

	t.Run("all is a copy without duplicates", func(t *testing.T) {
		all := r.All()
		assert.Len(t, all, 3)
		all[0].Symbol = "changed"
		w, _ := r.GetByAddress(wmaticAdr)
		assert.Equal(t, "WMATIC", w.Symbol)
	})
}
