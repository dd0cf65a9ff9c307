package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Symbol
	}{
		{"BTCUSDT", Symbol{Base: "BTC", Quote: "USDT"}},
		{"btcusdt", Symbol{Base: "BTC", Quote: "USDT"}},
		{"BTC/USDT", Symbol{Base: "BTC", Quote: "USDT"}},
		{"BTC/USDT:USDT", Symbol{Base: "BTC", Quote: "USDT"}},
		{"ETHBTC", Symbol{Base: "ETH", Quote: "BTC"}},
		{" solusdt ", Symbol{Base: "SOL", Quote: "USDT"}},
		{"", Symbol{}},
		{"USDT", Symbol{}}, // quote currency with no base
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, Parse(tc.in), "input %q", tc.in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Normalize("btc/usdt"))
	assert.Equal(t, "BTCUSDT", Normalize("BTC/USDT:USDT"))
	assert.Equal(t, "BTCUSDT", Normalize("BTCUSDT"))
	assert.Equal(t, "XYZABC", Normalize(" xyzabc "), "unknown quote still round-trips")
	assert.Equal(t, "", Normalize("  "))
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"btc/usdt", "BTCUSDT", "eth/usdt", ""})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
	assert.Nil(t, NormalizeList(nil))
}

func TestSymbolRendering(t *testing.T) {
	s := Symbol{Base: "ETH", Quote: "USDT"}
	assert.Equal(t, "ETHUSDT", s.Canonical())
	assert.Equal(t, "ETH/USDT", s.Pair())
	assert.Empty(t, Symbol{}.Canonical())
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("BTCUSDT"))
	assert.True(t, IsValid("eth/btc"))
	assert.False(t, IsValid("???"))
	assert.False(t, IsValid(""))
}

func TestBinanceConverter(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance.ToExchange("btc/usdt"))
	assert.Equal(t, "BTCUSDT", Binance.ToExchange("BTCUSDT"))
	assert.Equal(t, "BTCUSDT", Binance.FromExchange("BTCUSDT"))
}
