package symbol

import "strings"

// BinanceConverter maps between canonical and Binance REST spellings. The
// two happen to coincide today; call sites still go through the converter so
// another venue only needs a new implementation.
type BinanceConverter struct{}

func (BinanceConverter) ToExchange(canonical string) string {
	s := strings.ToUpper(strings.TrimSpace(canonical))
	return strings.ReplaceAll(s, "/", "")
}

func (BinanceConverter) FromExchange(raw string) string {
	return Normalize(raw)
}

var Binance = BinanceConverter{}
