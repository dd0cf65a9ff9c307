// Package symbol canonicalizes instrument identifiers. The canonical form is
// the compact exchange style ("BTCUSDT"); slash and settle-suffixed spellings
// from external feeds are accepted on input.
package symbol

import (
	"strings"
)

type Symbol struct {
	Base  string
	Quote string
}

// Canonical renders the compact form used as the map key everywhere.
func (s Symbol) Canonical() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Pair renders the slash form for display.
func (s Symbol) Pair() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Parse accepts "BTCUSDT", "BTC/USDT" and "BTC/USDT:USDT" spellings.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	quoteCurrencies := []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Normalize maps any accepted spelling onto the canonical compact form.
// Unparseable input falls back to an uppercased trim so unknown quote
// currencies still round-trip.
func Normalize(s string) string {
	if c := Parse(s).Canonical(); c != "" {
		return c
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeList dedupes and canonicalizes, preserving order.
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// IsValid reports whether the base/quote split is recognized.
func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
