// Package symbol normalizes crypto trading pairs shared by the price providers.
package symbol

import (
	"fmt"
	"regexp"
	"strings"
)

// Common quote currencies in order of priority for detection
var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "USD", "BTC", "ETH", "BNB"}

var validPair = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

func strip(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	return strings.ReplaceAll(s, "_", "")
}

// Normalize converts "BTC", "btc", "BTC-USDT", "BTC/USDT" or "btcusdt" to "BTCUSDT".
func Normalize(input, defaultQuote string) string {
	if input == "" {
		return ""
	}
	s := strip(input)

	// A pair must keep a base currency in front of the quote.
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s
		}
	}
	return s + strings.ToUpper(defaultQuote)
}

// Parse splits a normalized symbol: "BTCUSDT" -> ("BTC", "USDT").
func Parse(pair string) (base, quote string) {
	s := strings.ToUpper(pair)

	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}

	if len(s) > 4 {
		return s[:len(s)-4], s[len(s)-4:]
	}
	return s, ""
}

// Validate checks if a symbol has a usable format.
func Validate(input string) error {
	if input == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(input) > 30 {
		return fmt.Errorf("symbol too long: %s", input)
	}
	if !validPair.MatchString(strip(input)) {
		return fmt.Errorf("invalid symbol format: %s", input)
	}
	return nil
}
