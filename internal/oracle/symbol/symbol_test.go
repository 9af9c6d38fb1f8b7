package symbol

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"BTC", "BTCUSDT"},
		{"btc", "BTCUSDT"},
		{"BTC-USDT", "BTCUSDT"},
		{"BTC/USDT", "BTCUSDT"},
		{"eth_btc", "ETHBTC"},
		{"btcusdt", "BTCUSDT"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input, "USDT"); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		pair      string
		wantBase  string
		wantQuote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ETHBTC", "ETH", "BTC"},
		{"SOLUSD", "SOL", "USD"},
		{"XYZ", "XYZ", ""},
	}
	for _, tt := range tests {
		base, quote := Parse(tt.pair)
		if base != tt.wantBase || quote != tt.wantQuote {
			t.Errorf("Parse(%q) = (%q, %q), want (%q, %q)", tt.pair, base, quote, tt.wantBase, tt.wantQuote)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"BTC", "BTCUSDT", "btc-usdt", "ETH/BTC"}
	for _, s := range valid {
		if err := Validate(s); err != nil {
			t.Errorf("Validate(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "B", "BTC USDT", "BTC$", "ABCDEFGHIJKLMNOPQRSTUVWXYZ12345"}
	for _, s := range invalid {
		if err := Validate(s); err == nil {
			t.Errorf("Validate(%q) expected error", s)
		}
	}
}
