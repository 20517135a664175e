package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestScale(t *testing.T) {
	tests := map[string]int32{
		"USD": 2,
		"usd": 2,
		"EUR": 2,
		"JPY": 0,
		"KRW": 0,
		"???": 2,
	}
	for code, want := range tests {
		if got := Scale(code); got != want {
			t.Fatalf("Scale(%q) expected %d got %d", code, want, got)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		code string
		want string
	}{
		{"8.749125", "USD", "8.75"},
		{"8.745", "USD", "8.75"},
		{"8.7449", "USD", "8.74"},
		{"1234.5", "JPY", "1235"},
		{"0", "USD", "0"},
	}
	for _, tt := range tests {
		got := Round(decimal.RequireFromString(tt.in), tt.code)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("Round(%s, %s) expected %s got %s", tt.in, tt.code, tt.want, got)
		}
	}
}

func TestMinorUnits(t *testing.T) {
	if got := ToMinorUnits(decimal.RequireFromString("108.74"), "USD"); got != 10874 {
		t.Fatalf("expected 10874 cents, got %d", got)
	}
	if got := ToMinorUnits(decimal.RequireFromString("500"), "JPY"); got != 500 {
		t.Fatalf("expected 500 yen, got %d", got)
	}
	if got := FromMinorUnits(10874, "USD"); !got.Equal(decimal.RequireFromString("108.74")) {
		t.Fatalf("expected 108.74, got %s", got)
	}
}

func TestStringAndKnownCurrency(t *testing.T) {
	if got := String(decimal.NewFromInt(5), "USD"); got != "5.00" {
		t.Fatalf("expected 5.00, got %s", got)
	}
	if !IsKnownCurrency("usd") || IsKnownCurrency("XYZ1") {
		t.Fatal("unexpected currency recognition")
	}
}
