package marketsdk

import (
	"math/big"
	"testing"
	"time"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals int32
		want     string
	}{
		{"stablecoin two places", big.NewInt(2_500_000), 6, "2.50"},
		{"stablecoin whole", big.NewInt(4_000_000), 6, "4.00"},
		{"stablecoin rounding", big.NewInt(1_235_000), 6, "1.24"},
		{"eighteen decimals four places", big.NewInt(1_500_000_000_000_000_000), 18, "1.5000"},
		{"eighteen decimals fraction", new(big.Int).SetUint64(123_450_000_000_000_000), 18, "0.1235"},
		{"zero", big.NewInt(0), 6, "0.00"},
		{"nil", nil, 6, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAmount(tt.amount, tt.decimals); got != tt.want {
				t.Errorf("FormatAmount(%s, %d) = %q, want %q", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatAmountLargeValuesExact(t *testing.T) {
	// 2^63 on a 6-decimal token; float64 cannot represent this exactly.
	amount := new(big.Int).Lsh(big.NewInt(1), 63)

	if got := FormatAmount(amount, 6); got != "9223372036854.78" {
		t.Errorf("FormatAmount(2^63, 6) = %q, want %q", got, "9223372036854.78")
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		end  uint64
		want string
	}{
		{"expired", uint64(now.Add(-time.Minute).Unix()), "Expired"},
		{"exactly now", uint64(now.Unix()), "Expired"},
		{"minutes", uint64(now.Add(25 * time.Minute).Unix()), "25m"},
		{"hours and minutes", uint64(now.Add(3*time.Hour + 10*time.Minute).Unix()), "3h 10m"},
		{"days and hours", uint64(now.Add(49 * time.Hour).Unix()), "2d 1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimeRemaining(tt.end, now); got != tt.want {
				t.Errorf("FormatTimeRemaining = %q, want %q", got, tt.want)
			}
		})
	}
}
