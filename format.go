package marketsdk

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a raw on-chain integer amount as a decimal string
// for the token's precision. Stablecoin-class tokens (up to 8 decimals)
// show 2 places, 18-decimal tokens show 4. The raw amount stays integer
// arithmetic throughout; only the final rendering is decimal.
func FormatAmount(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}

	places := int32(4)
	if decimals <= 8 {
		places = 2
	}

	return decimal.NewFromBigInt(amount, -decimals).StringFixed(places)
}

// FormatTimeRemaining buckets the time until endTime into days, hours or
// minutes. Anything at or below zero is "Expired".
func FormatTimeRemaining(endTime uint64, now time.Time) string {
	remaining := time.Duration(int64(endTime)-now.Unix()) * time.Second
	if remaining <= 0 {
		return "Expired"
	}

	days := int(remaining.Hours()) / 24
	hours := int(remaining.Hours()) % 24
	minutes := int(remaining.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
