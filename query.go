package marketsdk

import (
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcmarket/market-sdk-go/chain"
)

// Query functions are pure projections over a ledger snapshot. They take
// the order slice as an explicit argument, never cache and never touch the
// network; re-running them when the ledger changes is the caller's concern.

// FindListingForToken returns the listing for a specific token. When the
// token has been listed more than once the listing observed at the highest
// block number wins; on equal block numbers the most recently seen entry
// wins.
func FindListingForToken(orders []Order, contract common.Address, tokenID *big.Int) (Order, bool) {
	var (
		best  Order
		found bool
	)
	for _, order := range orders {
		if !order.IsListing() || !order.OffersToken(contract, tokenID) {
			continue
		}
		if !found || order.BlockNumber >= best.BlockNumber {
			best = order
			found = true
		}
	}
	return best, found
}

// OffersForToken returns all open bids against a token, highest bid first.
// Only active, unexpired ERC20-offer orders whose consideration demands the
// token qualify. Equal amounts keep their snapshot order.
func OffersForToken(orders []Order, contract common.Address, tokenID *big.Int, now time.Time) []Order {
	var bids []Order
	for _, order := range orders {
		if order.Status != chain.OrderStatusActive {
			continue
		}
		if order.EndTime <= uint64(now.Unix()) {
			continue
		}
		if !order.IsBid() || !order.DemandsToken(contract, tokenID) {
			continue
		}
		bids = append(bids, order)
	}

	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Offer[0].StartAmount.Cmp(bids[j].Offer[0].StartAmount) > 0
	})

	return bids
}

// UserOffer returns the caller's own bid among the open bids for a token,
// if any.
func UserOffer(orders []Order, contract common.Address, tokenID *big.Int, user common.Address, now time.Time) (Order, bool) {
	for _, bid := range OffersForToken(orders, contract, tokenID, now) {
		if bid.Offerer == user {
			return bid, true
		}
	}
	return Order{}, false
}

// MarketStats summarizes the full order set for volume/history displays.
type MarketStats struct {
	TotalOrders int
	Active      int
	Fulfilled   int
	Cancelled   int

	// VolumeByToken sums the payment amounts of fulfilled listings, keyed
	// by currency token.
	VolumeByToken map[common.Address]*big.Int
}

// ComputeMarketStats derives aggregate stats from a snapshot's AllOrders.
func ComputeMarketStats(orders []Order) MarketStats {
	stats := MarketStats{
		TotalOrders:   len(orders),
		VolumeByToken: make(map[common.Address]*big.Int),
	}

	for _, order := range orders {
		switch order.Status {
		case chain.OrderStatusActive:
			stats.Active++
		case chain.OrderStatusFulfilled:
			stats.Fulfilled++
			if payment, ok := order.PaymentItem(); ok {
				total, exists := stats.VolumeByToken[payment.Token]
				if !exists {
					total = new(big.Int)
					stats.VolumeByToken[payment.Token] = total
				}
				total.Add(total, payment.StartAmount)
			}
		case chain.OrderStatusCancelled:
			stats.Cancelled++
		}
	}

	return stats
}
