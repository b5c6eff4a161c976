package marketsdk

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// CartStore persists the cart item list across sessions. The cart carries
// no protocol authority, so a store losing data only costs the user their
// selection.
type CartStore interface {
	Load() ([]CartItem, error)
	Save(items []CartItem) error
}

// Cart is the client-side selection of listings to buy, keyed by order
// hash. Mutations write through to the store; reads re-validate persisted
// data against the currently connected address, since a stale cart may
// reference listings the new wallet owns.
type Cart struct {
	mu     sync.Mutex
	store  CartStore
	items  []CartItem
	logger *slog.Logger
}

// NewCart creates a cart initialized from the store.
func NewCart(store CartStore, logger *slog.Logger) (*Cart, error) {
	if logger == nil {
		logger = nopLogger()
	}

	items, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	return &Cart{store: store, items: items, logger: logger}, nil
}

// Add inserts a listing into the cart. Duplicate order hashes and listings
// owned by the connected address are rejected.
func (c *Cart) Add(item CartItem, connected common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item.Listing.Offerer == connected {
		return ErrSelfOwnedListing
	}
	for _, existing := range c.items {
		if existing.Listing.Hash == item.Listing.Hash {
			return ErrDuplicateCartItem
		}
	}

	c.items = append(c.items, item)
	return c.persist()
}

// Remove drops the item with the given order hash, if present.
func (c *Cart) Remove(orderHash common.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, item := range c.items {
		if item.Listing.Hash == orderHash {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return c.persist()
		}
	}
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	return c.persist()
}

// Items returns the cart contents valid for the connected address.
// Self-owned or duplicated entries found in persisted data are evicted
// silently: that is stale data hygiene, not a user mistake to surface.
func (c *Cart) Items(connected common.Address) []CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[common.Hash]bool)
	valid := c.items[:0:0]
	evicted := false

	for _, item := range c.items {
		if item.Listing.Offerer == connected || seen[item.Listing.Hash] {
			evicted = true
			c.logger.Debug("evicting invalid cart item", "order_hash", item.Listing.Hash.Hex())
			continue
		}
		seen[item.Listing.Hash] = true
		valid = append(valid, item)
	}

	if evicted {
		c.items = valid
		if err := c.persist(); err != nil {
			c.logger.Warn("failed to persist cart eviction", "err", err)
		}
	}

	out := make([]CartItem, len(valid))
	copy(out, valid)
	return out
}

// CurrencyTotal is the summed payment amount for one currency token.
type CurrencyTotal struct {
	Token  common.Address
	Amount *big.Int
}

// Totals groups cart items by payment token and sums the raw integer
// amounts. On-chain amounts never pass through floating point; formatting
// happens once, at the caller's edge.
func (c *Cart) Totals(connected common.Address) []CurrencyTotal {
	items := c.Items(connected)

	byToken := make(map[common.Address]*big.Int)
	for _, item := range items {
		payment, ok := item.Listing.PaymentItem()
		if !ok {
			continue
		}
		total, exists := byToken[payment.Token]
		if !exists {
			total = new(big.Int)
			byToken[payment.Token] = total
		}
		total.Add(total, payment.StartAmount)
	}

	totals := make([]CurrencyTotal, 0, len(byToken))
	for token, amount := range byToken {
		totals = append(totals, CurrencyTotal{Token: token, Amount: amount})
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Token.Hex() < totals[j].Token.Hex()
	})

	return totals
}

// persist writes the current item list through to the store. Callers hold
// c.mu.
func (c *Cart) persist() error {
	if err := c.store.Save(c.items); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}

var errCorruptCartPayload = errors.New("corrupt cart payload")
