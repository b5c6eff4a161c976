package marketsdk

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func cartListing(hash byte, offerer common.Address, tokenID int64, price *big.Int) CartItem {
	listing := makeListing(hash, offerer, tokenID, 0, uint64(time.Now().Add(time.Hour).Unix()), 100)
	listing.Consideration[0].StartAmount = price
	listing.Consideration[0].EndAmount = price

	return CartItem{
		Listing: listing,
		Asset: AssetSummary{
			Contract: testCollection,
			TokenID:  big.NewInt(tokenID),
			Name:     "Test Asset",
		},
		CollectionName: "Test Collection",
	}
}

func TestCartAddIsIdempotentPerOrderHash(t *testing.T) {
	connected := common.HexToAddress("0x0000000000000000000000000000000000000001")
	seller := common.HexToAddress("0x0000000000000000000000000000000000000002")

	cart, err := NewCart(NewMemoryCartStore(), nil)
	if err != nil {
		t.Fatalf("NewCart: %v", err)
	}

	item := cartListing(1, seller, 42, big.NewInt(1_000_000))
	if err := cart.Add(item, connected); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := cart.Add(item, connected); !errors.Is(err, ErrDuplicateCartItem) {
		t.Errorf("expected ErrDuplicateCartItem, got %v", err)
	}

	if got := len(cart.Items(connected)); got != 1 {
		t.Errorf("expected exactly 1 item, got %d", got)
	}
}

func TestCartRejectsSelfOwnedListing(t *testing.T) {
	// Mixed-case and lower-case renderings of the same address must be
	// treated as equal once normalized.
	connected := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	sameAsConnected := common.HexToAddress("0x00000000000000000000000000000000DEADBEEF")

	cart, err := NewCart(NewMemoryCartStore(), nil)
	if err != nil {
		t.Fatalf("NewCart: %v", err)
	}

	item := cartListing(1, sameAsConnected, 42, big.NewInt(1_000_000))
	if err := cart.Add(item, connected); !errors.Is(err, ErrSelfOwnedListing) {
		t.Errorf("expected ErrSelfOwnedListing, got %v", err)
	}
	if got := len(cart.Items(connected)); got != 0 {
		t.Errorf("self-owned listing must never appear in items, got %d", got)
	}
}

func TestSameAddressNormalization(t *testing.T) {
	if !SameAddress("0xabc0000000000000000000000000000000000001", "0xABC0000000000000000000000000000000000001") {
		t.Error("case difference must not matter")
	}
	if SameAddress("0xabc0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000002") {
		t.Error("different addresses compared equal")
	}
}

func TestCartItemsEvictsStaleSelfOwnedEntries(t *testing.T) {
	seller := common.HexToAddress("0x0000000000000000000000000000000000000002")

	// Persisted cart from a previous session holds a listing by `seller`.
	store := NewMemoryCartStore()
	if err := store.Save([]CartItem{cartListing(1, seller, 42, big.NewInt(1_000_000))}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cart, err := NewCart(store, nil)
	if err != nil {
		t.Fatalf("NewCart: %v", err)
	}

	// The seller connects their own wallet: the entry is stale now and is
	// corrected silently.
	if got := len(cart.Items(seller)); got != 0 {
		t.Fatalf("expected stale self-owned item evicted, got %d items", got)
	}

	persisted, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("eviction must write through to the store, found %d items", len(persisted))
	}
}

func TestCartTotalsUseIntegerArithmetic(t *testing.T) {
	connected := common.HexToAddress("0x0000000000000000000000000000000000000001")
	seller := common.HexToAddress("0x0000000000000000000000000000000000000002")

	cart, err := NewCart(NewMemoryCartStore(), nil)
	if err != nil {
		t.Fatalf("NewCart: %v", err)
	}

	if err := cart.Add(cartListing(1, seller, 1, big.NewInt(1_500_000)), connected); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := cart.Add(cartListing(2, seller, 2, big.NewInt(2_500_000)), connected); err != nil {
		t.Fatalf("Add: %v", err)
	}

	totals := cart.Totals(connected)
	if len(totals) != 1 {
		t.Fatalf("expected one currency group, got %d", len(totals))
	}
	if totals[0].Token != testCurrency {
		t.Errorf("wrong token: %s", totals[0].Token.Hex())
	}
	if totals[0].Amount.Int64() != 4_000_000 {
		t.Errorf("expected 4000000, got %s", totals[0].Amount)
	}
	if got := FormatAmount(totals[0].Amount, 6); got != "4.00" {
		t.Errorf("expected display total 4.00, got %q", got)
	}
}

func TestCartTotalsLargeValuesNoDrift(t *testing.T) {
	connected := common.HexToAddress("0x0000000000000000000000000000000000000001")
	seller := common.HexToAddress("0x0000000000000000000000000000000000000002")

	cart, err := NewCart(NewMemoryCartStore(), nil)
	if err != nil {
		t.Fatalf("NewCart: %v", err)
	}

	// Two amounts of 2^62 must sum to exactly 2^63; any float64 detour
	// would lose the low bits.
	half := new(big.Int).Lsh(big.NewInt(1), 62)
	if err := cart.Add(cartListing(1, seller, 1, new(big.Int).Set(half)), connected); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := cart.Add(cartListing(2, seller, 2, new(big.Int).Set(half)), connected); err != nil {
		t.Fatalf("Add: %v", err)
	}

	want := new(big.Int).Lsh(big.NewInt(1), 63)
	totals := cart.Totals(connected)
	if len(totals) != 1 || totals[0].Amount.Cmp(want) != 0 {
		t.Fatalf("expected exact sum %s, got %+v", want, totals)
	}
}

func TestCartRemoveAndClear(t *testing.T) {
	connected := common.HexToAddress("0x0000000000000000000000000000000000000001")
	seller := common.HexToAddress("0x0000000000000000000000000000000000000002")

	cart, err := NewCart(NewMemoryCartStore(), nil)
	if err != nil {
		t.Fatalf("NewCart: %v", err)
	}

	first := cartListing(1, seller, 1, big.NewInt(100))
	second := cartListing(2, seller, 2, big.NewInt(200))
	if err := cart.Add(first, connected); err != nil {
		t.Fatal(err)
	}
	if err := cart.Add(second, connected); err != nil {
		t.Fatal(err)
	}

	if err := cart.Remove(first.Listing.Hash); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	items := cart.Items(connected)
	if len(items) != 1 || items[0].Listing.Hash != second.Listing.Hash {
		t.Fatalf("expected only the second item, got %d items", len(items))
	}

	if err := cart.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := len(cart.Items(connected)); got != 0 {
		t.Errorf("expected empty cart, got %d items", got)
	}
}

func TestSQLiteCartStoreRoundTrip(t *testing.T) {
	seller := common.HexToAddress("0x0000000000000000000000000000000000000002")
	path := filepath.Join(t.TempDir(), "cart.db")

	store, err := NewSQLiteCartStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteCartStore: %v", err)
	}

	items := []CartItem{
		cartListing(1, seller, 1, big.NewInt(1_500_000)),
		cartListing(2, seller, 2, big.NewInt(2_500_000)),
	}
	if err := store.Save(items); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh store over the same file sees the same items, as a new
	// session would.
	reopened, err := NewSQLiteCartStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	loaded, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded))
	}
	for i := range items {
		if loaded[i].Listing.Hash != items[i].Listing.Hash {
			t.Errorf("item %d: hash mismatch after round trip", i)
		}
		if loaded[i].Listing.Consideration[0].StartAmount.Cmp(items[i].Listing.Consideration[0].StartAmount) != 0 {
			t.Errorf("item %d: amount mismatch after round trip", i)
		}
	}
}
