package marketsdk

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcmarket/market-sdk-go/chain"
)

var (
	testCollection = common.HexToAddress("0xAAAA000000000000000000000000000000000001")
	testCurrency   = common.HexToAddress("0xBBBB000000000000000000000000000000000001")
)

func makeListing(hash byte, offerer common.Address, tokenID int64, price int64, endTime uint64, block uint64) Order {
	return Order{
		Hash:    hashN(hash),
		Offerer: offerer,
		Offer: []chain.OfferItem{{
			ItemType:             chain.ItemTypeERC721,
			Token:                testCollection,
			IdentifierOrCriteria: big.NewInt(tokenID),
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
		}},
		Consideration: []chain.ConsiderationItem{{
			ItemType:             chain.ItemTypeERC20,
			Token:                testCurrency,
			IdentifierOrCriteria: big.NewInt(0),
			StartAmount:          big.NewInt(price),
			EndAmount:            big.NewInt(price),
			Recipient:            offerer,
		}},
		Status:      chain.OrderStatusActive,
		EndTime:     endTime,
		BlockNumber: block,
	}
}

func makeBid(hash byte, offerer common.Address, tokenID int64, amount *big.Int, endTime uint64, block uint64) Order {
	return Order{
		Hash:    hashN(hash),
		Offerer: offerer,
		Offer: []chain.OfferItem{{
			ItemType:             chain.ItemTypeERC20,
			Token:                testCurrency,
			IdentifierOrCriteria: big.NewInt(0),
			StartAmount:          amount,
			EndAmount:            amount,
		}},
		Consideration: []chain.ConsiderationItem{{
			ItemType:             chain.ItemTypeERC721,
			Token:                testCollection,
			IdentifierOrCriteria: big.NewInt(tokenID),
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
			Recipient:            offerer,
		}},
		Status:      chain.OrderStatusActive,
		EndTime:     endTime,
		BlockNumber: block,
	}
}

func TestFindListingForTokenTieBreaksByBlock(t *testing.T) {
	offerer := common.HexToAddress("0x1234000000000000000000000000000000000001")
	future := uint64(time.Now().Add(time.Hour).Unix())

	orders := []Order{
		makeListing(1, offerer, 42, 10_000_000, future, 100),
		makeListing(2, offerer, 42, 12_000_000, future, 105),
		makeListing(3, offerer, 7, 99_000_000, future, 200), // different token
	}

	listing, ok := FindListingForToken(orders, testCollection, big.NewInt(42))
	if !ok {
		t.Fatal("expected a listing")
	}
	if listing.Hash != hashN(2) {
		t.Errorf("expected the block-105 listing to win, got %s at block %d", listing.Hash.Hex(), listing.BlockNumber)
	}
}

func TestFindListingForTokenNoMatch(t *testing.T) {
	offerer := common.HexToAddress("0x1234000000000000000000000000000000000001")
	future := uint64(time.Now().Add(time.Hour).Unix())

	orders := []Order{makeListing(1, offerer, 42, 10_000_000, future, 100)}

	if _, ok := FindListingForToken(orders, testCollection, big.NewInt(999)); ok {
		t.Error("expected no listing for an unlisted token")
	}
}

func TestOffersForTokenOrdering(t *testing.T) {
	now := time.Now()
	future := uint64(now.Add(time.Hour).Unix())

	bidders := []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000010"),
		common.HexToAddress("0x0000000000000000000000000000000000000020"),
		common.HexToAddress("0x0000000000000000000000000000000000000030"),
	}

	orders := []Order{
		makeBid(1, bidders[0], 42, big.NewInt(10), future, 100),
		makeBid(2, bidders[1], 42, big.NewInt(50), future, 101),
		makeBid(3, bidders[2], 42, big.NewInt(30), future, 102),
	}

	bids := OffersForToken(orders, testCollection, big.NewInt(42), now)
	if len(bids) != 3 {
		t.Fatalf("expected 3 bids, got %d", len(bids))
	}

	want := []int64{50, 30, 10}
	for i, amount := range want {
		if bids[i].Offer[0].StartAmount.Int64() != amount {
			t.Errorf("bid %d: expected amount %d, got %s", i, amount, bids[i].Offer[0].StartAmount)
		}
	}
}

func TestOffersForTokenSkipsExpiredAndTerminal(t *testing.T) {
	now := time.Now()
	future := uint64(now.Add(time.Hour).Unix())
	past := uint64(now.Add(-time.Hour).Unix())
	bidder := common.HexToAddress("0x0000000000000000000000000000000000000010")

	expired := makeBid(1, bidder, 42, big.NewInt(10), past, 100)
	cancelled := makeBid(2, bidder, 42, big.NewInt(20), future, 101)
	cancelled.Status = chain.OrderStatusCancelled
	open := makeBid(3, bidder, 42, big.NewInt(5), future, 102)

	bids := OffersForToken([]Order{expired, cancelled, open}, testCollection, big.NewInt(42), now)
	if len(bids) != 1 || bids[0].Hash != hashN(3) {
		t.Fatalf("expected only the open bid, got %d bids", len(bids))
	}
}

func TestUserOffer(t *testing.T) {
	now := time.Now()
	future := uint64(now.Add(time.Hour).Unix())

	me := common.HexToAddress("0x0000000000000000000000000000000000000010")
	other := common.HexToAddress("0x0000000000000000000000000000000000000020")

	orders := []Order{
		makeBid(1, other, 42, big.NewInt(50), future, 100),
		makeBid(2, me, 42, big.NewInt(30), future, 101),
	}

	bid, ok := UserOffer(orders, testCollection, big.NewInt(42), me, now)
	if !ok {
		t.Fatal("expected to find own bid")
	}
	if bid.Hash != hashN(2) {
		t.Errorf("wrong bid returned: %s", bid.Hash.Hex())
	}

	stranger := common.HexToAddress("0x0000000000000000000000000000000000000099")
	if _, ok := UserOffer(orders, testCollection, big.NewInt(42), stranger, now); ok {
		t.Error("expected no bid for an address that never bid")
	}
}

func TestComputeMarketStats(t *testing.T) {
	offerer := common.HexToAddress("0x1234000000000000000000000000000000000001")
	future := uint64(time.Now().Add(time.Hour).Unix())

	sold := makeListing(1, offerer, 1, 2_000_000, future, 100)
	sold.Status = chain.OrderStatusFulfilled
	soldAgain := makeListing(2, offerer, 2, 3_000_000, future, 101)
	soldAgain.Status = chain.OrderStatusFulfilled
	cancelled := makeListing(3, offerer, 3, 9_000_000, future, 102)
	cancelled.Status = chain.OrderStatusCancelled
	open := makeListing(4, offerer, 4, 1_000_000, future, 103)

	stats := ComputeMarketStats([]Order{sold, soldAgain, cancelled, open})

	if stats.TotalOrders != 4 || stats.Active != 1 || stats.Fulfilled != 2 || stats.Cancelled != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}

	volume := stats.VolumeByToken[testCurrency]
	if volume == nil || volume.Int64() != 5_000_000 {
		t.Errorf("expected volume 5000000, got %s", volume)
	}
}
