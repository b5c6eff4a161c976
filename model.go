package marketsdk

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcmarket/market-sdk-go/chain"
)

// Order is a ledger record: the contract's registered order details plus
// the derived status and the block the creation event was observed at.
// Orders are never deleted; terminal or expired ones just drop out of the
// listing views.
type Order struct {
	Hash          common.Hash               `json:"hash"`
	Offerer       common.Address            `json:"offerer"`
	Offer         []chain.OfferItem         `json:"offer"`
	Consideration []chain.ConsiderationItem `json:"consideration"`
	Status        chain.OrderStatus         `json:"status"`
	StartTime     uint64                    `json:"startTime"`
	EndTime       uint64                    `json:"endTime"`
	BlockNumber   uint64                    `json:"blockNumber"`
}

// IsListing reports whether the order offers up an NFT in exchange for
// payment.
func (o *Order) IsListing() bool {
	return len(o.Offer) == 1 && o.Offer[0].ItemType == chain.ItemTypeERC721
}

// IsBid reports whether the order offers currency against a specific NFT.
func (o *Order) IsBid() bool {
	if len(o.Offer) != 1 || o.Offer[0].ItemType != chain.ItemTypeERC20 {
		return false
	}
	for _, item := range o.Consideration {
		if item.ItemType == chain.ItemTypeERC721 {
			return true
		}
	}
	return false
}

// OffersToken reports whether the order's offer item is the given token.
func (o *Order) OffersToken(contract common.Address, tokenID *big.Int) bool {
	return len(o.Offer) == 1 &&
		o.Offer[0].Token == contract &&
		o.Offer[0].IdentifierOrCriteria != nil &&
		o.Offer[0].IdentifierOrCriteria.Cmp(tokenID) == 0
}

// DemandsToken reports whether any consideration item is the given token.
func (o *Order) DemandsToken(contract common.Address, tokenID *big.Int) bool {
	for _, item := range o.Consideration {
		if item.ItemType == chain.ItemTypeERC721 &&
			item.Token == contract &&
			item.IdentifierOrCriteria != nil &&
			item.IdentifierOrCriteria.Cmp(tokenID) == 0 {
			return true
		}
	}
	return false
}

// PaymentItem returns the first currency consideration item of a listing.
func (o *Order) PaymentItem() (chain.ConsiderationItem, bool) {
	for _, item := range o.Consideration {
		if item.ItemType == chain.ItemTypeERC20 || item.ItemType == chain.ItemTypeNative {
			return item, true
		}
	}
	return chain.ConsiderationItem{}, false
}

// AssetSummary is the minimal description of an NFT a cart item points at.
// Metadata resolution happens outside the SDK.
type AssetSummary struct {
	Contract common.Address `json:"contract"`
	TokenID  *big.Int       `json:"tokenId"`
	Name     string         `json:"name"`
	ImageURL string         `json:"imageUrl"`
}

// CartItem couples a listing with the asset it sells. Cart membership is
// keyed by the listing's order hash.
type CartItem struct {
	Listing        Order        `json:"listing"`
	Asset          AssetSummary `json:"asset"`
	CollectionName string       `json:"collectionName"`
}

// SameAddress compares two hex addresses ignoring case and padding.
func SameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}
