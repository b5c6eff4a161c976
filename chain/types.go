package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ItemType identifies what kind of asset an offer or consideration item
// carries. The *WithCriteria variants reference a merkle root of accepted
// identifiers instead of a single identifier.
type ItemType int

const (
	ItemTypeNative ItemType = iota
	ItemTypeERC20
	ItemTypeERC721
	ItemTypeERC1155
	ItemTypeERC721WithCriteria
	ItemTypeERC1155WithCriteria
)

// OrderKind controls fill semantics: open vs restricted execution and
// full vs partial fills.
type OrderKind int

const (
	OrderKindFullOpen OrderKind = iota
	OrderKindPartialOpen
	OrderKindFullRestricted
	OrderKindPartialRestricted
)

// OrderStatus is the lifecycle status of a registered order.
type OrderStatus int

const (
	OrderStatusActive OrderStatus = iota
	OrderStatusFulfilled
	OrderStatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusActive:
		return "active"
	case OrderStatusFulfilled:
		return "fulfilled"
	case OrderStatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

// OfferItem is the single item an offerer gives up.
type OfferItem struct {
	ItemType             ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
}

// ConsiderationItem is an item demanded in return, paid to Recipient.
type ConsiderationItem struct {
	ItemType             ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
	Recipient            common.Address
}

// OrderParameters is the full symbolic form of an order as the SDK works
// with it. Zone, ZoneHash, Salt and ConduitKey are opaque protocol fields
// that must round-trip through hashing and registration unchanged.
type OrderParameters struct {
	Offerer       common.Address
	Zone          common.Address
	Offer         []OfferItem
	Consideration []ConsiderationItem
	OrderKind     OrderKind
	StartTime     uint64
	EndTime       uint64
	ZoneHash      common.Hash
	Salt          *big.Int
	ConduitKey    common.Hash
}

// OrderDetails is the contract's view of a registered order as returned by
// get_order_details.
type OrderDetails struct {
	Offerer       common.Address
	Offer         []OfferItem
	Consideration []ConsiderationItem
	Status        OrderStatus
	StartTime     uint64
	EndTime       uint64
}

// Cancellation identifies an order to cancel on behalf of its offerer.
type Cancellation struct {
	Offerer   common.Address
	OrderHash common.Hash
	Nonce     *big.Int
}

// Fulfillment identifies an order a fulfiller wants to execute.
type Fulfillment struct {
	Fulfiller common.Address
	OrderHash common.Hash
	Nonce     *big.Int
}

// Wire enum codec.
//
// The contract serializes the item-type and order-kind enums as short
// strings left-padded into a bytes32 word. Encoding happens only when
// building calldata, decoding only when reading order details back; both
// directions go through these tables so they cannot drift apart.
var (
	itemTypeWire = map[ItemType]string{
		ItemTypeNative:              "NATIVE",
		ItemTypeERC20:               "ERC20",
		ItemTypeERC721:              "ERC721",
		ItemTypeERC1155:             "ERC1155",
		ItemTypeERC721WithCriteria:  "ERC721_WITH_CRITERIA",
		ItemTypeERC1155WithCriteria: "ERC1155_WITH_CRITERIA",
	}

	orderKindWire = map[OrderKind]string{
		OrderKindFullOpen:          "FULL_OPEN",
		OrderKindPartialOpen:       "PARTIAL_OPEN",
		OrderKindFullRestricted:    "FULL_RESTRICTED",
		OrderKindPartialRestricted: "PARTIAL_RESTRICTED",
	}

	orderStatusWire = map[OrderStatus]string{
		OrderStatusActive:    "ACTIVE",
		OrderStatusFulfilled: "FULFILLED",
		OrderStatusCancelled: "CANCELLED",
	}

	wireItemType    = invert(itemTypeWire)
	wireOrderKind   = invert(orderKindWire)
	wireOrderStatus = invert(orderStatusWire)
)

func invert[K comparable](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// EncodeShortString packs an ASCII string into a bytes32 word, left-padded
// with zeros. Strings longer than 31 bytes do not fit on the wire.
func EncodeShortString(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) > 31 {
		return out, fmt.Errorf("short string exceeds 31 bytes: %q", s)
	}
	copy(out[32-len(s):], s)
	return out, nil
}

// DecodeShortString strips the zero padding from a bytes32 short string.
func DecodeShortString(w [32]byte) string {
	i := 0
	for i < 32 && w[i] == 0 {
		i++
	}
	return string(w[i:])
}

// EncodeItemType converts a symbolic item type to its wire form.
func EncodeItemType(t ItemType) ([32]byte, error) {
	s, ok := itemTypeWire[t]
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: item type %d", ErrUnknownEnumValue, t)
	}
	return EncodeShortString(s)
}

// DecodeItemType converts a wire item type back to its symbolic form.
func DecodeItemType(w [32]byte) (ItemType, error) {
	t, ok := wireItemType[DecodeShortString(w)]
	if !ok {
		return 0, fmt.Errorf("%w: item type %q", ErrUnknownEnumValue, DecodeShortString(w))
	}
	return t, nil
}

// EncodeOrderKind converts a symbolic order kind to its wire form.
func EncodeOrderKind(k OrderKind) ([32]byte, error) {
	s, ok := orderKindWire[k]
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: order kind %d", ErrUnknownEnumValue, k)
	}
	return EncodeShortString(s)
}

// DecodeOrderKind converts a wire order kind back to its symbolic form.
func DecodeOrderKind(w [32]byte) (OrderKind, error) {
	k, ok := wireOrderKind[DecodeShortString(w)]
	if !ok {
		return 0, fmt.Errorf("%w: order kind %q", ErrUnknownEnumValue, DecodeShortString(w))
	}
	return k, nil
}

// DecodeOrderStatus converts a wire order status back to its symbolic form.
func DecodeOrderStatus(w [32]byte) (OrderStatus, error) {
	s, ok := wireOrderStatus[DecodeShortString(w)]
	if !ok {
		return 0, fmt.Errorf("%w: order status %q", ErrUnknownEnumValue, DecodeShortString(w))
	}
	return s, nil
}

// Event signatures the ledger filters on. The contract indexes the order
// hash as the first topic after the signature, and the offerer (or
// fulfiller) as the second.
var (
	OrderCreatedSig   = crypto.Keccak256Hash([]byte("OrderCreated(bytes32,address)"))
	OrderFulfilledSig = crypto.Keccak256Hash([]byte("OrderFulfilled(bytes32,address)"))
	OrderCancelledSig = crypto.Keccak256Hash([]byte("OrderCancelled(bytes32,address)"))
)

const offerItemComponents = `[
	{"name": "item_type", "type": "bytes32"},
	{"name": "token", "type": "address"},
	{"name": "identifier_or_criteria", "type": "uint256"},
	{"name": "start_amount", "type": "uint256"},
	{"name": "end_amount", "type": "uint256"}
]`

const considerationItemComponents = `[
	{"name": "item_type", "type": "bytes32"},
	{"name": "token", "type": "address"},
	{"name": "identifier_or_criteria", "type": "uint256"},
	{"name": "start_amount", "type": "uint256"},
	{"name": "end_amount", "type": "uint256"},
	{"name": "recipient", "type": "address"}
]`

var orderParametersComponents = `[
	{"name": "zone", "type": "address"},
	{"name": "offer", "type": "tuple[]", "components": ` + offerItemComponents + `},
	{"name": "consideration", "type": "tuple[]", "components": ` + considerationItemComponents + `},
	{"name": "order_kind", "type": "bytes32"},
	{"name": "start_time", "type": "uint256"},
	{"name": "end_time", "type": "uint256"},
	{"name": "zone_hash", "type": "bytes32"},
	{"name": "salt", "type": "uint256"},
	{"name": "conduit_key", "type": "bytes32"},
	{"name": "total_original_consideration_items", "type": "uint256"},
	{"name": "nonce", "type": "uint256"}
]`

// Exchange ABI. The offerer is not part of the parameters tuple: the
// contract derives it from the caller on register/cancel and takes it
// explicitly on get_order_hash.
var exchangeABIJSON = `[
	{
		"name": "nonces",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "offerer", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"name": "get_order_hash",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "parameters", "type": "tuple", "components": ` + orderParametersComponents + `},
			{"name": "offerer", "type": "address"}
		],
		"outputs": [{"name": "", "type": "bytes32"}]
	},
	{
		"name": "get_order_details",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "order_hash", "type": "bytes32"}],
		"outputs": [
			{"name": "offerer", "type": "address"},
			{"name": "offer", "type": "tuple[]", "components": ` + offerItemComponents + `},
			{"name": "consideration", "type": "tuple[]", "components": ` + considerationItemComponents + `},
			{"name": "order_status", "type": "bytes32"},
			{"name": "start_time", "type": "uint256"},
			{"name": "end_time", "type": "uint256"}
		]
	},
	{
		"name": "register_order",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "parameters", "type": "tuple", "components": ` + orderParametersComponents + `},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"name": "cancel_order",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "cancelation", "type": "tuple", "components": [
				{"name": "order_hash", "type": "bytes32"},
				{"name": "nonce", "type": "uint256"}
			]},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"name": "fulfill_orders",
		"type": "function",
		"stateMutability": "payable",
		"inputs": [
			{"name": "fulfillments", "type": "tuple[]", "components": [
				{"name": "order_hash", "type": "bytes32"},
				{"name": "nonce", "type": "uint256"}
			]},
			{"name": "signatures", "type": "bytes[]"}
		],
		"outputs": []
	}
]`

// GetExchangeABI returns the parsed exchange contract ABI.
func GetExchangeABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(exchangeABIJSON))
	if err != nil {
		panic("failed to parse exchange ABI: " + err.Error())
	}
	return parsed
}

// EncodedOfferItem is the ABI wire form of an OfferItem.
type EncodedOfferItem struct {
	ItemType             [32]byte
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
}

// EncodedConsiderationItem is the ABI wire form of a ConsiderationItem.
type EncodedConsiderationItem struct {
	ItemType             [32]byte
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
	Recipient            common.Address
}

// EncodedOrderParameters is the ABI wire form of the parameters tuple,
// with the fresh nonce folded in.
type EncodedOrderParameters struct {
	Zone                            common.Address
	Offer                           []EncodedOfferItem
	Consideration                   []EncodedConsiderationItem
	OrderKind                       [32]byte
	StartTime                       *big.Int
	EndTime                         *big.Int
	ZoneHash                        [32]byte
	Salt                            *big.Int
	ConduitKey                      [32]byte
	TotalOriginalConsiderationItems *big.Int
	Nonce                           *big.Int
}

// EncodeOrderParameters converts symbolic order parameters to their wire
// form. Encoding happens exactly once, at submission time.
func EncodeOrderParameters(params *OrderParameters, nonce *big.Int) (*EncodedOrderParameters, error) {
	kind, err := EncodeOrderKind(params.OrderKind)
	if err != nil {
		return nil, err
	}

	offer := make([]EncodedOfferItem, len(params.Offer))
	for i, item := range params.Offer {
		it, err := EncodeItemType(item.ItemType)
		if err != nil {
			return nil, err
		}
		offer[i] = EncodedOfferItem{
			ItemType:             it,
			Token:                item.Token,
			IdentifierOrCriteria: item.IdentifierOrCriteria,
			StartAmount:          item.StartAmount,
			EndAmount:            item.EndAmount,
		}
	}

	consideration := make([]EncodedConsiderationItem, len(params.Consideration))
	for i, item := range params.Consideration {
		it, err := EncodeItemType(item.ItemType)
		if err != nil {
			return nil, err
		}
		consideration[i] = EncodedConsiderationItem{
			ItemType:             it,
			Token:                item.Token,
			IdentifierOrCriteria: item.IdentifierOrCriteria,
			StartAmount:          item.StartAmount,
			EndAmount:            item.EndAmount,
			Recipient:            item.Recipient,
		}
	}

	return &EncodedOrderParameters{
		Zone:                            params.Zone,
		Offer:                           offer,
		Consideration:                   consideration,
		OrderKind:                       kind,
		StartTime:                       new(big.Int).SetUint64(params.StartTime),
		EndTime:                         new(big.Int).SetUint64(params.EndTime),
		ZoneHash:                        params.ZoneHash,
		Salt:                            params.Salt,
		ConduitKey:                      params.ConduitKey,
		TotalOriginalConsiderationItems: big.NewInt(int64(len(params.Consideration))),
		Nonce:                           nonce,
	}, nil
}
