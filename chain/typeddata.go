package chain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Typed-data related errors
var (
	ErrUnknownEnumValue = errors.New("unknown enum value")
	ErrMissingSalt      = errors.New("order salt is required")
	ErrEmptyOffer       = errors.New("order must have exactly one offer item")
	ErrNoConsideration  = errors.New("order must have at least one consideration item")
)

// Domain constants shared by all three message kinds. The chain id is
// deliberately absent here: it comes from the connected network per call.
const (
	DomainName    = "ArcMarket"
	DomainVersion = "1.1"
)

// DomainRevision distinguishes incompatible revisions of the typed-data
// layout on the verifier side.
var DomainRevision = big.NewInt(1)

// Pre-computed type hashes. The field order inside each type string matches
// the verifying contract's struct layout exactly; it is part of the hash
// domain, not a cosmetic choice.
var (
	DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,uint256 revision)",
	))

	OfferItemTypeHash = crypto.Keccak256Hash([]byte(
		"OfferItem(bytes32 item_type,address token,uint256 identifier_or_criteria,uint256 start_amount,uint256 end_amount)",
	))

	ConsiderationItemTypeHash = crypto.Keccak256Hash([]byte(
		"ConsiderationItem(bytes32 item_type,address token,uint256 identifier_or_criteria,uint256 start_amount,uint256 end_amount,address recipient)",
	))

	OrderComponentsTypeHash = crypto.Keccak256Hash([]byte(
		"OrderComponents(address offerer,address zone,OfferItem[] offer,ConsiderationItem[] consideration,bytes32 order_kind,uint256 start_time,uint256 end_time,bytes32 zone_hash,uint256 salt,bytes32 conduit_key,uint256 total_original_consideration_items,uint256 nonce)" +
			"ConsiderationItem(bytes32 item_type,address token,uint256 identifier_or_criteria,uint256 start_amount,uint256 end_amount,address recipient)" +
			"OfferItem(bytes32 item_type,address token,uint256 identifier_or_criteria,uint256 start_amount,uint256 end_amount)",
	))

	FulfillmentTypeHash = crypto.Keccak256Hash([]byte(
		"Fulfillment(address fulfiller,bytes32 order_hash,uint256 nonce)",
	))

	CancellationTypeHash = crypto.Keccak256Hash([]byte(
		"Cancellation(address offerer,bytes32 order_hash,uint256 nonce)",
	))
)

// Domain is the typed-data domain separator shared by order, fulfillment
// and cancellation messages.
type Domain struct {
	Name     string
	Version  string
	ChainID  *big.Int
	Revision *big.Int
}

// NewDomain creates the standard domain for the given chain id.
func NewDomain(chainID *big.Int) *Domain {
	return &Domain{
		Name:     DomainName,
		Version:  DomainVersion,
		ChainID:  chainID,
		Revision: DomainRevision,
	}
}

// Hash computes the domain separator hash.
func (d *Domain) Hash() common.Hash {
	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: uint256Type}, // revision
	}

	encoded, err := arguments.Pack(
		DomainTypeHash,
		nameHash,
		versionHash,
		d.ChainID,
		d.Revision,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// OrderMessage is the typed-data form of order parameters with the fresh
// nonce folded in. Building and hashing it is pure: identical input always
// produces an identical hash, which is what makes the local-vs-contract
// hash comparison meaningful.
type OrderMessage struct {
	Params *OrderParameters
	Nonce  *big.Int
}

// NewOrderMessage builds the order-parameters message for signing.
func NewOrderMessage(params *OrderParameters, nonce *big.Int) (*OrderMessage, error) {
	if params.Salt == nil {
		return nil, ErrMissingSalt
	}
	if len(params.Offer) != 1 {
		return nil, ErrEmptyOffer
	}
	if len(params.Consideration) == 0 {
		return nil, ErrNoConsideration
	}
	return &OrderMessage{Params: params, Nonce: nonce}, nil
}

func hashOfferItem(item *OfferItem) (common.Hash, error) {
	itemType, err := EncodeItemType(item.ItemType)
	if err != nil {
		return common.Hash{}, err
	}

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // item_type
		{Type: addressType}, // token
		{Type: uint256Type}, // identifier_or_criteria
		{Type: uint256Type}, // start_amount
		{Type: uint256Type}, // end_amount
	}

	encoded, err := arguments.Pack(
		OfferItemTypeHash,
		itemType,
		item.Token,
		item.IdentifierOrCriteria,
		item.StartAmount,
		item.EndAmount,
	)
	if err != nil {
		panic("failed to encode offer item: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded), nil
}

func hashConsiderationItem(item *ConsiderationItem) (common.Hash, error) {
	itemType, err := EncodeItemType(item.ItemType)
	if err != nil {
		return common.Hash{}, err
	}

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // item_type
		{Type: addressType}, // token
		{Type: uint256Type}, // identifier_or_criteria
		{Type: uint256Type}, // start_amount
		{Type: uint256Type}, // end_amount
		{Type: addressType}, // recipient
	}

	encoded, err := arguments.Pack(
		ConsiderationItemTypeHash,
		itemType,
		item.Token,
		item.IdentifierOrCriteria,
		item.StartAmount,
		item.EndAmount,
		item.Recipient,
	)
	if err != nil {
		panic("failed to encode consideration item: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded), nil
}

// Hash computes the struct hash for the order message. Struct arrays hash
// as the keccak of their concatenated element hashes.
func (m *OrderMessage) Hash() (common.Hash, error) {
	orderKind, err := EncodeOrderKind(m.Params.OrderKind)
	if err != nil {
		return common.Hash{}, err
	}

	var offerHashes []byte
	for i := range m.Params.Offer {
		h, err := hashOfferItem(&m.Params.Offer[i])
		if err != nil {
			return common.Hash{}, err
		}
		offerHashes = append(offerHashes, h.Bytes()...)
	}
	offerHash := crypto.Keccak256Hash(offerHashes)

	var considerationHashes []byte
	for i := range m.Params.Consideration {
		h, err := hashConsiderationItem(&m.Params.Consideration[i])
		if err != nil {
			return common.Hash{}, err
		}
		considerationHashes = append(considerationHashes, h.Bytes()...)
	}
	considerationHash := crypto.Keccak256Hash(considerationHashes)

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // offerer
		{Type: addressType}, // zone
		{Type: bytes32Type}, // offer array hash
		{Type: bytes32Type}, // consideration array hash
		{Type: bytes32Type}, // order_kind
		{Type: uint256Type}, // start_time
		{Type: uint256Type}, // end_time
		{Type: bytes32Type}, // zone_hash
		{Type: uint256Type}, // salt
		{Type: bytes32Type}, // conduit_key
		{Type: uint256Type}, // total_original_consideration_items
		{Type: uint256Type}, // nonce
	}

	encoded, err := arguments.Pack(
		OrderComponentsTypeHash,
		m.Params.Offerer,
		m.Params.Zone,
		offerHash,
		considerationHash,
		orderKind,
		new(big.Int).SetUint64(m.Params.StartTime),
		new(big.Int).SetUint64(m.Params.EndTime),
		m.Params.ZoneHash,
		m.Params.Salt,
		m.Params.ConduitKey,
		big.NewInt(int64(len(m.Params.Consideration))),
		m.Nonce,
	)
	if err != nil {
		panic("failed to encode order components: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded), nil
}

// FulfillmentMessage is the typed-data form of an order fulfillment.
type FulfillmentMessage struct {
	Fulfiller common.Address
	OrderHash common.Hash
	Nonce     *big.Int
}

// NewFulfillmentMessage builds the fulfillment message for signing.
func NewFulfillmentMessage(fulfiller common.Address, orderHash common.Hash, nonce *big.Int) *FulfillmentMessage {
	return &FulfillmentMessage{Fulfiller: fulfiller, OrderHash: orderHash, Nonce: nonce}
}

// Hash computes the struct hash for the fulfillment message.
func (m *FulfillmentMessage) Hash() common.Hash {
	return hashActorOrderNonce(FulfillmentTypeHash, m.Fulfiller, m.OrderHash, m.Nonce)
}

// CancellationMessage is the typed-data form of an order cancellation.
type CancellationMessage struct {
	Offerer   common.Address
	OrderHash common.Hash
	Nonce     *big.Int
}

// NewCancellationMessage builds the cancellation message for signing.
func NewCancellationMessage(offerer common.Address, orderHash common.Hash, nonce *big.Int) *CancellationMessage {
	return &CancellationMessage{Offerer: offerer, OrderHash: orderHash, Nonce: nonce}
}

// Hash computes the struct hash for the cancellation message.
func (m *CancellationMessage) Hash() common.Hash {
	return hashActorOrderNonce(CancellationTypeHash, m.Offerer, m.OrderHash, m.Nonce)
}

// Fulfillment and cancellation share the same (actor, order_hash, nonce)
// layout under different type hashes.
func hashActorOrderNonce(typeHash common.Hash, actor common.Address, orderHash common.Hash, nonce *big.Int) common.Hash {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // actor
		{Type: bytes32Type}, // order_hash
		{Type: uint256Type}, // nonce
	}

	encoded, err := arguments.Pack(typeHash, actor, orderHash, nonce)
	if err != nil {
		panic("failed to encode message: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// SignHash computes the final digest to sign:
// keccak256("\x19\x01" ++ domainSeparator ++ structHash).
func SignHash(domain *Domain, structHash common.Hash) common.Hash {
	domainSeparator := domain.Hash()

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)

	return crypto.Keccak256Hash(data)
}
