package marketsdk

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcmarket/market-sdk-go/chain"
)

// ActionState tracks a user-initiated signing action through its state
// machine. No shared state is written before StateSubmitting, so aborting
// at or before StateVerifyingHash is always safe.
type ActionState int

const (
	StateIdle ActionState = iota
	StateFetchingNonce
	StateBuildingTypedData
	StateAwaitingSignature
	StateVerifyingHash
	StateSubmitting
	StateConfirming
	StateSucceeded
	StateFailed
)

func (s ActionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingNonce:
		return "fetchingNonce"
	case StateBuildingTypedData:
		return "buildingTypedData"
	case StateAwaitingSignature:
		return "awaitingSignature"
	case StateVerifyingHash:
		return "verifyingHash"
	case StateSubmitting:
		return "submitting"
	case StateConfirming:
		return "confirming"
	case StateSucceeded:
		return "success"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("ActionState(%d)", int(s))
}

// ActionResult reports a completed registration or cancellation.
type ActionResult struct {
	TxHash    common.Hash
	OrderHash common.Hash
}

func (c *Client) setState(state ActionState) {
	c.logger.Debug("action state", "state", state.String())
	if c.onState != nil {
		c.onState(state)
	}
}

// OnStateChange installs a callback observing the signing state machine.
// Intended for UI progress surfaces; may be nil.
func (c *Client) OnStateChange(fn func(ActionState)) {
	c.onState = fn
}

// RegisterOrder runs the full signing and registration flow for an order:
// fetch a fresh nonce, build the typed-data message, request a signature,
// verify the local hash against the contract's own hash function, then
// submit and wait for inclusion.
//
// The hash check is a correctness gate: a signature whose hash the
// contract cannot reproduce must never be submitted.
func (c *Client) RegisterOrder(ctx context.Context, params *chain.OrderParameters) (*ActionResult, error) {
	// The nonce is read fresh for every attempt; caching it across actions
	// would open a signature replay window.
	c.setState(StateFetchingNonce)
	nonce, err := c.backend.Nonce(ctx, params.Offerer)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	c.setState(StateBuildingTypedData)
	message, err := chain.NewOrderMessage(params, nonce)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	localHash, err := message.Hash()
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	digest := chain.SignHash(chain.NewDomain(chainID), localHash)

	c.setState(StateAwaitingSignature)
	signature, err := c.signer.SignHash(ctx, digest)
	if err != nil {
		if errors.Is(err, chain.ErrSignatureRejected) {
			// Recoverable: nothing was submitted, the session continues.
			c.setState(StateIdle)
			return nil, err
		}
		c.setState(StateFailed)
		return nil, fmt.Errorf("signature request failed: %w", err)
	}

	c.setState(StateVerifyingHash)
	contractHash, err := c.backend.GetOrderHash(ctx, params, nonce)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("failed to fetch contract order hash: %w", err)
	}
	if contractHash != localHash {
		c.setState(StateFailed)
		return nil, &HashMismatchError{Local: localHash, Contract: contractHash}
	}

	c.setState(StateSubmitting)
	tx, err := c.backend.RegisterOrder(ctx, params, nonce, signature)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("failed to submit registration: %w", err)
	}

	c.setState(StateConfirming)
	if _, err := c.backend.WaitForReceipt(ctx, tx.Hash()); err != nil {
		if errors.Is(err, chain.ErrTxStatusUnknown) {
			// Already broadcast: report pending, not failed.
			return nil, err
		}
		c.setState(StateFailed)
		return nil, err
	}

	c.setState(StateSucceeded)
	c.logger.Info("order registered", "order_hash", localHash.Hex(), "tx", tx.Hash().Hex())

	return &ActionResult{TxHash: tx.Hash(), OrderHash: localHash}, nil
}

// CancelOrder signs and submits a cancellation for one of the connected
// address's own orders.
func (c *Client) CancelOrder(ctx context.Context, orderHash common.Hash) (*ActionResult, error) {
	offerer := c.signer.Address()

	c.setState(StateFetchingNonce)
	nonce, err := c.backend.Nonce(ctx, offerer)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	c.setState(StateBuildingTypedData)
	message := chain.NewCancellationMessage(offerer, orderHash, nonce)

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	digest := chain.SignHash(chain.NewDomain(chainID), message.Hash())

	c.setState(StateAwaitingSignature)
	signature, err := c.signer.SignHash(ctx, digest)
	if err != nil {
		if errors.Is(err, chain.ErrSignatureRejected) {
			c.setState(StateIdle)
			return nil, err
		}
		c.setState(StateFailed)
		return nil, fmt.Errorf("signature request failed: %w", err)
	}

	c.setState(StateSubmitting)
	tx, err := c.backend.CancelOrder(ctx, &chain.Cancellation{
		Offerer:   offerer,
		OrderHash: orderHash,
		Nonce:     nonce,
	}, signature)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("failed to submit cancellation: %w", err)
	}

	c.setState(StateConfirming)
	if _, err := c.backend.WaitForReceipt(ctx, tx.Hash()); err != nil {
		if errors.Is(err, chain.ErrTxStatusUnknown) {
			return nil, err
		}
		c.setState(StateFailed)
		return nil, err
	}

	c.setState(StateSucceeded)
	c.logger.Info("order cancelled", "order_hash", orderHash.Hex(), "tx", tx.Hash().Hex())

	return &ActionResult{TxHash: tx.Hash(), OrderHash: orderHash}, nil
}

// FulfillOrders signs one fulfillment message per order and submits them
// as a single atomic transaction.
func (c *Client) FulfillOrders(ctx context.Context, orderHashes []common.Hash) (common.Hash, error) {
	if len(orderHashes) == 0 {
		return common.Hash{}, ErrEmptyCart
	}
	fulfiller := c.signer.Address()

	c.setState(StateFetchingNonce)
	nonce, err := c.backend.Nonce(ctx, fulfiller)
	if err != nil {
		c.setState(StateFailed)
		return common.Hash{}, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		c.setState(StateFailed)
		return common.Hash{}, fmt.Errorf("failed to get chain ID: %w", err)
	}
	domain := chain.NewDomain(chainID)

	c.setState(StateBuildingTypedData)
	fulfillments := make([]chain.Fulfillment, len(orderHashes))
	digests := make([]common.Hash, len(orderHashes))
	for i, orderHash := range orderHashes {
		message := chain.NewFulfillmentMessage(fulfiller, orderHash, nonce)
		fulfillments[i] = chain.Fulfillment{
			Fulfiller: fulfiller,
			OrderHash: orderHash,
			Nonce:     nonce,
		}
		digests[i] = chain.SignHash(domain, message.Hash())
	}

	c.setState(StateAwaitingSignature)
	signatures := make([][]byte, len(digests))
	for i, digest := range digests {
		signature, err := c.signer.SignHash(ctx, digest)
		if err != nil {
			if errors.Is(err, chain.ErrSignatureRejected) {
				c.setState(StateIdle)
				return common.Hash{}, err
			}
			c.setState(StateFailed)
			return common.Hash{}, fmt.Errorf("signature request failed: %w", err)
		}
		signatures[i] = signature
	}

	c.setState(StateSubmitting)
	tx, err := c.backend.FulfillOrders(ctx, fulfillments, signatures)
	if err != nil {
		c.setState(StateFailed)
		return common.Hash{}, fmt.Errorf("failed to submit fulfillment: %w", err)
	}

	c.setState(StateConfirming)
	if _, err := c.backend.WaitForReceipt(ctx, tx.Hash()); err != nil {
		if errors.Is(err, chain.ErrTxStatusUnknown) {
			return tx.Hash(), err
		}
		c.setState(StateFailed)
		return common.Hash{}, err
	}

	c.setState(StateSucceeded)
	c.logger.Info("orders fulfilled", "count", len(orderHashes), "tx", tx.Hash().Hex())

	return tx.Hash(), nil
}

// ListingInput describes a listing to create: sell one NFT for a fixed
// currency price.
type ListingInput struct {
	Collection common.Address
	TokenID    *big.Int
	Currency   common.Address
	Price      *big.Int
	Duration   time.Duration

	// Opaque protocol fields, zero unless the platform dictates otherwise.
	Zone       common.Address
	ZoneHash   common.Hash
	ConduitKey common.Hash
}

// BidInput describes a bid to create: offer a currency amount for one
// specific NFT.
type BidInput struct {
	Collection common.Address
	TokenID    *big.Int
	Currency   common.Address
	Amount     *big.Int
	Duration   time.Duration

	Zone       common.Address
	ZoneHash   common.Hash
	ConduitKey common.Hash
}

// CreateListing builds and registers a listing order for the connected
// address.
func (c *Client) CreateListing(ctx context.Context, input ListingInput) (*ActionResult, error) {
	if input.TokenID == nil || input.Price == nil || input.Price.Sign() <= 0 {
		return nil, &InvalidParamError{Message: "token id and a positive price are required"}
	}

	offerer := c.signer.Address()
	now := time.Now().Unix()

	params := &chain.OrderParameters{
		Offerer: offerer,
		Zone:    input.Zone,
		Offer: []chain.OfferItem{{
			ItemType:             chain.ItemTypeERC721,
			Token:                input.Collection,
			IdentifierOrCriteria: input.TokenID,
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
		}},
		Consideration: []chain.ConsiderationItem{{
			ItemType:             chain.ItemTypeERC20,
			Token:                input.Currency,
			IdentifierOrCriteria: big.NewInt(0),
			StartAmount:          input.Price,
			EndAmount:            input.Price,
			Recipient:            offerer,
		}},
		OrderKind:  chain.OrderKindFullOpen,
		StartTime:  uint64(now),
		EndTime:    uint64(now + int64(input.Duration.Seconds())),
		ZoneHash:   input.ZoneHash,
		Salt:       generateSalt(),
		ConduitKey: input.ConduitKey,
	}

	return c.RegisterOrder(ctx, params)
}

// CreateBid builds and registers a bid order for the connected address.
func (c *Client) CreateBid(ctx context.Context, input BidInput) (*ActionResult, error) {
	if input.TokenID == nil || input.Amount == nil || input.Amount.Sign() <= 0 {
		return nil, &InvalidParamError{Message: "token id and a positive amount are required"}
	}

	offerer := c.signer.Address()
	now := time.Now().Unix()

	params := &chain.OrderParameters{
		Offerer: offerer,
		Zone:    input.Zone,
		Offer: []chain.OfferItem{{
			ItemType:             chain.ItemTypeERC20,
			Token:                input.Currency,
			IdentifierOrCriteria: big.NewInt(0),
			StartAmount:          input.Amount,
			EndAmount:            input.Amount,
		}},
		Consideration: []chain.ConsiderationItem{{
			ItemType:             chain.ItemTypeERC721,
			Token:                input.Collection,
			IdentifierOrCriteria: input.TokenID,
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
			Recipient:            offerer,
		}},
		OrderKind:  chain.OrderKindFullOpen,
		StartTime:  uint64(now),
		EndTime:    uint64(now + int64(input.Duration.Seconds())),
		ZoneHash:   input.ZoneHash,
		Salt:       generateSalt(),
		ConduitKey: input.ConduitKey,
	}

	return c.RegisterOrder(ctx, params)
}

func generateSalt() *big.Int {
	return new(big.Int).SetUint64(rand.Uint64())
}
