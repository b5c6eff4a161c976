package marketsdk

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrDuplicateCartItem means an order with the same hash is already in
	// the cart.
	ErrDuplicateCartItem = errors.New("order already in cart")

	// ErrSelfOwnedListing means the connected address is the offerer of the
	// listing and may not buy it.
	ErrSelfOwnedListing = errors.New("cannot add own listing to cart")

	// ErrEmptyCart means checkout was attempted with nothing valid to buy.
	ErrEmptyCart = errors.New("cart has no valid items")

	// ErrRefreshInProgress means a ledger refresh is already running; the
	// caller should wait for it instead of starting another scan.
	ErrRefreshInProgress = errors.New("ledger refresh already in progress")

	// ErrUnsupportedChain means the RPC endpoint reports a different chain
	// id than the one configured.
	ErrUnsupportedChain = errors.New("connected chain does not match configuration")
)

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

// HashMismatchError is fatal to a signing attempt: the locally computed
// order hash and the contract's hash for the same parameters differ, so the
// signature could never be verified on-chain. Nothing is submitted when
// this is returned.
type HashMismatchError struct {
	Local    common.Hash
	Contract common.Hash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("order hash mismatch: local %s vs contract %s", e.Local.Hex(), e.Contract.Hex())
}
