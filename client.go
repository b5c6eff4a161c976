package marketsdk

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/arcmarket/market-sdk-go/chain"
)

// ContractBackend is the full exchange surface the client needs.
// *chain.ContractCaller implements it; tests substitute fakes.
type ContractBackend interface {
	ContractReader

	ChainID(ctx context.Context) (*big.Int, error)
	Nonce(ctx context.Context, offerer common.Address) (*big.Int, error)
	GetOrderHash(ctx context.Context, params *chain.OrderParameters, nonce *big.Int) (common.Hash, error)
	RegisterOrder(ctx context.Context, params *chain.OrderParameters, nonce *big.Int, signature []byte) (*types.Transaction, error)
	CancelOrder(ctx context.Context, cancellation *chain.Cancellation, signature []byte) (*types.Transaction, error)
	FulfillOrders(ctx context.Context, fulfillments []chain.Fulfillment, signatures [][]byte) (*types.Transaction, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client is the main SDK entry point, wiring the contract backend, the
// message signer, the event-sourced ledger and the cart together.
type Client struct {
	backend ContractBackend
	signer  chain.Signer
	ledger  *Ledger
	cart    *Cart
	chainID *big.Int
	logger  *slog.Logger
	onState func(ActionState)

	closer interface{ Close() }
}

// NewClient creates a client from configuration.
func NewClient(cfg *Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger(cfg)

	caller, err := chain.NewContractCaller(
		cfg.Chain.RPCURL,
		cfg.Chain.PrivateKey,
		cfg.Exchange.Address,
		cfg.Exchange.DeployBlock,
		cfg.Events.LogWindow,
		cfg.Events.MaxWindows,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract caller: %w", err)
	}

	signer, err := chain.NewLocalSigner(cfg.Chain.PrivateKey)
	if err != nil {
		caller.Close()
		return nil, err
	}

	var store CartStore
	if cfg.Cart.DBPath != "" {
		store, err = NewSQLiteCartStore(cfg.Cart.DBPath)
		if err != nil {
			caller.Close()
			return nil, err
		}
	} else {
		store = NewMemoryCartStore()
	}

	cart, err := NewCart(store, logger)
	if err != nil {
		caller.Close()
		return nil, err
	}

	return &Client{
		backend: caller,
		signer:  signer,
		ledger:  NewLedger(caller, logger),
		cart:    cart,
		chainID: big.NewInt(cfg.Chain.ID),
		logger:  logger,
		closer:  caller,
	}, nil
}

// VerifyChain checks that the RPC endpoint serves the configured chain.
// Call it once after construction; signing against the wrong chain would
// only fail later, at the hash-verification gate.
func (c *Client) VerifyChain(ctx context.Context) error {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if chainID.Cmp(c.chainID) != 0 {
		return fmt.Errorf("%w: configured %s, connected %s", ErrUnsupportedChain, c.chainID, chainID)
	}
	return nil
}

// Address returns the connected signing address.
func (c *Client) Address() common.Address {
	return c.signer.Address()
}

// Ledger returns the event-sourced order ledger.
func (c *Client) Ledger() *Ledger {
	return c.ledger
}

// Cart returns the persisted cart.
func (c *Client) Cart() *Cart {
	return c.cart
}

// AddToCart inserts a listing into the cart for the connected address.
func (c *Client) AddToCart(item CartItem) error {
	return c.cart.Add(item, c.signer.Address())
}

// Checkout submits every valid cart item as one atomic fulfillment batch.
// Invalid (self-owned) items are evicted first rather than failing the
// purchase. On success the cart is cleared; on failure it is left intact
// so the user can retry.
func (c *Client) Checkout(ctx context.Context) (common.Hash, error) {
	items := c.cart.Items(c.signer.Address())
	if len(items) == 0 {
		return common.Hash{}, ErrEmptyCart
	}

	orderHashes := make([]common.Hash, len(items))
	for i, item := range items {
		orderHashes[i] = item.Listing.Hash
	}

	txHash, err := c.FulfillOrders(ctx, orderHashes)
	if err != nil {
		return txHash, err
	}

	if err := c.cart.Clear(); err != nil {
		c.logger.Warn("checkout succeeded but cart clear failed", "err", err)
	}

	return txHash, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer.Close()
	}
}
