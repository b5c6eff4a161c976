// Example usage of the ArcMarket SDK
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	marketsdk "github.com/arcmarket/market-sdk-go"
)

func main() {
	var cfg marketsdk.Config
	cfg.Chain.ID = int64(marketsdk.ChainIDSepolia)
	cfg.Chain.RPCURL = "https://rpc.sepolia.org"  // Replace with actual RPC URL
	cfg.Chain.PrivateKey = "your-private-key-here" // Replace with actual private key
	cfg.Cart.DBPath = "data/cart.db"
	cfg.Logging.Level = "info"

	client, err := marketsdk.NewClient(&cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	// Make sure the RPC endpoint serves the configured chain before signing
	// anything.
	if err := client.VerifyChain(ctx); err != nil {
		log.Fatalf("Chain verification failed: %v", err)
	}

	// Rebuild the order ledger from the exchange event log.
	fmt.Println("Refreshing order ledger...")
	if err := client.Ledger().Refresh(ctx); err != nil {
		log.Fatalf("Failed to refresh ledger: %v", err)
	}

	snapshot := client.Ledger().Snapshot()
	fmt.Printf("Orders: %d (scanned to block %d, truncated=%v)\n",
		len(snapshot.AllOrders), snapshot.ScannedTo, snapshot.Truncated)

	stats := marketsdk.ComputeMarketStats(snapshot.AllOrders)
	fmt.Printf("Active: %d, fulfilled: %d, cancelled: %d\n",
		stats.Active, stats.Fulfilled, stats.Cancelled)

	// Example: look up the listing for a specific token.
	collection := common.HexToAddress("0x1AF37b02e2A4F2e72d4bE5d0A8A0A7ee37ae2CE6")
	tokenID := big.NewInt(42)
	currency := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

	listing, ok := marketsdk.FindListingForToken(snapshot.AllOrders, collection, tokenID)
	if ok {
		payment, _ := listing.PaymentItem()
		fmt.Printf("Token %s listed for %s, %s left\n",
			tokenID,
			marketsdk.FormatAmount(payment.StartAmount, 6),
			marketsdk.FormatTimeRemaining(listing.EndTime, time.Now()))

		// Example: add it to the cart and check out.
		err = client.AddToCart(marketsdk.CartItem{
			Listing:        listing,
			Asset:          marketsdk.AssetSummary{Contract: collection, TokenID: tokenID},
			CollectionName: "Example Collection",
		})
		if err != nil {
			log.Printf("Failed to add to cart: %v", err)
		}

		for _, total := range client.Cart().Totals(client.Address()) {
			fmt.Printf("Cart total %s: %s\n", total.Token.Hex(), marketsdk.FormatAmount(total.Amount, 6))
		}

		txHash, err := client.Checkout(ctx)
		if err != nil {
			log.Printf("Checkout failed: %v", err)
		} else {
			fmt.Printf("Checkout tx: %s\n", txHash.Hex())
		}
	}

	// Example: observe the signing state machine while creating a listing.
	client.OnStateChange(func(state marketsdk.ActionState) {
		fmt.Printf("  signing state: %s\n", state)
	})

	fmt.Println("\nCreating a listing...")
	result, err := client.CreateListing(ctx, marketsdk.ListingInput{
		Collection: collection,
		TokenID:    big.NewInt(7),
		Currency:   currency,
		Price:      big.NewInt(25_000_000), // 25 USDC
		Duration:   72 * time.Hour,
	})
	if err != nil {
		log.Printf("Failed to create listing: %v", err)
	} else {
		fmt.Printf("Listing registered: order %s, tx %s\n", result.OrderHash.Hex(), result.TxHash.Hex())
	}

	// Example: bid on someone else's token.
	fmt.Println("\nCreating a bid...")
	bid, err := client.CreateBid(ctx, marketsdk.BidInput{
		Collection: collection,
		TokenID:    tokenID,
		Currency:   currency,
		Amount:     big.NewInt(18_500_000),
		Duration:   24 * time.Hour,
	})
	if err != nil {
		log.Printf("Failed to create bid: %v", err)
	} else {
		fmt.Printf("Bid registered: order %s, tx %s\n", bid.OrderHash.Hex(), bid.TxHash.Hex())
	}
}
