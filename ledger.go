package marketsdk

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcmarket/market-sdk-go/chain"
)

// ContractReader is the read surface the ledger needs from the exchange.
// *chain.ContractCaller implements it.
type ContractReader interface {
	DeployBlock() uint64
	FilterOrderEvents(ctx context.Context, fromBlock uint64) (*chain.EventScan, error)
	GetOrderDetails(ctx context.Context, orderHash common.Hash) (*chain.OrderDetails, error)
}

// Snapshot is one consistent view of the order set. Truncated reports that
// the event scan hit its window cap and history may be incomplete.
type Snapshot struct {
	AllOrders   []Order
	ScannedTo   uint64
	Truncated   bool
	RefreshedAt time.Time
}

// Ledger reconstructs the complete order set from the exchange event log.
// There is no off-chain indexer of record: the three order events plus
// per-hash detail reads are the only inputs. Each refresh rebuilds the
// snapshot from scratch; on failure the previous snapshot stays visible.
type Ledger struct {
	reader ContractReader
	logger *slog.Logger

	refreshMu sync.Mutex // serializes refreshes
	mu        sync.RWMutex
	snapshot  Snapshot
}

// NewLedger creates a ledger over the given contract reader.
func NewLedger(reader ContractReader, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = nopLogger()
	}
	return &Ledger{reader: reader, logger: logger}
}

// Refresh re-scans the event log from the deployment block and swaps in a
// new snapshot. Only one refresh runs at a time; a second concurrent call
// returns ErrRefreshInProgress instead of doubling the RPC load.
func (l *Ledger) Refresh(ctx context.Context) error {
	if !l.refreshMu.TryLock() {
		return ErrRefreshInProgress
	}
	defer l.refreshMu.Unlock()

	scan, err := l.reader.FilterOrderEvents(ctx, l.reader.DeployBlock())
	if err != nil {
		return fmt.Errorf("event scan failed: %w", err)
	}
	if scan.Truncated {
		l.logger.Warn("event scan truncated at window cap", "scanned_to", scan.ScannedTo)
	}

	created, fulfilled, cancelled := partitionEvents(scan.Events)

	orders := l.fetchOrders(ctx, created)

	// Status events win over the status embedded in the detail read, and a
	// terminal status is never downgraded back to active.
	for i := range orders {
		if fulfilled[orders[i].Hash] {
			orders[i].Status = chain.OrderStatusFulfilled
		}
		if cancelled[orders[i].Hash] {
			orders[i].Status = chain.OrderStatusCancelled
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].BlockNumber != orders[j].BlockNumber {
			return orders[i].BlockNumber < orders[j].BlockNumber
		}
		return orders[i].Hash.Hex() < orders[j].Hash.Hex()
	})

	l.mu.Lock()
	l.snapshot = Snapshot{
		AllOrders:   orders,
		ScannedTo:   scan.ScannedTo,
		Truncated:   scan.Truncated,
		RefreshedAt: time.Now(),
	}
	l.mu.Unlock()

	return nil
}

// creation tracks the OrderCreated data for one hash. A replayed creation
// event for the same hash keeps the highest block number.
type creation struct {
	offerer     common.Address
	blockNumber uint64
}

func partitionEvents(events []chain.OrderEvent) (map[common.Hash]creation, map[common.Hash]bool, map[common.Hash]bool) {
	created := make(map[common.Hash]creation)
	fulfilled := make(map[common.Hash]bool)
	cancelled := make(map[common.Hash]bool)

	for _, event := range events {
		switch event.Kind {
		case chain.EventOrderCreated:
			if prev, ok := created[event.OrderHash]; !ok || event.BlockNumber > prev.blockNumber {
				created[event.OrderHash] = creation{
					offerer:     event.Offerer,
					blockNumber: event.BlockNumber,
				}
			}
		case chain.EventOrderFulfilled:
			fulfilled[event.OrderHash] = true
		case chain.EventOrderCancelled:
			cancelled[event.OrderHash] = true
		}
	}

	return created, fulfilled, cancelled
}

// fetchOrders resolves full order details for every created hash, one read
// per hash issued concurrently. A failed read drops that order from the
// snapshot but never fails the batch.
func (l *Ledger) fetchOrders(ctx context.Context, created map[common.Hash]creation) []Order {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		orders []Order
	)

	for hash, info := range created {
		wg.Add(1)
		go func(hash common.Hash, info creation) {
			defer wg.Done()

			details, err := l.reader.GetOrderDetails(ctx, hash)
			if err != nil {
				l.logger.Warn("skipping order: detail read failed", "order_hash", hash.Hex(), "err", err)
				return
			}

			mu.Lock()
			orders = append(orders, Order{
				Hash:          hash,
				Offerer:       details.Offerer,
				Offer:         details.Offer,
				Consideration: details.Consideration,
				Status:        details.Status,
				StartTime:     details.StartTime,
				EndTime:       details.EndTime,
				BlockNumber:   info.blockNumber,
			})
			mu.Unlock()
		}(hash, info)
	}

	wg.Wait()
	return orders
}

// Snapshot returns the last successful snapshot. Callers must treat the
// contained slice as read-only.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Listings returns active orders whose validity window has not elapsed.
// The time filter lives here, not in the status reduction: an expired
// order is still "active" in AllOrders.
func (l *Ledger) Listings(now time.Time) []Order {
	snapshot := l.Snapshot()

	var listings []Order
	for _, order := range snapshot.AllOrders {
		if order.Status != chain.OrderStatusActive {
			continue
		}
		if order.EndTime <= uint64(now.Unix()) {
			continue
		}
		listings = append(listings, order)
	}
	return listings
}
