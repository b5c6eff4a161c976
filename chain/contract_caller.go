package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrTxStatusUnknown is returned when a transaction was broadcast but its
// inclusion could not be confirmed before the context ended. The
// transaction may still land; callers must not treat this as a revert.
var ErrTxStatusUnknown = errors.New("transaction broadcast but status unknown")

const (
	writeGasLimit  = 800000
	receiptTimeout = 120 * time.Second
)

// ContractCaller handles all interaction with the exchange contract:
// reads, write transactions and event log scans.
type ContractCaller struct {
	client       *ethclient.Client
	privateKey   *ecdsa.PrivateKey
	exchangeAddr common.Address
	exchangeABI  abi.ABI

	deployBlock uint64
	logWindow   uint64
	maxWindows  int
}

// NewContractCaller connects to the RPC endpoint and prepares the exchange
// call surface. deployBlock is the block the exchange contract was deployed
// at; event scans never start earlier.
func NewContractCaller(
	rpcURL string,
	privateKeyHex string,
	exchangeAddr string,
	deployBlock uint64,
	logWindow uint64,
	maxWindows int,
) (*ContractCaller, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	if logWindow == 0 {
		logWindow = 5000
	}
	if maxWindows == 0 {
		maxWindows = 200
	}

	return &ContractCaller{
		client:       client,
		privateKey:   privateKey,
		exchangeAddr: common.HexToAddress(exchangeAddr),
		exchangeABI:  GetExchangeABI(),
		deployBlock:  deployBlock,
		logWindow:    logWindow,
		maxWindows:   maxWindows,
	}, nil
}

// SignerAddress returns the address of the transaction-sending key.
func (cc *ContractCaller) SignerAddress() common.Address {
	publicKey, _ := cc.privateKey.Public().(*ecdsa.PublicKey)
	return crypto.PubkeyToAddress(*publicKey)
}

// ChainID returns the chain id of the connected network.
func (cc *ContractCaller) ChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := cc.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return chainID, nil
}

// DeployBlock returns the exchange deployment block event scans start from.
func (cc *ContractCaller) DeployBlock() uint64 {
	return cc.deployBlock
}

// Nonce reads the offerer's current replay-protection counter. Callers must
// re-read this immediately before every signing attempt.
func (cc *ContractCaller) Nonce(ctx context.Context, offerer common.Address) (*big.Int, error) {
	data, err := cc.exchangeABI.Pack("nonces", offerer)
	if err != nil {
		return nil, err
	}

	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &cc.exchangeAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}

	var nonce *big.Int
	if err := cc.exchangeABI.UnpackIntoInterface(&nonce, "nonces", result); err != nil {
		return nil, err
	}

	return nonce, nil
}

// GetOrderHash asks the contract to hash the given parameters with its own
// hash function. This is the reference the locally computed hash is checked
// against before any signature is submitted.
func (cc *ContractCaller) GetOrderHash(ctx context.Context, params *OrderParameters, nonce *big.Int) (common.Hash, error) {
	encoded, err := EncodeOrderParameters(params, nonce)
	if err != nil {
		return common.Hash{}, err
	}

	data, err := cc.exchangeABI.Pack("get_order_hash", encoded, params.Offerer)
	if err != nil {
		return common.Hash{}, err
	}

	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &cc.exchangeAddr,
		Data: data,
	}, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to call get_order_hash: %w", err)
	}

	var hash [32]byte
	if err := cc.exchangeABI.UnpackIntoInterface(&hash, "get_order_hash", result); err != nil {
		return common.Hash{}, err
	}

	return common.Hash(hash), nil
}

// rawOrderDetails mirrors the get_order_details output layout before the
// wire enums are decoded.
type rawOrderDetails struct {
	Offerer       common.Address
	Offer         []EncodedOfferItem
	Consideration []EncodedConsiderationItem
	OrderStatus   [32]byte
	StartTime     *big.Int
	EndTime       *big.Int
}

// GetOrderDetails reads the full registered order for a hash and decodes
// the wire enums back into symbolic form.
func (cc *ContractCaller) GetOrderDetails(ctx context.Context, orderHash common.Hash) (*OrderDetails, error) {
	data, err := cc.exchangeABI.Pack("get_order_details", [32]byte(orderHash))
	if err != nil {
		return nil, err
	}

	result, err := cc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &cc.exchangeAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call get_order_details: %w", err)
	}

	var raw rawOrderDetails
	if err := cc.exchangeABI.UnpackIntoInterface(&raw, "get_order_details", result); err != nil {
		return nil, fmt.Errorf("failed to decode order details: %w", err)
	}

	status, err := DecodeOrderStatus(raw.OrderStatus)
	if err != nil {
		return nil, err
	}

	offer := make([]OfferItem, len(raw.Offer))
	for i, item := range raw.Offer {
		itemType, err := DecodeItemType(item.ItemType)
		if err != nil {
			return nil, err
		}
		offer[i] = OfferItem{
			ItemType:             itemType,
			Token:                item.Token,
			IdentifierOrCriteria: item.IdentifierOrCriteria,
			StartAmount:          item.StartAmount,
			EndAmount:            item.EndAmount,
		}
	}

	consideration := make([]ConsiderationItem, len(raw.Consideration))
	for i, item := range raw.Consideration {
		itemType, err := DecodeItemType(item.ItemType)
		if err != nil {
			return nil, err
		}
		consideration[i] = ConsiderationItem{
			ItemType:             itemType,
			Token:                item.Token,
			IdentifierOrCriteria: item.IdentifierOrCriteria,
			StartAmount:          item.StartAmount,
			EndAmount:            item.EndAmount,
			Recipient:            item.Recipient,
		}
	}

	return &OrderDetails{
		Offerer:       raw.Offerer,
		Offer:         offer,
		Consideration: consideration,
		Status:        status,
		StartTime:     raw.StartTime.Uint64(),
		EndTime:       raw.EndTime.Uint64(),
	}, nil
}

// RegisterOrder submits a signed order registration and returns the
// broadcast transaction.
func (cc *ContractCaller) RegisterOrder(ctx context.Context, params *OrderParameters, nonce *big.Int, signature []byte) (*types.Transaction, error) {
	encoded, err := EncodeOrderParameters(params, nonce)
	if err != nil {
		return nil, err
	}

	data, err := cc.exchangeABI.Pack("register_order", encoded, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack register_order: %w", err)
	}

	return cc.sendTransaction(ctx, data)
}

type encodedCancellation struct {
	OrderHash [32]byte
	Nonce     *big.Int
}

// CancelOrder submits a signed order cancellation.
func (cc *ContractCaller) CancelOrder(ctx context.Context, cancellation *Cancellation, signature []byte) (*types.Transaction, error) {
	data, err := cc.exchangeABI.Pack("cancel_order", encodedCancellation{
		OrderHash: [32]byte(cancellation.OrderHash),
		Nonce:     cancellation.Nonce,
	}, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack cancel_order: %w", err)
	}

	return cc.sendTransaction(ctx, data)
}

type encodedFulfillment struct {
	OrderHash [32]byte
	Nonce     *big.Int
}

// FulfillOrders submits one transaction fulfilling every given order. The
// batch is atomic: either all orders execute or the transaction reverts.
func (cc *ContractCaller) FulfillOrders(ctx context.Context, fulfillments []Fulfillment, signatures [][]byte) (*types.Transaction, error) {
	if len(fulfillments) == 0 {
		return nil, fmt.Errorf("no fulfillments to submit")
	}
	if len(fulfillments) != len(signatures) {
		return nil, fmt.Errorf("fulfillment/signature count mismatch: %d vs %d", len(fulfillments), len(signatures))
	}

	encoded := make([]encodedFulfillment, len(fulfillments))
	for i, f := range fulfillments {
		encoded[i] = encodedFulfillment{
			OrderHash: [32]byte(f.OrderHash),
			Nonce:     f.Nonce,
		}
	}

	data, err := cc.exchangeABI.Pack("fulfill_orders", encoded, signatures)
	if err != nil {
		return nil, fmt.Errorf("failed to pack fulfill_orders: %w", err)
	}

	return cc.sendTransaction(ctx, data)
}

// checkGasBalance checks the sender can cover the gas for a write before
// broadcasting anything.
func (cc *ContractCaller) checkGasBalance(ctx context.Context, estimatedGas uint64) error {
	signerAddr := cc.SignerAddress()
	balance, err := cc.client.BalanceAt(ctx, signerAddr, nil)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	gasPrice, err := cc.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	// 20% safety margin
	estimatedGasWithMargin := new(big.Int).Mul(big.NewInt(int64(estimatedGas)), big.NewInt(120))
	estimatedGasWithMargin.Div(estimatedGasWithMargin, big.NewInt(100))

	required := new(big.Int).Mul(estimatedGasWithMargin, gasPrice)
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("insufficient gas balance: signer %s has %s wei, needs approximately %s wei",
			signerAddr.Hex(), balance.String(), required.String())
	}

	return nil
}

func (cc *ContractCaller) sendTransaction(ctx context.Context, callData []byte) (*types.Transaction, error) {
	if err := cc.checkGasBalance(ctx, writeGasLimit); err != nil {
		return nil, err
	}

	chainID, err := cc.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	nonce, err := cc.client.PendingNonceAt(ctx, cc.SignerAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to get account nonce: %w", err)
	}

	gasPrice, err := cc.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTransaction(
		nonce,
		cc.exchangeAddr,
		big.NewInt(0),
		uint64(writeGasLimit),
		gasPrice,
		callData,
	)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), cc.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := cc.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx, nil
}

// WaitForReceipt blocks until the transaction is included and checks its
// status. If the wait is cut short the transaction is already broadcast, so
// the result is ErrTxStatusUnknown rather than a failure.
func (cc *ContractCaller) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	for {
		receipt, err := cc.client.TransactionReceipt(timeoutCtx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("transaction reverted: %s", txHash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-timeoutCtx.Done():
			return nil, fmt.Errorf("%w: %s", ErrTxStatusUnknown, txHash.Hex())
		default:
			time.Sleep(2 * time.Second)
		}
	}
}

// OrderEventKind distinguishes the three event signatures the ledger
// consumes.
type OrderEventKind int

const (
	EventOrderCreated OrderEventKind = iota
	EventOrderFulfilled
	EventOrderCancelled
)

// OrderEvent is a decoded exchange event. Offerer is only populated for
// OrderCreated; the other two carry just the order hash membership.
type OrderEvent struct {
	Kind        OrderEventKind
	OrderHash   common.Hash
	Offerer     common.Address
	BlockNumber uint64
}

// EventScan is the result of one full pass over the event log. Truncated
// reports that the window cap was hit before reaching the head: the data is
// usable but incomplete, and callers must surface that.
type EventScan struct {
	Events    []OrderEvent
	ScannedTo uint64
	Truncated bool
}

// FilterOrderEvents pages through the exchange event log from fromBlock to
// the chain head in fixed-size block windows, filtered to the three order
// event signatures.
func (cc *ContractCaller) FilterOrderEvents(ctx context.Context, fromBlock uint64) (*EventScan, error) {
	head, err := cc.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get head block: %w", err)
	}

	scan := &EventScan{ScannedTo: fromBlock}
	if fromBlock > head {
		return scan, nil
	}

	windows := 0
	for start := fromBlock; start <= head; start += cc.logWindow {
		if windows >= cc.maxWindows {
			scan.Truncated = true
			return scan, nil
		}
		windows++

		end := start + cc.logWindow - 1
		if end > head {
			end = head
		}

		logs, err := cc.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{cc.exchangeAddr},
			Topics: [][]common.Hash{
				{OrderCreatedSig, OrderFulfilledSig, OrderCancelledSig},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to filter logs [%d, %d]: %w", start, end, err)
		}

		for _, log := range logs {
			event, ok := decodeOrderEvent(log)
			if !ok {
				continue
			}
			scan.Events = append(scan.Events, event)
		}

		scan.ScannedTo = end
	}

	return scan, nil
}

// decodeOrderEvent reads an order event from its topics. Topic layout is
// [signature, order_hash] plus the actor address as a third topic.
func decodeOrderEvent(log types.Log) (OrderEvent, bool) {
	if len(log.Topics) < 2 {
		return OrderEvent{}, false
	}

	event := OrderEvent{
		OrderHash:   log.Topics[1],
		BlockNumber: log.BlockNumber,
	}

	switch log.Topics[0] {
	case OrderCreatedSig:
		if len(log.Topics) < 3 {
			return OrderEvent{}, false
		}
		event.Kind = EventOrderCreated
		event.Offerer = common.BytesToAddress(log.Topics[2].Bytes())
	case OrderFulfilledSig:
		event.Kind = EventOrderFulfilled
	case OrderCancelledSig:
		event.Kind = EventOrderCancelled
	default:
		return OrderEvent{}, false
	}

	return event, true
}

// Close closes the underlying RPC client.
func (cc *ContractCaller) Close() {
	if cc.client != nil {
		cc.client.Close()
	}
}
