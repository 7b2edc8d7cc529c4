package chain

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/vault-experiment/custody/internal/protocol"
)

// Chain executes transactions against a State one at a time. Each
// transaction either commits as its own block or leaves no trace besides a
// failed receipt.
type Chain struct {
	mu       sync.Mutex
	state    *State
	clock    clock.Clock
	receipts *ReceiptStore
}

func NewChain(state *State, clk clock.Clock) *Chain {
	if clk == nil {
		clk = clock.New()
	}
	return &Chain{
		state:    state,
		clock:    clk,
		receipts: NewReceiptStore(),
	}
}

// Clock returns the time source shared with the contracts.
func (c *Chain) Clock() clock.Clock {
	return c.clock
}

// Now returns the current unix time.
func (c *Chain) Now() uint64 {
	return uint64(c.clock.Now().Unix())
}

// Execute runs fn as a transaction sent by from. The receipt is recorded and
// returned whether or not fn succeeded; err is fn's error or the failure to
// seal its block. Either way a failed transaction leaves the state untouched.
func (c *Chain) Execute(from common.Address, method string, fn func() (interface{}, error)) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New()
	txHash := crypto.Keccak256Hash(id[:])
	receipt := &Receipt{
		ID:        id.String(),
		TxHash:    txHash,
		Timestamp: c.Now(),
		From:      from,
		Method:    method,
	}

	c.state.SetTxContext(txHash, 0)
	snapshot := c.state.Snapshot()
	result, err := fn()
	if err != nil {
		c.state.RevertToSnapshot(snapshot)
		receipt.Status = ReceiptFailed
		receipt.Error = err.Error()
		receipt.Kind = protocol.KindOf(err)
		c.receipts.AddReceipt(receipt)
		log.Warn("Transaction failed", "id", receipt.ID, "method", method, "from", from, "err", err)
		return receipt, err
	}

	logs := c.state.TxLogs(txHash)
	height, root, cerr := c.state.Commit()
	if cerr != nil {
		err := fmt.Errorf("failed to seal block: %w", cerr)
		receipt.Status = ReceiptFailed
		receipt.Error = err.Error()
		receipt.Kind = protocol.KindOf(err)
		c.receipts.AddReceipt(receipt)
		log.Error("Failed to seal block", "id", receipt.ID, "method", method, "err", cerr)
		return receipt, err
	}

	receipt.Status = ReceiptSuccess
	receipt.BlockNumber = hexutil.Uint64(height)
	receipt.StateRoot = root
	receipt.Result = result
	receipt.Logs = logs
	for _, l := range logs {
		if ev, ok := protocol.DecodeLog(l); ok {
			receipt.Events = append(receipt.Events, ev)
		}
	}
	c.receipts.AddReceipt(receipt)

	log.Info("Transaction executed", "id", receipt.ID, "method", method, "from", from,
		"block", height, "events", len(receipt.Events))
	return receipt, nil
}

// Read runs fn with exclusive access to the state and no transaction context.
func (c *Chain) Read(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Receipt returns the receipt of transaction id, or nil.
func (c *Chain) Receipt(id string) *Receipt {
	return c.receipts.GetReceipt(id)
}

// Receipts returns up to n recent receipts, newest first.
func (c *Chain) Receipts(n int) []*Receipt {
	return c.receipts.Recent(n)
}

// Height returns the number of sealed blocks.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Height()
}

// Close releases the state.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Close()
}
