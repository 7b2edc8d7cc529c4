package chain

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/vault-experiment/custody/internal/protocol"
)

const (
	ReceiptFailed  hexutil.Uint64 = 0
	ReceiptSuccess hexutil.Uint64 = 1
)

// Receipt represents the result of a transaction execution
type Receipt struct {
	ID          string                 `json:"id"`
	TxHash      common.Hash            `json:"transactionHash"`
	BlockNumber hexutil.Uint64         `json:"blockNumber"`
	StateRoot   common.Hash            `json:"stateRoot"`
	Timestamp   uint64                 `json:"timestamp"`
	From        common.Address         `json:"from"`
	Method      string                 `json:"method"`
	Status      hexutil.Uint64         `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Kind        protocol.Kind          `json:"kind,omitempty"`
	Result      interface{}            `json:"result,omitempty"`
	Logs        []*types.Log           `json:"logs"`
	Events      []protocol.EventRecord `json:"events"`
}

// Succeeded reports whether the transaction was applied.
func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptSuccess
}

// ReceiptStore manages transaction receipts in memory
type ReceiptStore struct {
	receipts map[string]*Receipt
	order    []string
	mu       sync.RWMutex
}

func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		receipts: make(map[string]*Receipt),
	}
}

func (s *ReceiptStore) AddReceipt(r *Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	// Store a copy to avoid aliasing caller's data
	s.receipts[r.ID] = r.DeepCopy()
}

func (s *ReceiptStore) GetReceipt(id string) *Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receipts[id].DeepCopy()
}

// Recent returns up to n receipts, newest first.
func (s *ReceiptStore) Recent(n int) []*Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Receipt
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.receipts[s.order[i]].DeepCopy())
	}
	return out
}

// DeepCopy creates a deep copy of the Receipt
func (r *Receipt) DeepCopy() *Receipt {
	if r == nil {
		return nil
	}

	result := *r

	if r.Logs != nil {
		result.Logs = make([]*types.Log, len(r.Logs))
		for i, l := range r.Logs {
			if l == nil {
				continue
			}
			logCopy := *l
			if l.Topics != nil {
				logCopy.Topics = make([]common.Hash, len(l.Topics))
				copy(logCopy.Topics, l.Topics)
			}
			if l.Data != nil {
				logCopy.Data = make([]byte, len(l.Data))
				copy(logCopy.Data, l.Data)
			}
			result.Logs[i] = &logCopy
		}
	}

	if r.Events != nil {
		result.Events = make([]protocol.EventRecord, len(r.Events))
		for i, ev := range r.Events {
			ev.Data = append([]byte(nil), ev.Data...)
			result.Events[i] = ev
		}
	}

	return &result
}
