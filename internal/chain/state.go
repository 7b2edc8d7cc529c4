package chain

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/protocol"
)

const (
	// StateCacheMB is the LevelDB block cache size in MB.
	StateCacheMB = 16

	// StateHandles is the maximum number of open file handles for LevelDB.
	StateHandles = 16
)

var (
	headRootKey   = []byte("custody-head-root")
	headHeightKey = []byte("custody-head-height")
)

// State is the world state shared by every contract: a geth StateDB whose
// account storage holds contract data and whose balances hold the native
// unit forwarded by manager calls.
//
// State is not safe for concurrent use. Chain serializes access.
type State struct {
	diskdb     ethdb.Database
	trieDB     *triedb.Database
	db         state.Database
	stateDB    *state.StateDB
	persistent bool
	fresh      bool
	height     uint64
	root       common.Hash // last committed
	closed     bool
}

// NewMemoryState creates an empty in-memory state.
func NewMemoryState() (*State, error) {
	return openState(rawdb.NewMemoryDatabase(), false)
}

// NewState opens the state stored under path, creating it when missing.
// An empty path yields an in-memory state.
func NewState(path string) (*State, error) {
	if path == "" {
		log.Info("Using in-memory state (no storage dir specified)")
		return NewMemoryState()
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	ldb, err := leveldb.New(path, StateCacheMB, StateHandles, "custody/", false)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	log.Info("Opened persistent state", "path", path)
	return openState(rawdb.NewDatabase(ldb), true)
}

func openState(diskdb ethdb.Database, persistent bool) (*State, error) {
	root := types.EmptyRootHash
	fresh := true
	var height uint64

	if data, err := diskdb.Get(headRootKey); err == nil && len(data) == common.HashLength {
		root = common.BytesToHash(data)
		fresh = false
		if h, err := diskdb.Get(headHeightKey); err == nil && len(h) == 8 {
			height = binary.BigEndian.Uint64(h)
		}
	}

	tdb := triedb.NewDatabase(diskdb, nil)
	sdb := state.NewDatabase(tdb, nil)
	stateDB, err := state.New(root, sdb)
	if err != nil {
		diskdb.Close()
		return nil, fmt.Errorf("failed to load state at root %s: %w", root.Hex(), err)
	}

	return &State{
		diskdb:     diskdb,
		trieDB:     tdb,
		db:         sdb,
		stateDB:    stateDB,
		persistent: persistent,
		fresh:      fresh,
		height:     height,
		root:       root,
	}, nil
}

// Fresh reports whether the state was created empty rather than reloaded.
func (s *State) Fresh() bool {
	return s.fresh
}

// Height returns the number of committed blocks.
func (s *State) Height() uint64 {
	return s.height
}

// Root returns the current state root without committing.
func (s *State) Root() common.Hash {
	return s.stateDB.IntermediateRoot(false)
}

// Snapshot creates a state snapshot for potential rollback
func (s *State) Snapshot() int {
	return s.stateDB.Snapshot()
}

// RevertToSnapshot rolls back state to a previous snapshot
func (s *State) RevertToSnapshot(snapshot int) {
	s.stateDB.RevertToSnapshot(snapshot)
}

// Atomic runs fn and rolls back every change it made, logs included, when it
// returns an error. Calls nest.
func (s *State) Atomic(fn func() error) error {
	snapshot := s.stateDB.Snapshot()
	if err := fn(); err != nil {
		s.stateDB.RevertToSnapshot(snapshot)
		return err
	}
	return nil
}

// SetTxContext tags subsequently emitted logs with the given transaction.
func (s *State) SetTxContext(txHash common.Hash, index int) {
	s.stateDB.SetTxContext(txHash, index)
}

// Commit seals pending changes into a new block and returns its height and
// root. Persistent states flush the trie and record the new head. On failure
// the pending changes are dropped and the state is back at the last block.
func (s *State) Commit() (uint64, common.Hash, error) {
	height := s.height + 1
	root, err := s.seal(height)
	if err != nil {
		if rerr := s.reload(s.root); rerr != nil {
			log.Error("Failed to restore state after seal failure", "root", s.root, "err", rerr)
			return 0, common.Hash{}, fmt.Errorf("%w (restore failed: %v)", err, rerr)
		}
		return 0, common.Hash{}, err
	}

	// Recreate StateDB at the new root so cached tries aren't reused after commit
	if err := s.reload(root); err != nil {
		log.Error("Failed to reload state", "root", root, "err", err)
		return 0, common.Hash{}, err
	}
	s.height = height
	s.root = root
	return height, root, nil
}

func (s *State) seal(height uint64) (common.Hash, error) {
	root, err := s.stateDB.Commit(height, false, false)
	if err != nil {
		return common.Hash{}, err
	}
	if !s.persistent {
		return root, nil
	}
	if err := s.trieDB.Commit(root, false); err != nil {
		return common.Hash{}, fmt.Errorf("failed to flush trie: %w", err)
	}
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], height)
	batch := s.diskdb.NewBatch()
	if err := batch.Put(headRootKey, root.Bytes()); err != nil {
		return common.Hash{}, err
	}
	if err := batch.Put(headHeightKey, enc[:]); err != nil {
		return common.Hash{}, err
	}
	if err := batch.Write(); err != nil {
		return common.Hash{}, fmt.Errorf("failed to write head: %w", err)
	}
	return root, nil
}

func (s *State) reload(root common.Hash) error {
	stateDB, err := state.New(root, s.db)
	if err != nil {
		return err
	}
	s.stateDB = stateDB
	return nil
}

// Close releases the underlying database. It is idempotent.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.persistent {
		s.trieDB.Close()
	}
	return s.diskdb.Close()
}

// Storage returns the storage view of the contract at addr.
func (s *State) Storage(addr common.Address) Storage {
	return Storage{state: s, addr: addr}
}

// Exists reports whether an account is present at addr.
func (s *State) Exists(addr common.Address) bool {
	return s.stateDB.Exist(addr)
}

// CreateContract marks addr as a deployed contract account.
func (s *State) CreateContract(addr common.Address) {
	if !s.stateDB.Exist(addr) {
		s.stateDB.CreateAccount(addr)
	}
	if s.stateDB.GetNonce(addr) == 0 {
		s.stateDB.SetNonce(addr, 1, tracing.NonceChangeUnspecified)
	}
}

// Balance returns the native balance of addr.
func (s *State) Balance(addr common.Address) *uint256.Int {
	return new(uint256.Int).Set(s.stateDB.GetBalance(addr))
}

// Credit adds native balance to addr.
func (s *State) Credit(addr common.Address, amount *uint256.Int) {
	s.stateDB.AddBalance(addr, amount, tracing.BalanceChangeUnspecified)
}

// TransferNative moves native balance between accounts.
func (s *State) TransferNative(from, to common.Address, amount *uint256.Int) error {
	if s.stateDB.GetBalance(from).Cmp(amount) < 0 {
		return protocol.Failf(protocol.KindInsufficientBalance, "transferNative",
			"%s holds %s, needs %s", from.Hex(), s.stateDB.GetBalance(from).Dec(), amount.Dec())
	}
	s.stateDB.SubBalance(from, amount, tracing.BalanceChangeTransfer)
	s.stateDB.AddBalance(to, amount, tracing.BalanceChangeTransfer)
	return nil
}

// Emit records an event log from contract. Indexed topics follow the event id.
func (s *State) Emit(contract common.Address, name string, indexed []common.Hash, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		// Event bodies are plain structs; this only fires on a programming error.
		panic(fmt.Sprintf("chain: cannot encode %s event: %v", name, err))
	}
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, protocol.EventID(name))
	topics = append(topics, indexed...)
	s.stateDB.AddLog(&types.Log{
		Address:     contract,
		Topics:      topics,
		Data:        data,
		BlockNumber: s.height + 1,
	})
}

// TxLogs returns the logs emitted so far by the given transaction.
func (s *State) TxLogs(txHash common.Hash) []*types.Log {
	var logs []*types.Log
	for _, l := range s.stateDB.Logs() {
		if l.TxHash == txHash {
			logs = append(logs, l)
		}
	}
	return logs
}
