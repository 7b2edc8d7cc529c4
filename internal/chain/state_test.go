package chain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vault-experiment/custody/internal/protocol"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	aliceAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bobAddr      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewMemoryState()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestState_AtomicRevertsStorageAndLogs(t *testing.T) {
	s := newTestState(t)
	store := s.Storage(contractAddr)
	store.SetUint64(Slot(0), 7)

	boom := errors.New("boom")
	err := s.Atomic(func() error {
		store.SetUint64(Slot(0), 99)
		store.Emit(protocol.EventDeposit, nil, protocol.DepositEvent{Assets: "1", Shares: "1"})
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(7), store.Uint64(Slot(0)))
	assert.Empty(t, s.TxLogs(common.Hash{}))
}

func TestState_AtomicNested(t *testing.T) {
	s := newTestState(t)
	store := s.Storage(contractAddr)

	err := s.Atomic(func() error {
		store.SetUint64(Slot(0), 1)
		inner := s.Atomic(func() error {
			store.SetUint64(Slot(1), 2)
			return protocol.Fail(protocol.KindZeroAmount, "inner")
		})
		require.ErrorIs(t, inner, protocol.ErrZeroAmount)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(1), store.Uint64(Slot(0)))
	assert.Equal(t, uint64(0), store.Uint64(Slot(1)))
}

func TestState_CommitAdvancesHeight(t *testing.T) {
	s := newTestState(t)
	require.True(t, s.Fresh())
	s.CreateContract(contractAddr)
	s.Storage(contractAddr).SetUint64(Slot(3), 42)

	height, root, err := s.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
	assert.Equal(t, uint64(1), s.Height())
	assert.NotEqual(t, common.Hash{}, root)
	assert.Equal(t, root, s.Root())
	assert.Equal(t, uint64(42), s.Storage(contractAddr).Uint64(Slot(3)))
	assert.True(t, s.Exists(contractAddr))
}

func TestState_PersistentReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewState(dir)
	require.NoError(t, err)
	require.True(t, s.Fresh())
	s.CreateContract(contractAddr)
	s.Storage(contractAddr).SetAddress(Slot(0), aliceAddr)
	s.Credit(bobAddr, uint256.NewInt(500))
	_, root, err := s.Commit()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	reopened, err := NewState(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.False(t, reopened.Fresh())
	assert.Equal(t, uint64(1), reopened.Height())
	assert.Equal(t, root, reopened.Root())
	assert.Equal(t, aliceAddr, reopened.Storage(contractAddr).AddressAt(Slot(0)))
	assert.Equal(t, uint64(500), reopened.Balance(bobAddr).Uint64())
}

func TestState_TransferNative(t *testing.T) {
	s := newTestState(t)
	s.Credit(aliceAddr, uint256.NewInt(100))

	require.NoError(t, s.TransferNative(aliceAddr, bobAddr, uint256.NewInt(60)))
	assert.Equal(t, uint64(40), s.Balance(aliceAddr).Uint64())
	assert.Equal(t, uint64(60), s.Balance(bobAddr).Uint64())

	err := s.TransferNative(aliceAddr, bobAddr, uint256.NewInt(41))
	require.ErrorIs(t, err, protocol.ErrInsufficientBalance)
	assert.Equal(t, uint64(40), s.Balance(aliceAddr).Uint64())
}

func TestState_EmitTopics(t *testing.T) {
	s := newTestState(t)
	txHash := common.HexToHash("0x01")
	s.SetTxContext(txHash, 0)

	s.Storage(contractAddr).Emit(protocol.EventTransfer, []common.Hash{AddressTopic(aliceAddr), AddressTopic(bobAddr)},
		protocol.TransferEvent{From: aliceAddr, To: bobAddr, Amount: "5"})

	logs := s.TxLogs(txHash)
	require.Len(t, logs, 1)
	assert.Equal(t, contractAddr, logs[0].Address)
	require.Len(t, logs[0].Topics, 3)
	assert.Equal(t, protocol.EventID(protocol.EventTransfer), logs[0].Topics[0])
	assert.Equal(t, AddressTopic(aliceAddr), logs[0].Topics[1])
	assert.Empty(t, s.TxLogs(common.HexToHash("0x02")))
}
