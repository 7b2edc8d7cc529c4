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

func TestDirectory_CallForwardsValueAndData(t *testing.T) {
	s := newTestState(t)
	d := NewDirectory(s)
	s.Credit(aliceAddr, uint256.NewInt(10))

	var got CallContext
	var payload []byte
	d.Register(contractAddr, ContractFunc(func(ctx CallContext, data []byte) ([]byte, error) {
		got = ctx
		payload = data
		return []byte{0xaa}, nil
	}))

	ret, err := d.Call(aliceAddr, contractAddr, uint256.NewInt(4), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa}, ret)
	assert.Equal(t, aliceAddr, got.Caller)
	assert.Equal(t, uint64(4), got.Value.Uint64())
	assert.Equal(t, []byte{1, 2, 3}, payload)
	assert.Equal(t, uint64(6), s.Balance(aliceAddr).Uint64())
	assert.Equal(t, uint64(4), s.Balance(contractAddr).Uint64())
}

func TestDirectory_UnknownTarget(t *testing.T) {
	d := NewDirectory(newTestState(t))

	_, err := d.Call(aliceAddr, bobAddr, nil, nil)
	require.ErrorIs(t, err, protocol.ErrExternalCallFailed)

	// Registered objects that cannot be called are not targets either.
	d.Register(bobAddr, struct{}{})
	_, err = d.Call(aliceAddr, bobAddr, nil, nil)
	require.ErrorIs(t, err, protocol.ErrExternalCallFailed)
}

func TestDirectory_FailedHandlerRevertsEverything(t *testing.T) {
	s := newTestState(t)
	d := NewDirectory(s)
	s.Credit(aliceAddr, uint256.NewInt(10))
	boom := errors.New("target reverted")

	d.Register(contractAddr, ContractFunc(func(ctx CallContext, data []byte) ([]byte, error) {
		s.Storage(contractAddr).SetUint64(Slot(0), 1)
		return nil, boom
	}))

	_, err := d.Call(aliceAddr, contractAddr, uint256.NewInt(10), nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(10), s.Balance(aliceAddr).Uint64())
	assert.True(t, s.Balance(contractAddr).IsZero())
	assert.Equal(t, uint64(0), s.Storage(contractAddr).Uint64(Slot(0)))
}

func TestDirectory_ValueExceedsBalance(t *testing.T) {
	s := newTestState(t)
	d := NewDirectory(s)
	called := false
	d.Register(contractAddr, ContractFunc(func(CallContext, []byte) ([]byte, error) {
		called = true
		return nil, nil
	}))

	_, err := d.Call(aliceAddr, contractAddr, uint256.NewInt(1), nil)
	require.ErrorIs(t, err, protocol.ErrInsufficientBalance)
	assert.False(t, called)
	assert.Nil(t, d.Lookup(common.Address{}))
}

func TestGuard(t *testing.T) {
	var g Guard
	require.NoError(t, g.Enter("deposit"))
	assert.True(t, g.Busy())

	err := g.Enter("claimWithdraw")
	require.ErrorIs(t, err, protocol.ErrReentrancyDetected)
	assert.Contains(t, err.Error(), "deposit in progress")

	g.Exit()
	assert.False(t, g.Busy())
	require.NoError(t, g.Enter("claimWithdraw"))
}
