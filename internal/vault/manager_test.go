package vault

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
	"github.com/vault-experiment/custody/internal/token"
)

func transferPayload(t *testing.T, to common.Address, amount uint64) []byte {
	t.Helper()
	data, err := token.Pack("transfer", to, amt(amount))
	require.NoError(t, err)
	return data
}

func TestManagerCall_RequiresAuthorization(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100, 100)
	data := transferPayload(t, bob, 10)

	_, err := f.vault.ManagerCall(manager, assetAddr, nil, data)
	require.ErrorIs(t, err, protocol.ErrUnauthorized)
	assert.True(t, f.asset.BalanceOf(bob).IsZero())

	require.NoError(t, f.auth.SetManager(owner, manager, true))
	ret, err := f.vault.ManagerCall(manager, assetAddr, nil, data)
	require.NoError(t, err)

	out, err := token.ABI.Unpack("transfer", ret)
	require.NoError(t, err)
	assert.Equal(t, true, out[0])
	assert.Equal(t, uint64(10), f.asset.BalanceOf(bob).Uint64())
	assert.Equal(t, uint64(90), f.vault.TotalAssets().Uint64())
}

func TestManagerCall_RevocationIsImmediate(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100, 100)
	require.NoError(t, f.auth.SetManager(owner, manager, true))

	_, err := f.vault.ManagerCall(manager, assetAddr, nil, transferPayload(t, bob, 10))
	require.NoError(t, err)

	require.NoError(t, f.auth.SetManager(owner, manager, false))
	_, err = f.vault.ManagerCall(manager, assetAddr, nil, transferPayload(t, bob, 10))
	require.ErrorIs(t, err, protocol.ErrUnauthorized)

	// Effects of the earlier call stand.
	assert.Equal(t, uint64(10), f.asset.BalanceOf(bob).Uint64())
}

func TestManagerCall_StaleSyncCacheDoesNotAuthorize(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.auth.SetManager(owner, manager, true))
	require.True(t, f.reg.SyncManager(manager))
	require.NoError(t, f.auth.SetManager(owner, manager, false))

	_, err := f.vault.ManagerCall(manager, assetAddr, nil, transferPayload(t, bob, 1))
	require.ErrorIs(t, err, protocol.ErrUnauthorized)
}

func TestManagerCall_InvalidTargets(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.auth.SetManager(owner, manager, true))

	_, err := f.vault.ManagerCall(manager, vaultAddr, nil, nil)
	require.ErrorIs(t, err, protocol.ErrInvalidAddress)

	_, err = f.vault.ManagerCall(manager, common.Address{}, nil, nil)
	require.ErrorIs(t, err, protocol.ErrInvalidAddress)

	_, err = f.vault.ManagerCall(manager, hookAddr, nil, nil)
	require.ErrorIs(t, err, protocol.ErrExternalCallFailed, "nothing deployed at target")
}

func TestManagerCall_FailureRevertsPartialEffects(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100, 100)
	f.state.Credit(vaultAddr, amt(50))
	require.NoError(t, f.auth.SetManager(owner, manager, true))

	f.dir.Register(hookAddr, chain.ContractFunc(func(ctx chain.CallContext, data []byte) ([]byte, error) {
		// Pull assets out of the vault, then fail.
		if err := f.asset.Transfer(ctx.Caller, hookAddr, amt(30)); err != nil {
			return nil, err
		}
		return nil, errors.New("hook reverted")
	}))

	_, err := f.vault.ManagerCall(manager, hookAddr, amt(20), []byte{0x01})
	require.ErrorIs(t, err, protocol.ErrExternalCallFailed)
	assert.ErrorContains(t, err, "hook reverted")

	assert.Equal(t, uint64(100), f.vault.TotalAssets().Uint64())
	assert.True(t, f.asset.BalanceOf(hookAddr).IsZero())
	assert.Equal(t, uint64(50), f.state.Balance(vaultAddr).Uint64())
	assert.True(t, f.state.Balance(hookAddr).IsZero())
}

func TestManagerCall_ForwardsValue(t *testing.T) {
	f := newFixture(t)
	f.state.Credit(vaultAddr, amt(50))
	require.NoError(t, f.auth.SetManager(owner, manager, true))

	var seen chain.CallContext
	var payload []byte
	f.dir.Register(hookAddr, chain.ContractFunc(func(ctx chain.CallContext, data []byte) ([]byte, error) {
		seen = ctx
		payload = data
		return []byte("ok"), nil
	}))

	data := []byte{0xca, 0xfe}
	ret, err := f.vault.ManagerCall(manager, hookAddr, amt(20), data)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), ret)
	assert.Equal(t, vaultAddr, seen.Caller)
	assert.Equal(t, uint64(20), seen.Value.Uint64())
	assert.Equal(t, data, payload)
	assert.Equal(t, uint64(30), f.state.Balance(vaultAddr).Uint64())
	assert.Equal(t, uint64(20), f.state.Balance(hookAddr).Uint64())

	_, err = f.vault.ManagerCall(manager, hookAddr, amt(31), data)
	require.ErrorIs(t, err, protocol.ErrExternalCallFailed)
	require.ErrorIs(t, err, protocol.ErrInsufficientBalance)
}

func TestManagerCall_Reentrancy(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100, 100)
	require.NoError(t, f.auth.SetManager(owner, manager, true))

	var inner error
	f.dir.Register(hookAddr, chain.ContractFunc(func(ctx chain.CallContext, data []byte) ([]byte, error) {
		_, inner = f.vault.ManagerCall(manager, assetAddr, nil, transferPayload(t, bob, 5))
		return nil, inner
	}))

	_, err := f.vault.ManagerCall(manager, hookAddr, nil, nil)
	require.ErrorIs(t, inner, protocol.ErrReentrancyDetected)
	require.ErrorIs(t, err, protocol.ErrExternalCallFailed)
	require.ErrorIs(t, err, protocol.ErrReentrancyDetected)
	assert.True(t, f.asset.BalanceOf(bob).IsZero())

	// The guard is released afterwards.
	_, err = f.vault.ManagerCall(manager, assetAddr, nil, transferPayload(t, bob, 5))
	require.NoError(t, err)
}

func TestManagerCall_Event(t *testing.T) {
	f := newFixture(t)
	f.fund(t, alice, 100, 100)
	require.NoError(t, f.auth.SetManager(owner, manager, true))
	data := transferPayload(t, bob, 7)

	_, err := f.vault.ManagerCall(manager, assetAddr, nil, data)
	require.NoError(t, err)

	logs := f.state.TxLogs(common.Hash{})
	ev, ok := protocol.DecodeLog(logs[len(logs)-1])
	require.True(t, ok)
	require.Equal(t, protocol.EventManagerCallExecuted, ev.Name)
	assert.Equal(t, vaultAddr, ev.Contract)

	var body protocol.ManagerCallEvent
	require.NoError(t, ev.Decode(&body))
	assert.Equal(t, manager, body.Caller)
	assert.Equal(t, assetAddr, body.Target)
	assert.Equal(t, "0", body.Value)
	assert.Equal(t, data, []byte(body.Data))
}
