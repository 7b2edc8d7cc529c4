package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
)

// ManagerCall forwards data and value units of the vault's native balance to
// target on behalf of the vault. The caller must be a manager according to
// the registry at the moment of the call. There is no allowlist of targets
// or payloads; the only excluded targets are the zero address and the vault
// itself. A failing target leaves no effects behind.
func (v *Vault) ManagerCall(caller, target common.Address, value *uint256.Int, data []byte) ([]byte, error) {
	if err := v.guard.Enter("managerCall"); err != nil {
		return nil, err
	}
	defer v.guard.Exit()

	if !v.registry.IsAuthorizedManager(caller) {
		return nil, protocol.Failf(protocol.KindUnauthorized, "managerCall", "%s is not a manager", caller.Hex())
	}
	if target == (common.Address{}) {
		return nil, protocol.Fail(protocol.KindInvalidAddress, "managerCall")
	}
	if target == v.Address() {
		return nil, protocol.Failf(protocol.KindInvalidAddress, "managerCall", "vault cannot call itself")
	}
	if value == nil {
		value = new(uint256.Int)
	}
	payload := append([]byte(nil), data...)

	var result []byte
	err := v.store.State().Atomic(func() error {
		ret, err := v.dispatcher.Call(v.Address(), target, value, payload)
		if err != nil {
			return protocol.Wrap(protocol.KindExternalCallFailed, "managerCall", err)
		}
		result = ret
		v.store.Emit(protocol.EventManagerCallExecuted, []common.Hash{
			chain.AddressTopic(caller), chain.AddressTopic(target),
		}, protocol.ManagerCallEvent{
			Caller: caller,
			Target: target,
			Value:  value.Dec(),
			Data:   payload,
			Result: ret,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Manager call executed", "vault", v.Address(), "manager", caller, "target", target,
		"value", value.Dec(), "payload", len(payload), "result", len(result))
	return result, nil
}
