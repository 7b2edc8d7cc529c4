// Package authority holds the source of truth for which accounts are vault
// managers.
package authority

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
)

var (
	slotOwner    = chain.Slot(0)
	slotManagers = chain.Slot(1)
)

// Authority maps accounts to a manager flag that only its owner can change.
type Authority struct {
	store chain.Storage
	owner chain.Ownable
}

// New binds an Authority to the contract at addr.
func New(state *chain.State, addr common.Address) *Authority {
	store := state.Storage(addr)
	return &Authority{
		store: store,
		owner: chain.NewOwnable(store, slotOwner),
	}
}

// Init deploys the authority under owner.
func (a *Authority) Init(owner common.Address) error {
	a.store.State().CreateContract(a.store.Address())
	return a.owner.Init(owner)
}

func (a *Authority) Address() common.Address {
	return a.store.Address()
}

func (a *Authority) Owner() common.Address {
	return a.owner.Owner()
}

// SetManager grants or revokes manager rights for account. Setting the flag
// it already has is allowed and still emits ManagerSet.
func (a *Authority) SetManager(caller, account common.Address, allowed bool) error {
	if err := a.owner.RequireOwner(caller, "setManager"); err != nil {
		return err
	}
	a.store.SetBool(a.managerSlot(account), allowed)
	a.store.Emit(protocol.EventManagerSet, []common.Hash{chain.AddressTopic(account)},
		protocol.ManagerSetEvent{Manager: account, Allowed: allowed})
	log.Info("Manager permission set", "authority", a.Address(), "manager", account, "allowed", allowed)
	return nil
}

// IsAuthorizedManager reports the current flag for account.
func (a *Authority) IsAuthorizedManager(account common.Address) bool {
	return a.store.Bool(a.managerSlot(account))
}

// TransferOwnership hands control of the manager set to newOwner.
func (a *Authority) TransferOwnership(caller, newOwner common.Address) error {
	return a.owner.TransferOwnership(caller, newOwner)
}

func (a *Authority) managerSlot(account common.Address) common.Hash {
	return chain.MappingSlot(slotManagers, chain.AddressKey(account))
}
