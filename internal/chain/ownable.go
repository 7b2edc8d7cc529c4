package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/vault-experiment/custody/internal/protocol"
)

// Ownable keeps a contract's owner in one storage slot.
type Ownable struct {
	store Storage
	slot  common.Hash
}

func NewOwnable(store Storage, slot common.Hash) Ownable {
	return Ownable{store: store, slot: slot}
}

// Owner returns the current owner.
func (o Ownable) Owner() common.Address {
	return o.store.AddressAt(o.slot)
}

// Init sets the first owner.
func (o Ownable) Init(owner common.Address) error {
	if owner == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "init")
	}
	o.store.SetAddress(o.slot, owner)
	o.store.Emit(protocol.EventOwnershipTransferred, []common.Hash{
		AddressTopic(common.Address{}), AddressTopic(owner),
	}, protocol.OwnershipTransferredEvent{NewOwner: owner})
	return nil
}

// RequireOwner fails with Unauthorized unless caller owns the contract.
func (o Ownable) RequireOwner(caller common.Address, op string) error {
	if caller != o.Owner() {
		return protocol.Failf(protocol.KindUnauthorized, op, "%s is not the owner", caller.Hex())
	}
	return nil
}

// TransferOwnership hands the contract to newOwner.
func (o Ownable) TransferOwnership(caller, newOwner common.Address) error {
	if err := o.RequireOwner(caller, "transferOwnership"); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "transferOwnership")
	}
	prev := o.Owner()
	o.store.SetAddress(o.slot, newOwner)
	o.store.Emit(protocol.EventOwnershipTransferred, []common.Hash{
		AddressTopic(prev), AddressTopic(newOwner),
	}, protocol.OwnershipTransferredEvent{PreviousOwner: prev, NewOwner: newOwner})
	log.Debug("Ownership transferred", "contract", o.store.Address(), "from", prev, "to", newOwner)
	return nil
}

// AddressTopic encodes an indexed address parameter.
func AddressTopic(addr common.Address) common.Hash {
	return protocol.AddressTopic(addr)
}
