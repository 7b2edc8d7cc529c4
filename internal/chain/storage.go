package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Slot returns the n-th fixed storage slot.
func Slot(n uint64) common.Hash {
	return common.Hash(uint256.NewInt(n).Bytes32())
}

// MappingSlot returns the slot holding key in the mapping rooted at base,
// using the Solidity layout keccak256(key . base).
func MappingSlot(base, key common.Hash) common.Hash {
	return crypto.Keccak256Hash(key.Bytes(), base.Bytes())
}

// AddressKey encodes addr as a mapping key.
func AddressKey(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// Offset returns the slot i words after slot. Struct fields stored in a
// mapping live at consecutive offsets from the entry's slot.
func Offset(slot common.Hash, i uint64) common.Hash {
	v := new(uint256.Int).SetBytes32(slot[:])
	v.AddUint64(v, i)
	return common.Hash(v.Bytes32())
}

// Storage is the storage of a single contract account.
type Storage struct {
	state *State
	addr  common.Address
}

// Address returns the contract owning this storage.
func (st Storage) Address() common.Address {
	return st.addr
}

// State returns the world state the storage belongs to.
func (st Storage) State() *State {
	return st.state
}

func (st Storage) Word(slot common.Hash) *uint256.Int {
	h := st.state.stateDB.GetState(st.addr, slot)
	return new(uint256.Int).SetBytes32(h[:])
}

func (st Storage) SetWord(slot common.Hash, v *uint256.Int) {
	st.state.stateDB.SetState(st.addr, slot, common.Hash(v.Bytes32()))
}

func (st Storage) Uint64(slot common.Hash) uint64 {
	return st.Word(slot).Uint64()
}

func (st Storage) SetUint64(slot common.Hash, v uint64) {
	st.SetWord(slot, uint256.NewInt(v))
}

func (st Storage) AddressAt(slot common.Hash) common.Address {
	return common.BytesToAddress(st.state.stateDB.GetState(st.addr, slot).Bytes())
}

func (st Storage) SetAddress(slot common.Hash, addr common.Address) {
	st.state.stateDB.SetState(st.addr, slot, AddressKey(addr))
}

func (st Storage) Bool(slot common.Hash) bool {
	return st.state.stateDB.GetState(st.addr, slot) != (common.Hash{})
}

func (st Storage) SetBool(slot common.Hash, v bool) {
	if v {
		st.SetUint64(slot, 1)
		return
	}
	st.state.stateDB.SetState(st.addr, slot, common.Hash{})
}

// Emit records an event from this contract.
func (st Storage) Emit(name string, indexed []common.Hash, body interface{}) {
	st.state.Emit(st.addr, name, indexed, body)
}
