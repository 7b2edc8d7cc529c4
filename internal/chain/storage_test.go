package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestSlotLayout(t *testing.T) {
	assert.Equal(t, common.HexToHash("0x05"), Slot(5))
	assert.Equal(t, Slot(6), Offset(Slot(5), 1))

	a := MappingSlot(Slot(1), AddressKey(aliceAddr))
	b := MappingSlot(Slot(1), AddressKey(bobAddr))
	c := MappingSlot(Slot(2), AddressKey(aliceAddr))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, MappingSlot(Slot(1), AddressKey(aliceAddr)))
}

func TestStorage_Values(t *testing.T) {
	s := newTestState(t)
	store := s.Storage(contractAddr)

	big := new(uint256.Int).SetAllOne()
	store.SetWord(Slot(0), big)
	assert.True(t, store.Word(Slot(0)).Eq(big))

	store.SetAddress(Slot(1), aliceAddr)
	assert.Equal(t, aliceAddr, store.AddressAt(Slot(1)))

	assert.False(t, store.Bool(Slot(2)))
	store.SetBool(Slot(2), true)
	assert.True(t, store.Bool(Slot(2)))
	store.SetBool(Slot(2), false)
	assert.False(t, store.Bool(Slot(2)))

	// Storage of different contracts is disjoint.
	assert.Equal(t, common.Address{}, s.Storage(bobAddr).AddressAt(Slot(1)))
}

func TestOwnable(t *testing.T) {
	s := newTestState(t)
	o := NewOwnable(s.Storage(contractAddr), Slot(0))

	assert.Error(t, o.Init(common.Address{}))
	assert.NoError(t, o.Init(aliceAddr))
	assert.Equal(t, aliceAddr, o.Owner())

	assert.Error(t, o.RequireOwner(bobAddr, "op"))
	assert.Error(t, o.TransferOwnership(bobAddr, bobAddr))
	assert.Error(t, o.TransferOwnership(aliceAddr, common.Address{}))
	assert.NoError(t, o.TransferOwnership(aliceAddr, bobAddr))
	assert.Equal(t, bobAddr, o.Owner())
	assert.NoError(t, o.RequireOwner(bobAddr, "op"))
}
