package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/protocol"
)

// CallContext describes an inbound call to a Contract.
type CallContext struct {
	Caller common.Address
	Value  *uint256.Int
}

// Contract is something that can be the target of a raw call. Handlers are
// trusted code: they run unsandboxed with the caller's authority and may
// re-enter other contracts.
type Contract interface {
	Call(ctx CallContext, data []byte) ([]byte, error)
}

// ContractFunc adapts a function to the Contract interface.
type ContractFunc func(ctx CallContext, data []byte) ([]byte, error)

func (f ContractFunc) Call(ctx CallContext, data []byte) ([]byte, error) {
	return f(ctx, data)
}

// Directory maps addresses to the contract objects deployed there.
type Directory struct {
	state     *State
	contracts map[common.Address]interface{}
}

func NewDirectory(state *State) *Directory {
	return &Directory{
		state:     state,
		contracts: make(map[common.Address]interface{}),
	}
}

// Register binds obj to addr, replacing any earlier binding.
func (d *Directory) Register(addr common.Address, obj interface{}) {
	d.contracts[addr] = obj
}

// Lookup returns the object at addr, or nil.
func (d *Directory) Lookup(addr common.Address) interface{} {
	return d.contracts[addr]
}

// Call forwards value units of native balance from caller to target and
// invokes target with data. Nothing is applied when the handler fails.
func (d *Directory) Call(caller, target common.Address, value *uint256.Int, data []byte) ([]byte, error) {
	c, ok := d.contracts[target].(Contract)
	if !ok {
		return nil, protocol.Failf(protocol.KindExternalCallFailed, "call", "no contract at %s", target.Hex())
	}
	if value == nil {
		value = new(uint256.Int)
	}

	var ret []byte
	err := d.state.Atomic(func() error {
		if !value.IsZero() {
			if err := d.state.TransferNative(caller, target, value); err != nil {
				return err
			}
		}
		out, err := c.Call(CallContext{Caller: caller, Value: value}, data)
		if err != nil {
			return err
		}
		ret = out
		return nil
	})
	return ret, err
}
