package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
)

const tokenABI = `[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// ABI describes the calls a Token accepts through Call.
var ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		panic(fmt.Sprintf("token: bad ABI: %v", err))
	}
	ABI = parsed
}

// Metadata describes a token.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

var (
	slotOwner      = chain.Slot(0)
	slotBalances   = chain.Slot(1)
	slotAllowances = chain.Slot(2)
	slotSupply     = chain.Slot(3)
)

// Token is the fungible asset custodied by the vault.
type Token struct {
	*Ledger
	store chain.Storage
	owner chain.Ownable
	meta  Metadata
}

// New binds a Token to the contract at addr. Call Init once on a fresh state.
func New(state *chain.State, addr common.Address, meta Metadata) *Token {
	store := state.Storage(addr)
	return &Token{
		Ledger: NewLedger(store, slotBalances, slotAllowances, slotSupply),
		store:  store,
		owner:  chain.NewOwnable(store, slotOwner),
		meta:   meta,
	}
}

// Init deploys the token with owner as its minter.
func (t *Token) Init(owner common.Address) error {
	t.store.State().CreateContract(t.store.Address())
	return t.owner.Init(owner)
}

func (t *Token) Address() common.Address { return t.store.Address() }
func (t *Token) Owner() common.Address   { return t.owner.Owner() }
func (t *Token) Name() string            { return t.meta.Name }
func (t *Token) Symbol() string          { return t.meta.Symbol }
func (t *Token) Decimals() uint8         { return t.meta.Decimals }

// Transfer moves amount of the caller's tokens to to.
func (t *Token) Transfer(caller, to common.Address, amount *uint256.Int) error {
	return t.Ledger.Transfer(caller, to, amount)
}

// Approve lets spender move up to amount of the caller's tokens.
func (t *Token) Approve(caller, spender common.Address, amount *uint256.Int) error {
	return t.Ledger.Approve(caller, spender, amount)
}

// TransferFrom moves amount from from to to using the caller's allowance.
func (t *Token) TransferFrom(caller, from, to common.Address, amount *uint256.Int) error {
	return t.Ledger.TransferFrom(caller, from, to, amount)
}

// Mint creates new tokens. Only the owner may mint.
func (t *Token) Mint(caller, to common.Address, amount *uint256.Int) error {
	if err := t.owner.RequireOwner(caller, "mint"); err != nil {
		return err
	}
	if err := t.Ledger.Mint(to, amount); err != nil {
		return err
	}
	log.Debug("Token minted", "token", t.meta.Symbol, "to", to, "amount", amount.Dec())
	return nil
}

// TransferOwnership hands minting rights to newOwner.
func (t *Token) TransferOwnership(caller, newOwner common.Address) error {
	return t.owner.TransferOwnership(caller, newOwner)
}

// Call executes an ABI-encoded token call from ctx.Caller.
func (t *Token) Call(ctx chain.CallContext, data []byte) ([]byte, error) {
	if ctx.Value != nil && !ctx.Value.IsZero() {
		return nil, fmt.Errorf("token: call is not payable")
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("token: payload too short (%d bytes)", len(data))
	}
	method, err := ABI.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("token: bad %s arguments: %w", method.Name, err)
	}

	switch method.Name {
	case "transfer":
		err = t.Transfer(ctx.Caller, args[0].(common.Address), amountArg(args[1]))
	case "approve":
		err = t.Approve(ctx.Caller, args[0].(common.Address), amountArg(args[1]))
	case "transferFrom":
		err = t.TransferFrom(ctx.Caller, args[0].(common.Address), args[1].(common.Address), amountArg(args[2]))
	case "balanceOf":
		return method.Outputs.Pack(t.BalanceOf(args[0].(common.Address)).ToBig())
	case "allowance":
		return method.Outputs.Pack(t.Allowance(args[0].(common.Address), args[1].(common.Address)).ToBig())
	case "totalSupply":
		return method.Outputs.Pack(t.TotalSupply().ToBig())
	default:
		return nil, fmt.Errorf("token: unsupported method %s", method.Name)
	}
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(true)
}

func amountArg(v interface{}) *uint256.Int {
	// ABI uint256 values always fit.
	amount, _ := uint256.FromBig(v.(*big.Int))
	return amount
}

// Pack encodes a call to method for use as a manager-call payload.
func Pack(method string, args ...interface{}) ([]byte, error) {
	for i, a := range args {
		if u, ok := a.(*uint256.Int); ok {
			args[i] = u.ToBig()
		}
	}
	return ABI.Pack(method, args...)
}

// UnpackAmount decodes the uint256 returned by balanceOf, allowance or
// totalSupply.
func UnpackAmount(method string, ret []byte) (*uint256.Int, error) {
	out, err := ABI.Unpack(method, ret)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("token: %s returned %d values", method, len(out))
	}
	b, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("token: %s did not return an amount", method)
	}
	amount, overflow := uint256.FromBig(b)
	if overflow {
		return nil, protocol.Fail(protocol.KindOverflow, method)
	}
	return amount, nil
}
