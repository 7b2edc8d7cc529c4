package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
	"github.com/vault-experiment/custody/internal/token"
)

// Asset is the fungible token the vault custodies.
type Asset interface {
	BalanceOf(account common.Address) *uint256.Int
	Transfer(caller, to common.Address, amount *uint256.Int) error
	TransferFrom(caller, from, to common.Address, amount *uint256.Int) error
}

// Registry decides whether an account may use ManagerCall.
type Registry interface {
	IsAuthorizedManager(account common.Address) bool
}

// Dispatcher delivers manager calls to their targets.
type Dispatcher interface {
	Call(caller, target common.Address, value *uint256.Int, data []byte) ([]byte, error)
}

var (
	slotOwner      = chain.Slot(0)
	slotTeller     = chain.Slot(1)
	slotBalances   = chain.Slot(2)
	slotAllowances = chain.Slot(3)
	slotSupply     = chain.Slot(4)
)

// Vault custodies the asset, keeps the share ledger and lets managers act on
// the custodied funds.
type Vault struct {
	store      chain.Storage
	owner      chain.Ownable
	shares     *token.Ledger
	asset      Asset
	registry   Registry
	dispatcher Dispatcher
	meta       token.Metadata
	guard      chain.Guard
}

// New binds a Vault to the contract at addr.
func New(state *chain.State, addr common.Address, asset Asset, registry Registry, dispatcher Dispatcher, meta token.Metadata) *Vault {
	store := state.Storage(addr)
	return &Vault{
		store:      store,
		owner:      chain.NewOwnable(store, slotOwner),
		shares:     token.NewLedger(store, slotBalances, slotAllowances, slotSupply),
		asset:      asset,
		registry:   registry,
		dispatcher: dispatcher,
		meta:       meta,
	}
}

// Init deploys the vault under owner.
func (v *Vault) Init(owner common.Address) error {
	v.store.State().CreateContract(v.store.Address())
	return v.owner.Init(owner)
}

func (v *Vault) Address() common.Address { return v.store.Address() }
func (v *Vault) Owner() common.Address   { return v.owner.Owner() }
func (v *Vault) Teller() common.Address  { return v.store.AddressAt(slotTeller) }
func (v *Vault) Name() string            { return v.meta.Name }
func (v *Vault) Symbol() string          { return v.meta.Symbol }
func (v *Vault) Decimals() uint8         { return v.meta.Decimals }

// Share token

func (v *Vault) BalanceOf(account common.Address) *uint256.Int {
	return v.shares.BalanceOf(account)
}

func (v *Vault) Allowance(owner, spender common.Address) *uint256.Int {
	return v.shares.Allowance(owner, spender)
}

func (v *Vault) TotalSupply() *uint256.Int {
	return v.shares.TotalSupply()
}

func (v *Vault) Transfer(caller, to common.Address, amount *uint256.Int) error {
	return v.shares.Transfer(caller, to, amount)
}

func (v *Vault) Approve(caller, spender common.Address, amount *uint256.Int) error {
	return v.shares.Approve(caller, spender, amount)
}

func (v *Vault) TransferFrom(caller, from, to common.Address, amount *uint256.Int) error {
	return v.shares.TransferFrom(caller, from, to, amount)
}

// Teller operations

func (v *Vault) requireTeller(caller common.Address, op string) error {
	teller := v.Teller()
	if teller == (common.Address{}) || caller != teller {
		return protocol.Failf(protocol.KindUnauthorized, op, "%s is not the teller", caller.Hex())
	}
	return nil
}

// MintShares creates shares for to. Only the teller may mint.
func (v *Vault) MintShares(caller, to common.Address, amount *uint256.Int) error {
	if err := v.requireTeller(caller, "mintShares"); err != nil {
		return err
	}
	return v.shares.Mint(to, amount)
}

// BurnShares destroys shares held by from. Only the teller may burn.
func (v *Vault) BurnShares(caller, from common.Address, amount *uint256.Int) error {
	if err := v.requireTeller(caller, "burnShares"); err != nil {
		return err
	}
	return v.shares.Burn(from, amount)
}

// TransferAsset releases custodied asset to to. Only the teller may release.
func (v *Vault) TransferAsset(caller, to common.Address, amount *uint256.Int) error {
	if err := v.requireTeller(caller, "transferAsset"); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "transferAsset")
	}
	if err := v.asset.Transfer(v.Address(), to, amount); err != nil {
		return protocol.Wrap(protocol.KindExternalCallFailed, "transferAsset", err)
	}
	return nil
}

// SetTeller points the vault at the queue allowed to mint, burn and release.
func (v *Vault) SetTeller(caller, teller common.Address) error {
	if err := v.owner.RequireOwner(caller, "setTeller"); err != nil {
		return err
	}
	if teller == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "setTeller")
	}
	prev := v.Teller()
	v.store.SetAddress(slotTeller, teller)
	v.store.Emit(protocol.EventTellerUpdated, []common.Hash{chain.AddressTopic(teller)},
		protocol.TellerUpdatedEvent{Previous: prev, Teller: teller})
	log.Info("Vault teller updated", "vault", v.Address(), "previous", prev, "teller", teller)
	return nil
}

// TransferOwnership hands control of the vault to newOwner.
func (v *Vault) TransferOwnership(caller, newOwner common.Address) error {
	return v.owner.TransferOwnership(caller, newOwner)
}

// Exchange rate

// TotalAssets is the vault's live asset balance.
func (v *Vault) TotalAssets() *uint256.Int {
	return v.asset.BalanceOf(v.Address())
}

// ConvertToShares returns floor(assets * supply / totalAssets), or assets
// itself while either side of the rate is zero.
func (v *Vault) ConvertToShares(assets *uint256.Int) (*uint256.Int, error) {
	return convert("convertToShares", assets, v.TotalSupply(), v.TotalAssets())
}

// ConvertToAssets returns floor(shares * totalAssets / supply), or shares
// itself while either side of the rate is zero.
func (v *Vault) ConvertToAssets(shares *uint256.Int) (*uint256.Int, error) {
	return convert("convertToAssets", shares, v.TotalAssets(), v.TotalSupply())
}

func convert(op string, amount, num, den *uint256.Int) (*uint256.Int, error) {
	if num.IsZero() || den.IsZero() {
		return new(uint256.Int).Set(amount), nil
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amount, num, den)
	if overflow {
		return nil, protocol.Fail(protocol.KindOverflow, op)
	}
	return out, nil
}
