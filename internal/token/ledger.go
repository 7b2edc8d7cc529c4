package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
)

// Unlimited returns the allowance value that transferFrom never decrements.
func Unlimited() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// Ledger is a fungible balance sheet kept in a contract's storage: balances,
// allowances and total supply, with the sum of balances always equal to the
// supply.
type Ledger struct {
	store      chain.Storage
	balances   common.Hash
	allowances common.Hash
	supply     common.Hash
}

// NewLedger lays a ledger out over store using the given base slots.
func NewLedger(store chain.Storage, balances, allowances, supply common.Hash) *Ledger {
	return &Ledger{
		store:      store,
		balances:   balances,
		allowances: allowances,
		supply:     supply,
	}
}

func (l *Ledger) balanceSlot(account common.Address) common.Hash {
	return chain.MappingSlot(l.balances, chain.AddressKey(account))
}

func (l *Ledger) allowanceSlot(owner, spender common.Address) common.Hash {
	inner := chain.MappingSlot(l.allowances, chain.AddressKey(owner))
	return chain.MappingSlot(inner, chain.AddressKey(spender))
}

func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	return l.store.Word(l.balanceSlot(account))
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	return l.store.Word(l.allowanceSlot(owner, spender))
}

func (l *Ledger) TotalSupply() *uint256.Int {
	return l.store.Word(l.supply)
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "transfer")
	}
	fromBal := l.BalanceOf(from)
	if fromBal.Lt(amount) {
		return protocol.Failf(protocol.KindInsufficientBalance, "transfer",
			"%s holds %s, needs %s", from.Hex(), fromBal.Dec(), amount.Dec())
	}
	l.store.SetWord(l.balanceSlot(from), fromBal.Sub(fromBal, amount))

	// Cannot overflow: the sum of balances is bounded by the supply.
	toBal := l.BalanceOf(to)
	l.store.SetWord(l.balanceSlot(to), toBal.Add(toBal, amount))

	l.emitTransfer(from, to, amount)
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "approve")
	}
	l.store.SetWord(l.allowanceSlot(owner, spender), amount)
	l.store.Emit(protocol.EventApproval, []common.Hash{
		chain.AddressTopic(owner), chain.AddressTopic(spender),
	}, protocol.ApprovalEvent{Owner: owner, Spender: spender, Amount: amount.Dec()})
	return nil
}

// TransferFrom moves amount from one account to another on behalf of
// spender, consuming allowance unless it is Unlimited.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	return l.store.State().Atomic(func() error {
		if err := l.spendAllowance(from, spender, amount); err != nil {
			return err
		}
		return l.Transfer(from, to, amount)
	})
}

func (l *Ledger) spendAllowance(owner, spender common.Address, amount *uint256.Int) error {
	allowed := l.Allowance(owner, spender)
	if allowed.Eq(Unlimited()) {
		return nil
	}
	if allowed.Lt(amount) {
		return protocol.Failf(protocol.KindInsufficientAllowance, "transferFrom",
			"%s may spend %s of %s, needs %s", spender.Hex(), allowed.Dec(), owner.Hex(), amount.Dec())
	}
	l.store.SetWord(l.allowanceSlot(owner, spender), allowed.Sub(allowed, amount))
	return nil
}

// Mint creates amount new units for to.
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "mint")
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.TotalSupply(), amount)
	if overflow {
		return protocol.Fail(protocol.KindOverflow, "mint")
	}
	l.store.SetWord(l.supply, supply)
	bal := l.BalanceOf(to)
	l.store.SetWord(l.balanceSlot(to), bal.Add(bal, amount))

	l.emitTransfer(common.Address{}, to, amount)
	return nil
}

// Burn destroys amount units held by from.
func (l *Ledger) Burn(from common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "burn")
	}
	bal := l.BalanceOf(from)
	if bal.Lt(amount) {
		return protocol.Failf(protocol.KindInsufficientBalance, "burn",
			"%s holds %s, needs %s", from.Hex(), bal.Dec(), amount.Dec())
	}
	l.store.SetWord(l.balanceSlot(from), bal.Sub(bal, amount))
	supply := l.TotalSupply()
	l.store.SetWord(l.supply, supply.Sub(supply, amount))

	l.emitTransfer(from, common.Address{}, amount)
	return nil
}

func (l *Ledger) emitTransfer(from, to common.Address, amount *uint256.Int) {
	l.store.Emit(protocol.EventTransfer, []common.Hash{
		chain.AddressTopic(from), chain.AddressTopic(to),
	}, protocol.TransferEvent{From: from, To: to, Amount: amount.Dec()})
}
