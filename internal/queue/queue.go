// Package queue is the user-facing teller: deposits, and withdrawals that
// only become claimable after a fixed delay.
package queue

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
)

// Vault is the subset of the vault the queue drives. The queue never touches
// vault storage directly.
type Vault interface {
	Address() common.Address
	TransferFrom(caller, from, to common.Address, amount *uint256.Int) error
	Transfer(caller, to common.Address, amount *uint256.Int) error
	MintShares(caller, to common.Address, amount *uint256.Int) error
	BurnShares(caller, from common.Address, amount *uint256.Int) error
	TransferAsset(caller, to common.Address, amount *uint256.Int) error
	ConvertToShares(assets *uint256.Int) (*uint256.Int, error)
	ConvertToAssets(shares *uint256.Int) (*uint256.Int, error)
}

// Asset is the token deposits are paid in.
type Asset interface {
	TransferFrom(caller, from, to common.Address, amount *uint256.Int) error
}

var (
	slotLastID   = chain.Slot(0)
	slotRequests = chain.Slot(1)
)

// Field offsets of a request record.
const (
	fieldOwner uint64 = iota
	fieldShares
	fieldUnlock
	fieldHandled
)

// Queue mediates deposits and delayed withdrawals.
type Queue struct {
	store chain.Storage
	vault Vault
	asset Asset
	clock clock.Clock
	delay uint64
	guard chain.Guard
}

// New binds a Queue to the contract at addr. delay is the time between a
// withdrawal request and its unlock; anything under a second falls back to
// DefaultWithdrawDelay.
func New(state *chain.State, addr common.Address, vault Vault, asset Asset, clk clock.Clock, delay time.Duration) *Queue {
	secs := protocol.DefaultWithdrawDelay
	if delay >= time.Second {
		secs = uint64(delay / time.Second)
	} else {
		log.Warn("Withdraw delay too short, using default", "delay", delay, "default", secs)
	}
	return &Queue{
		store: state.Storage(addr),
		vault: vault,
		asset: asset,
		clock: clk,
		delay: secs,
	}
}

// Init deploys the queue.
func (q *Queue) Init() {
	q.store.State().CreateContract(q.store.Address())
}

func (q *Queue) Address() common.Address {
	return q.store.Address()
}

// WithdrawDelay returns the delay between request and unlock.
func (q *Queue) WithdrawDelay() time.Duration {
	return time.Duration(q.delay) * time.Second
}

func (q *Queue) now() uint64 {
	return uint64(q.clock.Now().Unix())
}

// NextRequestID returns the id the next withdrawal request will get.
func (q *Queue) NextRequestID() uint64 {
	return q.store.Uint64(slotLastID) + 1
}

// Request returns the withdrawal request with the given id.
func (q *Queue) Request(id uint64) (*protocol.WithdrawRequest, bool) {
	base := q.requestSlot(id)
	owner := q.store.AddressAt(chain.Offset(base, fieldOwner))
	if owner == (common.Address{}) {
		return nil, false
	}
	return &protocol.WithdrawRequest{
		ID:              id,
		Owner:           owner,
		Shares:          q.store.Word(chain.Offset(base, fieldShares)),
		UnlockTimestamp: q.store.Uint64(chain.Offset(base, fieldUnlock)),
		Handled:         q.store.Bool(chain.Offset(base, fieldHandled)),
	}, true
}

func (q *Queue) requestSlot(id uint64) common.Hash {
	return chain.MappingSlot(slotRequests, chain.Slot(id))
}

func (q *Queue) storeRequest(r *protocol.WithdrawRequest) {
	base := q.requestSlot(r.ID)
	q.store.SetAddress(chain.Offset(base, fieldOwner), r.Owner)
	q.store.SetWord(chain.Offset(base, fieldShares), r.Shares)
	q.store.SetUint64(chain.Offset(base, fieldUnlock), r.UnlockTimestamp)
	q.store.SetBool(chain.Offset(base, fieldHandled), r.Handled)
}

// PreviewDeposit estimates the shares a deposit of assets would mint now.
func (q *Queue) PreviewDeposit(assets *uint256.Int) (*uint256.Int, error) {
	return q.vault.ConvertToShares(assets)
}

// PreviewRedeem estimates the assets shares would fetch if claimed now.
func (q *Queue) PreviewRedeem(shares *uint256.Int) (*uint256.Int, error) {
	return q.vault.ConvertToAssets(shares)
}

// guarded runs fn under the reentrancy guard inside a state snapshot.
func (q *Queue) guarded(op string, fn func() error) error {
	if err := q.guard.Enter(op); err != nil {
		return err
	}
	defer q.guard.Exit()
	return q.store.State().Atomic(fn)
}

// Deposit pulls assets from caller into the vault and mints the matching
// shares to receiver. The asset pull happens before any share is minted.
func (q *Queue) Deposit(caller common.Address, assets *uint256.Int, receiver common.Address) (*uint256.Int, error) {
	var shares *uint256.Int
	err := q.guarded("deposit", func() error {
		if assets == nil || assets.IsZero() {
			return protocol.Fail(protocol.KindZeroAmount, "deposit")
		}
		if receiver == (common.Address{}) {
			return protocol.Fail(protocol.KindInvalidAddress, "deposit")
		}

		var err error
		shares, err = q.vault.ConvertToShares(assets)
		if err != nil {
			return err
		}
		if shares.IsZero() {
			return protocol.Failf(protocol.KindNoAssetsAvailable, "deposit", "%s assets buy no shares", assets.Dec())
		}

		if err := q.asset.TransferFrom(q.Address(), caller, q.vault.Address(), assets); err != nil {
			return protocol.Wrap(protocol.KindExternalCallFailed, "deposit", err)
		}
		if err := q.vault.MintShares(q.Address(), receiver, shares); err != nil {
			return err
		}

		q.store.Emit(protocol.EventDeposit, []common.Hash{
			chain.AddressTopic(caller), chain.AddressTopic(receiver),
		}, protocol.DepositEvent{
			Sender:   caller,
			Receiver: receiver,
			Assets:   assets.Dec(),
			Shares:   shares.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Deposit", "sender", caller, "receiver", receiver, "assets", assets.Dec(), "shares", shares.Dec())
	return shares, nil
}

// RequestWithdraw escrows shares from caller and opens a request that
// unlocks after the withdrawal delay.
func (q *Queue) RequestWithdraw(caller common.Address, shares *uint256.Int) (uint64, error) {
	var req *protocol.WithdrawRequest
	err := q.guarded("requestWithdraw", func() error {
		if shares == nil || shares.IsZero() {
			return protocol.Fail(protocol.KindZeroAmount, "requestWithdraw")
		}
		if err := q.vault.TransferFrom(q.Address(), caller, q.Address(), shares); err != nil {
			return err
		}

		now := q.now()
		unlock := now + q.delay
		if unlock < now {
			return protocol.Failf(protocol.KindOverflow, "requestWithdraw", "unlock time past %d", now)
		}

		id := q.NextRequestID()
		q.store.SetUint64(slotLastID, id)
		req = &protocol.WithdrawRequest{
			ID:              id,
			Owner:           caller,
			Shares:          new(uint256.Int).Set(shares),
			UnlockTimestamp: unlock,
		}
		q.storeRequest(req)

		q.store.Emit(protocol.EventWithdrawRequested, []common.Hash{
			chain.AddressTopic(caller),
		}, protocol.WithdrawRequestedEvent{
			RequestID:       id,
			Owner:           caller,
			Shares:          shares.Dec(),
			UnlockTimestamp: req.UnlockTimestamp,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("Withdrawal requested", "id", req.ID, "owner", caller, "shares", shares.Dec(), "unlock", req.UnlockTimestamp)
	return req.ID, nil
}

// pending loads request id for caller, rejecting strangers and finished
// requests.
func (q *Queue) pending(op string, caller common.Address, id uint64) (*protocol.WithdrawRequest, error) {
	req, ok := q.Request(id)
	if !ok || req.Owner != caller {
		return nil, protocol.Failf(protocol.KindRequestNotOwner, op, "request %d does not belong to %s", id, caller.Hex())
	}
	if req.Handled {
		return nil, protocol.Failf(protocol.KindRequestAlreadyHandled, op, "request %d", id)
	}
	return req, nil
}

// CancelWithdraw abandons request id and returns its escrowed shares to the
// caller. It works before and after maturity.
func (q *Queue) CancelWithdraw(caller common.Address, id uint64) error {
	var req *protocol.WithdrawRequest
	err := q.guarded("cancelWithdraw", func() error {
		var err error
		req, err = q.pending("cancelWithdraw", caller, id)
		if err != nil {
			return err
		}

		req.Handled = true
		q.store.SetBool(chain.Offset(q.requestSlot(id), fieldHandled), true)
		if err := q.vault.Transfer(q.Address(), caller, req.Shares); err != nil {
			return err
		}

		q.store.Emit(protocol.EventWithdrawCancelled, []common.Hash{
			chain.AddressTopic(caller),
		}, protocol.WithdrawCancelledEvent{
			RequestID: id,
			Owner:     caller,
			Shares:    req.Shares.Dec(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("Withdrawal cancelled", "id", id, "owner", caller, "shares", req.Shares.Dec())
	return nil
}

// ClaimWithdraw settles a matured request: the escrowed shares are burned
// and the assets they are worth at this moment go to receiver.
func (q *Queue) ClaimWithdraw(caller common.Address, id uint64, receiver common.Address) (*uint256.Int, error) {
	var assets *uint256.Int
	var req *protocol.WithdrawRequest
	err := q.guarded("claimWithdraw", func() error {
		if receiver == (common.Address{}) {
			return protocol.Fail(protocol.KindInvalidAddress, "claimWithdraw")
		}
		var err error
		req, err = q.pending("claimWithdraw", caller, id)
		if err != nil {
			return err
		}
		if now := q.now(); !req.Matured(now) {
			return protocol.Failf(protocol.KindRequestNotMatured, "claimWithdraw",
				"request %d unlocks at %d, now %d", id, req.UnlockTimestamp, now)
		}

		assets, err = q.vault.ConvertToAssets(req.Shares)
		if err != nil {
			return err
		}
		if assets.IsZero() {
			return protocol.Failf(protocol.KindNoAssetsAvailable, "claimWithdraw", "request %d is worth no assets", id)
		}

		req.Handled = true
		q.store.SetBool(chain.Offset(q.requestSlot(id), fieldHandled), true)
		if err := q.vault.BurnShares(q.Address(), q.Address(), req.Shares); err != nil {
			return err
		}
		if err := q.vault.TransferAsset(q.Address(), receiver, assets); err != nil {
			return err
		}

		q.store.Emit(protocol.EventWithdrawClaimed, []common.Hash{
			chain.AddressTopic(caller), chain.AddressTopic(receiver),
		}, protocol.WithdrawClaimedEvent{
			RequestID: id,
			Owner:     caller,
			Receiver:  receiver,
			Shares:    req.Shares.Dec(),
			Assets:    assets.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Withdrawal claimed", "id", id, "owner", caller, "receiver", receiver,
		"shares", req.Shares.Dec(), "assets", assets.Dec())
	return assets, nil
}
