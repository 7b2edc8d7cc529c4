package protocol

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event names. The first topic of every emitted log is keccak256(name).
const (
	EventTransfer             = "Transfer"
	EventApproval             = "Approval"
	EventOwnershipTransferred = "OwnershipTransferred"
	EventManagerSet           = "ManagerSet"
	EventAuthorityUpdated     = "AuthorityUpdated"
	EventManagerSynced        = "ManagerSynced"
	EventTellerUpdated        = "TellerUpdated"
	EventManagerCallExecuted  = "ManagerCallExecuted"
	EventDeposit              = "Deposit"
	EventWithdrawRequested    = "WithdrawRequested"
	EventWithdrawCancelled    = "WithdrawCancelled"
	EventWithdrawClaimed      = "WithdrawClaimed"
)

var eventNames = map[common.Hash]string{}

func init() {
	for _, name := range []string{
		EventTransfer, EventApproval, EventOwnershipTransferred, EventManagerSet,
		EventAuthorityUpdated, EventManagerSynced, EventTellerUpdated,
		EventManagerCallExecuted, EventDeposit, EventWithdrawRequested,
		EventWithdrawCancelled, EventWithdrawClaimed,
	} {
		eventNames[EventID(name)] = name
	}
}

// EventID returns the topic identifying events called name.
func EventID(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name))
}

// AddressTopic encodes an indexed address parameter.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// Amounts in event bodies are decimal strings.

type TransferEvent struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount string         `json:"amount"`
}

type ApprovalEvent struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  string         `json:"amount"`
}

type OwnershipTransferredEvent struct {
	PreviousOwner common.Address `json:"previous_owner"`
	NewOwner      common.Address `json:"new_owner"`
}

type ManagerSetEvent struct {
	Manager common.Address `json:"manager"`
	Allowed bool           `json:"allowed"`
}

type AuthorityUpdatedEvent struct {
	Previous  common.Address `json:"previous"`
	Authority common.Address `json:"authority"`
}

type ManagerSyncedEvent struct {
	Manager common.Address `json:"manager"`
	Allowed bool           `json:"allowed"`
}

type TellerUpdatedEvent struct {
	Previous common.Address `json:"previous"`
	Teller   common.Address `json:"teller"`
}

type ManagerCallEvent struct {
	Caller common.Address `json:"caller"`
	Target common.Address `json:"target"`
	Value  string         `json:"value"`
	Data   hexutil.Bytes  `json:"data"`
	Result hexutil.Bytes  `json:"result"`
}

type DepositEvent struct {
	Sender   common.Address `json:"sender"`
	Receiver common.Address `json:"receiver"`
	Assets   string         `json:"assets"`
	Shares   string         `json:"shares"`
}

type WithdrawRequestedEvent struct {
	RequestID       uint64         `json:"request_id"`
	Owner           common.Address `json:"owner"`
	Shares          string         `json:"shares"`
	UnlockTimestamp uint64         `json:"unlock_timestamp"`
}

type WithdrawCancelledEvent struct {
	RequestID uint64         `json:"request_id"`
	Owner     common.Address `json:"owner"`
	Shares    string         `json:"shares"`
}

type WithdrawClaimedEvent struct {
	RequestID uint64         `json:"request_id"`
	Owner     common.Address `json:"owner"`
	Receiver  common.Address `json:"receiver"`
	Shares    string         `json:"shares"`
	Assets    string         `json:"assets"`
}

// EventRecord is a decoded log.
type EventRecord struct {
	Contract common.Address  `json:"contract"`
	Name     string          `json:"name"`
	Data     json.RawMessage `json:"data"`
}

// DecodeLog recovers the event carried by l. It reports false for logs whose
// first topic is not a known event.
func DecodeLog(l *types.Log) (EventRecord, bool) {
	if l == nil || len(l.Topics) == 0 {
		return EventRecord{}, false
	}
	name, ok := eventNames[l.Topics[0]]
	if !ok {
		return EventRecord{}, false
	}
	data := make(json.RawMessage, len(l.Data))
	copy(data, l.Data)
	return EventRecord{Contract: l.Address, Name: name, Data: data}, true
}

// Decode unmarshals the event body into v.
func (r EventRecord) Decode(v interface{}) error {
	return json.Unmarshal(r.Data, v)
}
