package protocol

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// DefaultWithdrawDelay is the queue delay in seconds (3 days).
const DefaultWithdrawDelay uint64 = 3 * 24 * 60 * 60

// RequestStatus is the lifecycle position of a withdrawal request.
type RequestStatus string

const (
	RequestPending RequestStatus = "pending"
	RequestHandled RequestStatus = "handled"
)

// WithdrawRequest is a queued withdrawal. Shares are fixed when the request
// is made; the asset amount is only computed when it is claimed.
type WithdrawRequest struct {
	ID              uint64
	Owner           common.Address
	Shares          *uint256.Int
	UnlockTimestamp uint64
	Handled         bool
}

// Status returns the request's lifecycle position.
func (r *WithdrawRequest) Status() RequestStatus {
	if r.Handled {
		return RequestHandled
	}
	return RequestPending
}

// Matured reports whether the request can be claimed at unix time now.
func (r *WithdrawRequest) Matured(now uint64) bool {
	return now >= r.UnlockTimestamp
}

// HTTP harness request bodies. Amounts are decimal strings and From names the
// acting account.

type ApproveRequest struct {
	From    string `json:"from"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type DepositRequest struct {
	From     string `json:"from"`
	Assets   string `json:"assets"`
	Receiver string `json:"receiver"`
}

type WithdrawRequestBody struct {
	From   string `json:"from"`
	Shares string `json:"shares"`
}

type CancelRequest struct {
	From      string `json:"from"`
	RequestID uint64 `json:"request_id"`
}

type ClaimRequest struct {
	From      string `json:"from"`
	RequestID uint64 `json:"request_id"`
	Receiver  string `json:"receiver"`
}

type ManagerCallRequest struct {
	From   string        `json:"from"`
	Target string        `json:"target"`
	Value  string        `json:"value,omitempty"`
	Data   hexutil.Bytes `json:"data"`
}

type SetManagerRequest struct {
	From    string `json:"from"`
	Manager string `json:"manager"`
	Allowed bool   `json:"allowed"`
}

type SetAddressRequest struct {
	From    string `json:"from"`
	Address string `json:"address"`
}

type SyncRequest struct {
	From     string   `json:"from"`
	Managers []string `json:"managers"`
}

// TxResponse is returned by every mutating endpoint.
type TxResponse struct {
	TxID   string      `json:"tx_id"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Kind   Kind        `json:"kind,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// WithdrawRequestView is the JSON form of a WithdrawRequest.
type WithdrawRequestView struct {
	ID              uint64         `json:"id"`
	Owner           common.Address `json:"owner"`
	Shares          string         `json:"shares"`
	UnlockTimestamp uint64         `json:"unlock_timestamp"`
	Handled         bool           `json:"handled"`
	Status          RequestStatus  `json:"status"`
	Matured         bool           `json:"matured"`
}

// View renders r for clients, evaluating maturity at unix time now.
func (r *WithdrawRequest) View(now uint64) WithdrawRequestView {
	return WithdrawRequestView{
		ID:              r.ID,
		Owner:           r.Owner,
		Shares:          r.Shares.Dec(),
		UnlockTimestamp: r.UnlockTimestamp,
		Handled:         r.Handled,
		Status:          r.Status(),
		Matured:         r.Matured(now),
	}
}
