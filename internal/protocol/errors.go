package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation was rejected.
type Kind string

const (
	KindInvalidAddress        Kind = "invalid_address"
	KindZeroAmount            Kind = "zero_amount"
	KindUnauthorized          Kind = "unauthorized"
	KindInsufficientBalance   Kind = "insufficient_balance"
	KindInsufficientAllowance Kind = "insufficient_allowance"
	KindRequestNotOwner       Kind = "request_not_owner"
	KindRequestAlreadyHandled Kind = "request_already_handled"
	KindRequestNotMatured     Kind = "request_not_matured"
	KindNoAssetsAvailable     Kind = "no_assets_available"
	KindExternalCallFailed    Kind = "external_call_failed"
	KindReentrancyDetected    Kind = "reentrancy_detected"
	KindOverflow              Kind = "overflow"
)

// Error is returned by every contract operation that aborts. Two errors are
// considered equal by errors.Is when their kinds match, so callers compare
// against the sentinels below.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Errors
var (
	ErrInvalidAddress        = &Error{Kind: KindInvalidAddress}
	ErrZeroAmount            = &Error{Kind: KindZeroAmount}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientAllowance = &Error{Kind: KindInsufficientAllowance}
	ErrRequestNotOwner       = &Error{Kind: KindRequestNotOwner}
	ErrRequestAlreadyHandled = &Error{Kind: KindRequestAlreadyHandled}
	ErrRequestNotMatured     = &Error{Kind: KindRequestNotMatured}
	ErrNoAssetsAvailable     = &Error{Kind: KindNoAssetsAvailable}
	ErrExternalCallFailed    = &Error{Kind: KindExternalCallFailed}
	ErrReentrancyDetected    = &Error{Kind: KindReentrancyDetected}
	ErrOverflow              = &Error{Kind: KindOverflow}
)

// Fail builds an Error of the given kind for operation op.
func Fail(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Failf is Fail with a formatted detail message.
func Failf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap reports cause as an Error of the given kind. The cause stays reachable
// through errors.Is and errors.As.
func Wrap(kind Kind, op string, cause error) error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf returns the kind of the outermost Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
