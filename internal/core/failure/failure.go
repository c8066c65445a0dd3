// Package failure classifies errors returned by the managers so callers can
// decide between fixing input, retrying, and reconciling.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the error category surfaced to callers.
type Kind string

const (
	// KindValidation is malformed input detected before any network call.
	KindValidation Kind = "validation"
	// KindPrecondition is valid input the current ledger state will refuse.
	KindPrecondition Kind = "precondition"
	// KindRejected is a validated ledger result other than tesSUCCESS.
	KindRejected Kind = "rejected"
	// KindNetwork is a connection failure before anything was submitted.
	// The whole operation may be retried.
	KindNetwork Kind = "network"
	// KindAmbiguous means a transaction was submitted but its outcome is
	// unknown. Reconcile through a status query; never resubmit.
	KindAmbiguous Kind = "ambiguous"
	// KindInternal is anything else.
	KindInternal Kind = "internal"
)

// Error is the error type returned by manager operations.
type Error struct {
	Kind Kind
	// Op names the failed operation, e.g. "escrow.finish".
	Op string
	// Code is the ledger result or error code, verbatim, when one exists.
	Code string
	// TxHash is set for rejected and ambiguous submissions.
	TxHash  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s: %s", e.Op, e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrRejected     = &Error{Kind: KindRejected}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrAmbiguous    = &Error{Kind: KindAmbiguous}
)

// Validation returns a validation error.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Precondition returns a precondition error.
func Precondition(op, format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Rejected returns a ledger rejection carrying the engine result.
func Rejected(op, code, txHash, message string) *Error {
	return &Error{Kind: KindRejected, Op: op, Code: code, TxHash: txHash, Message: message}
}

// Network wraps a pre-submission transport failure.
func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Ambiguous wraps a failure after submission.
func Ambiguous(op, txHash string, err error) *Error {
	return &Error{
		Kind:    KindAmbiguous,
		Op:      op,
		TxHash:  txHash,
		Message: fmt.Sprintf("outcome of %s unknown, reconcile before retrying: %v", txHash, err),
		Err:     err,
	}
}

// Wrap attaches kind and op to err unless err already carries a kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, KindInternal when it has none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// CodeOf returns the ledger code carried by err, if any.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Retryable reports whether the whole operation may safely be repeated.
func Retryable(err error) bool {
	return KindOf(err) == KindNetwork
}
