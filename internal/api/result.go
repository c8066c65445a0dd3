// Package api exposes the escrow and issuance managers to callers: a
// transport-neutral Service whose verbs return a {success, data|error}
// envelope, and a gin router serving that Service over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
)

// KindNotFound marks an absent escrow or issuance. It is a result, not a
// failure of the operation.
const KindNotFound = "not_found"

// Result is the envelope every Service verb returns.
type Result struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed verb.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Code is the ledger result or error code, verbatim.
	Code   string `json:"code,omitempty"`
	TxHash string `json:"tx_hash,omitempty"`
	// Retryable is set for failures where nothing reached the ledger.
	Retryable bool `json:"retryable,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// NotFound is the Result for an absent object.
func NotFound(message string) Result {
	return Result{Error: &ErrorBody{Kind: KindNotFound, Message: message}}
}

// Fail converts err into a failed Result.
func Fail(err error) Result {
	body := &ErrorBody{
		Kind:      string(failure.KindOf(err)),
		Message:   err.Error(),
		Code:      failure.CodeOf(err),
		Retryable: failure.Retryable(err),
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		body.TxHash = fe.TxHash
		if fe.Message != "" {
			body.Message = fe.Message
		}
	}
	return Result{Error: body}
}

// HTTPStatus maps a Result onto a status code: 400 for caller mistakes,
// 404 for absent objects and 500 for ledger and network failures.
func (r Result) HTTPStatus() int {
	if r.Success {
		return http.StatusOK
	}
	switch r.Error.Kind {
	case string(failure.KindValidation), string(failure.KindPrecondition):
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
