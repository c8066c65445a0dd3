// Package gateway talks to a ledger node over its WebSocket JSON API. It is
// the only package that performs network I/O against the ledger.
package gateway

//go:generate mockgen -source=gateway.go -destination=mock_gateway/mock_gateway.go -package=mock_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
)

// Error names returned by the ledger that callers branch on.
const (
	ErrNameActNotFound   = "actNotFound"
	ErrNameEntryNotFound = "entryNotFound"
	ErrNameTxnNotFound   = "txnNotFound"
	ErrNameLgrNotFound   = "lgrNotFound"
)

// ErrClosed is returned for requests on a closed connection.
var ErrClosed = errors.New("gateway: connection closed")

// RPCError is an error response from the ledger node.
type RPCError struct {
	Command string `json:"-"`
	Code    int    `json:"error_code"`
	Name    string `json:"error"`
	Message string `json:"error_message,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Command, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Name)
}

// IsRPCError reports whether err is an RPCError with the given name.
func IsRPCError(err error, name string) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Name == name
}

// IsNotFound reports whether err means the requested account, object or
// transaction does not exist.
func IsNotFound(err error) bool {
	return IsRPCError(err, ErrNameActNotFound) ||
		IsRPCError(err, ErrNameEntryNotFound) ||
		IsRPCError(err, ErrNameTxnNotFound)
}

// Requester sends one command and decodes its result into out.
type Requester interface {
	Request(ctx context.Context, command string, params map[string]any, out any) error
}

// Conn is an open connection to a ledger node.
type Conn interface {
	Requester
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WithConn opens a connection, runs fn on a Session over it and closes it on
// every path. A close failure is logged and never replaces fn's error.
// Dial failures are network errors: nothing has been sent.
func WithConn(ctx context.Context, d Dialer, opts Options, logger *slog.Logger, fn func(*Session) error) (err error) {
	conn, err := d.Dial(ctx)
	if err != nil {
		return failure.Network("gateway.dial", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("closing ledger connection", "error", cerr)
		}
	}()
	return fn(NewSession(conn, opts, logger))
}

// QueryFailure classifies a failed read. Node error responses are internal
// failures; anything else is a transport problem and safe to retry.
func QueryFailure(op string, err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &failure.Error{Kind: failure.KindInternal, Op: op, Code: rpcErr.Name, Message: rpcErr.Error(), Err: err}
	}
	return failure.Wrap(failure.KindNetwork, op, err)
}
