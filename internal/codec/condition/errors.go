package condition

import (
	"errors"
	"fmt"
)

var (
	// ErrEncoding is returned when an input is not valid hex.
	ErrEncoding = errors.New("invalid hex encoding")
	// ErrStructure is returned when the DER structure does not parse.
	ErrStructure = errors.New("malformed DER structure")
	// ErrTrailingData is returned when bytes follow the encoded value.
	ErrTrailingData = errors.New("trailing data")
	// ErrUnsupportedType is returned for any type other than PREIMAGE-SHA-256.
	ErrUnsupportedType = errors.New("unsupported condition type")
	// ErrPreimageLength is returned when a preimage is outside the accepted range.
	ErrPreimageLength = errors.New("preimage length out of range")
	// ErrTooLarge is returned when a serialized value exceeds the ledger limit.
	ErrTooLarge = errors.New("serialized value too large")
)

// Error describes a codec failure. Kind is one of the package sentinels and
// is matched by errors.Is.
type Error struct {
	Op     string
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("condition: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("condition: %s: %v: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(op string, kind error, detail string) *Error {
	return &Error{Op: op, Kind: kind, Detail: detail}
}
