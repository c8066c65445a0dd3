// Package tx defines the ledger transactions the orchestrator submits. Each
// variant carries only the fields valid for its type and validates itself
// before signing.
package tx

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

// Type is the TransactionType field.
type Type string

const (
	TypeEscrowCreate           Type = "EscrowCreate"
	TypeEscrowFinish           Type = "EscrowFinish"
	TypeEscrowCancel           Type = "EscrowCancel"
	TypeMPTokenIssuanceCreate  Type = "MPTokenIssuanceCreate"
	TypeMPTokenIssuanceDestroy Type = "MPTokenIssuanceDestroy"
)

// TfFullyCanonicalSig is the universal flag accepted by every transaction.
const TfFullyCanonicalSig uint32 = 0x80000000

// TfUniversal is the mask of flags valid on any transaction.
const TfUniversal = TfFullyCanonicalSig

// ErrMissingRequiredField is wrapped by validation errors for absent fields.
var ErrMissingRequiredField = errors.New("missing required field")

// ValidationError is a local preflight failure. Code is the malformed-class
// result the ledger would return for the same transaction.
type ValidationError struct {
	Code    Result
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func malformed(code Result, format string, args ...any) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func missing(field string) error {
	return &ValidationError{Code: TemMALFORMED, Message: field + " is required", Err: ErrMissingRequiredField}
}

// Transaction is implemented by every variant.
type Transaction interface {
	// TxType returns the transaction type.
	TxType() Type

	// GetCommon returns the fields shared by all transactions.
	GetCommon() *Common

	// Validate checks the transaction against local preflight rules.
	Validate() error

	// Flatten returns the field map handed to the binary codec.
	Flatten() (map[string]any, error)
}

// Common holds the fields shared by every transaction. Fee, Sequence and
// LastLedgerSequence are normally filled by autofill just before signing.
type Common struct {
	Account            string
	TransactionType    Type
	Fee                string
	Sequence           *uint32
	Flags              *uint32
	LastLedgerSequence *uint32
	SourceTag          *uint32
	NetworkID          *uint32
	SigningPubKey      string
	TxnSignature       string
}

// NewCommon returns Common for a transaction of type t sent by account.
func NewCommon(t Type, account string) Common {
	return Common{Account: account, TransactionType: t}
}

// GetCommon returns c.
func (c *Common) GetCommon() *Common {
	return c
}

// GetFlags returns the flags, zero when unset.
func (c *Common) GetFlags() uint32 {
	if c.Flags == nil {
		return 0
	}
	return *c.Flags
}

// SetFlags sets the Flags field.
func (c *Common) SetFlags(flags uint32) {
	c.Flags = &flags
}

// SetSequence sets the Sequence field.
func (c *Common) SetSequence(seq uint32) {
	c.Sequence = &seq
}

// SetLastLedgerSequence sets the LastLedgerSequence field.
func (c *Common) SetLastLedgerSequence(seq uint32) {
	c.LastLedgerSequence = &seq
}

// SetFee sets the Fee field in drops.
func (c *Common) SetFee(drops uint64) {
	c.Fee = strconv.FormatUint(drops, 10)
}

// Validate checks the common fields.
func (c *Common) Validate() error {
	if c.Account == "" {
		return missing("Account")
	}
	if !crypto.IsValidAddress(c.Account) {
		return malformed(TemMALFORMED, "Account %q is not a valid address", c.Account)
	}
	if c.TransactionType == "" {
		return missing("TransactionType")
	}
	if c.Fee != "" {
		if _, err := strconv.ParseUint(c.Fee, 10, 64); err != nil {
			return malformed(TemBAD_FEE, "Fee %q is not a drop amount", c.Fee)
		}
	}
	return nil
}

// ToMap returns the common fields as a codec map.
func (c *Common) ToMap() map[string]any {
	m := map[string]any{
		"Account":         c.Account,
		"TransactionType": string(c.TransactionType),
	}
	if c.Fee != "" {
		m["Fee"] = c.Fee
	}
	if c.Sequence != nil {
		m["Sequence"] = *c.Sequence
	}
	if c.Flags != nil {
		m["Flags"] = *c.Flags
	}
	if c.LastLedgerSequence != nil {
		m["LastLedgerSequence"] = *c.LastLedgerSequence
	}
	if c.SourceTag != nil {
		m["SourceTag"] = *c.SourceTag
	}
	if c.NetworkID != nil {
		m["NetworkID"] = *c.NetworkID
	}
	if c.SigningPubKey != "" {
		m["SigningPubKey"] = c.SigningPubKey
	}
	if c.TxnSignature != "" {
		m["TxnSignature"] = c.TxnSignature
	}
	return m
}
