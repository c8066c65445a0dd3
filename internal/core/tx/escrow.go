package tx

import (
	"github.com/LeJamon/goxrpl-escrow/internal/codec/condition"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

// EscrowCreate locks an amount until a time bound passes or a
// crypto-condition is fulfilled.
type EscrowCreate struct {
	Common

	Amount         Amount  `xrpl:"Amount,amount"`
	Destination    string  `xrpl:"Destination"`
	DestinationTag *uint32 `xrpl:"DestinationTag,omitempty"`
	CancelAfter    *uint32 `xrpl:"CancelAfter,omitempty"`
	FinishAfter    *uint32 `xrpl:"FinishAfter,omitempty"`
	Condition      string  `xrpl:"Condition,omitempty"`
}

// NewEscrowCreate returns an EscrowCreate from account to destination.
func NewEscrowCreate(account, destination string, amount Amount) *EscrowCreate {
	return &EscrowCreate{
		Common:      NewCommon(TypeEscrowCreate, account),
		Amount:      amount,
		Destination: destination,
	}
}

// TxType returns TypeEscrowCreate.
func (e *EscrowCreate) TxType() Type {
	return TypeEscrowCreate
}

// Validate applies the ledger's EscrowCreate preflight rules.
func (e *EscrowCreate) Validate() error {
	if err := e.Common.Validate(); err != nil {
		return err
	}
	if e.GetFlags()&^TfUniversal != 0 {
		return malformed(TemINVALID_FLAG, "invalid flags for EscrowCreate")
	}
	if e.Destination == "" {
		return &ValidationError{Code: TemDST_NEEDED, Message: "Destination is required", Err: ErrMissingRequiredField}
	}
	if !crypto.IsValidAddress(e.Destination) {
		return malformed(TemMALFORMED, "Destination %q is not a valid address", e.Destination)
	}
	if err := e.Amount.Validate(); err != nil {
		return &ValidationError{Code: TemBAD_AMOUNT, Message: err.Error(), Err: err}
	}

	if e.CancelAfter != nil && e.FinishAfter != nil && *e.CancelAfter <= *e.FinishAfter {
		return malformed(TemBAD_EXPIRATION, "CancelAfter must be after FinishAfter")
	}
	if e.FinishAfter == nil && e.Condition == "" {
		return malformed(TemMALFORMED, "must specify FinishAfter or Condition")
	}
	if e.Condition != "" {
		if err := condition.Validate(e.Condition); err != nil {
			return &ValidationError{Code: TemMALFORMED, Message: err.Error(), Err: err}
		}
	}
	return nil
}

// Flatten returns the codec map.
func (e *EscrowCreate) Flatten() (map[string]any, error) {
	return ReflectFlatten(e)
}

// EscrowFinish releases an escrow to its destination.
type EscrowFinish struct {
	Common

	Owner         string `xrpl:"Owner"`
	OfferSequence uint32 `xrpl:"OfferSequence"`
	Condition     string `xrpl:"Condition,omitempty"`
	Fulfillment   string `xrpl:"Fulfillment,omitempty"`
}

// NewEscrowFinish returns an EscrowFinish for the escrow (owner, offerSequence).
func NewEscrowFinish(account, owner string, offerSequence uint32) *EscrowFinish {
	return &EscrowFinish{
		Common:        NewCommon(TypeEscrowFinish, account),
		Owner:         owner,
		OfferSequence: offerSequence,
	}
}

// TxType returns TypeEscrowFinish.
func (e *EscrowFinish) TxType() Type {
	return TypeEscrowFinish
}

// Validate applies the ledger's EscrowFinish preflight rules.
func (e *EscrowFinish) Validate() error {
	if err := e.Common.Validate(); err != nil {
		return err
	}
	if e.GetFlags()&^TfUniversal != 0 {
		return malformed(TemINVALID_FLAG, "invalid flags for EscrowFinish")
	}
	if e.Owner == "" {
		return missing("Owner")
	}
	if !crypto.IsValidAddress(e.Owner) {
		return malformed(TemMALFORMED, "Owner %q is not a valid address", e.Owner)
	}
	if (e.Condition == "") != (e.Fulfillment == "") {
		return malformed(TemMALFORMED, "Condition and Fulfillment must be provided together")
	}
	if e.Condition != "" {
		if err := condition.Validate(e.Condition); err != nil {
			return &ValidationError{Code: TemMALFORMED, Message: err.Error(), Err: err}
		}
		if len(e.Fulfillment)/2 > condition.MaxSerializedFulfillment {
			return malformed(TemMALFORMED, "Fulfillment too large")
		}
	}
	return nil
}

// Flatten returns the codec map.
func (e *EscrowFinish) Flatten() (map[string]any, error) {
	return ReflectFlatten(e)
}

// EscrowCancel returns an expired escrow to its owner.
type EscrowCancel struct {
	Common

	Owner         string `xrpl:"Owner"`
	OfferSequence uint32 `xrpl:"OfferSequence"`
}

// NewEscrowCancel returns an EscrowCancel for the escrow (owner, offerSequence).
func NewEscrowCancel(account, owner string, offerSequence uint32) *EscrowCancel {
	return &EscrowCancel{
		Common:        NewCommon(TypeEscrowCancel, account),
		Owner:         owner,
		OfferSequence: offerSequence,
	}
}

// TxType returns TypeEscrowCancel.
func (e *EscrowCancel) TxType() Type {
	return TypeEscrowCancel
}

// Validate applies the ledger's EscrowCancel preflight rules.
func (e *EscrowCancel) Validate() error {
	if err := e.Common.Validate(); err != nil {
		return err
	}
	if e.GetFlags()&^TfUniversal != 0 {
		return malformed(TemINVALID_FLAG, "invalid flags for EscrowCancel")
	}
	if e.Owner == "" {
		return missing("Owner")
	}
	if !crypto.IsValidAddress(e.Owner) {
		return malformed(TemMALFORMED, "Owner %q is not a valid address", e.Owner)
	}
	return nil
}

// Flatten returns the codec map.
func (e *EscrowCancel) Flatten() (map[string]any, error) {
	return ReflectFlatten(e)
}
