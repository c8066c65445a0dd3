// Package escrow orchestrates the escrow lifecycle: building and submitting
// EscrowCreate, EscrowFinish and EscrowCancel, reading escrows back from the
// ledger and deriving their application-level status.
//
// The Manager keeps no ledger state between calls. Every operation opens its
// own gateway connection and re-reads what it needs.
package escrow

import (
	"context"
	"log/slog"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/condition"
	"github.com/LeJamon/goxrpl-escrow/internal/codec/ledgertime"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/wallet"
)

const (
	opCreate  = "escrow.create"
	opFinish  = "escrow.finish"
	opCancel  = "escrow.cancel"
	opInfo    = "escrow.info"
	opList    = "escrow.list"
	opOutcome = "escrow.outcome"
)

// Config holds the collaborators of a Manager.
type Config struct {
	// Dialer opens ledger connections.
	Dialer gateway.Dialer

	// Gateway tunes timeouts, polling and the submission journal.
	Gateway gateway.Options

	// Clock drives time bounds and client-side pre-checks. Defaults to the
	// system clock.
	Clock ledgertime.Clock

	// VerifyFulfillment checks a fulfillment against the escrow's condition
	// before submitting. When false a mismatch is left to the ledger.
	VerifyFulfillment bool

	Logger *slog.Logger
}

// Manager runs escrow operations against one ledger.
type Manager struct {
	dialer            gateway.Dialer
	opts              gateway.Options
	clock             ledgertime.Clock
	verifyFulfillment bool
	logger            *slog.Logger
}

// New creates a Manager.
func New(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = ledgertime.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		dialer:            cfg.Dialer,
		opts:              cfg.Gateway,
		clock:             cfg.Clock,
		verifyFulfillment: cfg.VerifyFulfillment,
		logger:            cfg.Logger.With("component", "escrow"),
	}
}

// CreateRequest describes a new escrow.
type CreateRequest struct {
	// Seed of the owner account.
	Seed        string
	Destination string
	Amount      tx.Amount
	// FinishAfter and CancelAfter are resolved against the manager clock.
	// Nil means the bound is absent.
	FinishAfter    *ledgertime.Delay
	CancelAfter    *ledgertime.Delay
	Condition      string
	DestinationTag *uint32
}

// CreateResult identifies a created escrow. Owner and Sequence together are
// the handle for finish and cancel.
type CreateResult struct {
	TxHash      string     `json:"tx_hash"`
	Owner       string     `json:"owner"`
	Sequence    uint32     `json:"sequence"`
	FinishAfter *time.Time `json:"finish_after,omitempty"`
	CancelAfter *time.Time `json:"cancel_after,omitempty"`
}

// Create submits an EscrowCreate and waits for it to validate.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	w, err := signer(opCreate, req.Seed)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	create := tx.NewEscrowCreate(w.Address, req.Destination, req.Amount)
	create.Condition = req.Condition
	create.DestinationTag = req.DestinationTag

	now := m.clock.Now()
	if create.FinishAfter, err = resolveBound(req.FinishAfter, now, "FinishAfter"); err != nil {
		return nil, err
	}
	if create.CancelAfter, err = resolveBound(req.CancelAfter, now, "CancelAfter"); err != nil {
		return nil, err
	}
	if err := checkCreate(create); err != nil {
		return nil, err
	}

	var res *gateway.TxResult
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		var err error
		res, err = s.SubmitAndWait(ctx, opCreate, create, w)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &CreateResult{
		TxHash:      res.Hash,
		Owner:       w.Address,
		Sequence:    *create.Sequence,
		FinishAfter: boundTime(create.FinishAfter),
		CancelAfter: boundTime(create.CancelAfter),
	}
	m.logger.Info("escrow created",
		"owner", out.Owner, "sequence", out.Sequence, "hash", out.TxHash,
		"finish_after", req.FinishAfter.String(), "cancel_after", req.CancelAfter.String())
	return out, nil
}

// checkCreate rejects escrows the ledger is certain to refuse.
func checkCreate(create *tx.EscrowCreate) error {
	if create.FinishAfter == nil && create.Condition == "" {
		return failure.Precondition(opCreate, "an escrow needs FinishAfter or a condition")
	}
	if create.FinishAfter != nil && create.CancelAfter != nil && *create.CancelAfter <= *create.FinishAfter {
		return failure.Precondition(opCreate, "CancelAfter must be later than FinishAfter")
	}
	if create.Condition != "" {
		if err := condition.Validate(create.Condition); err != nil {
			return failure.Wrap(failure.KindValidation, opCreate, err)
		}
	}
	return nil
}

func resolveBound(d *ledgertime.Delay, now time.Time, name string) (*uint32, error) {
	ledger, ok := d.Resolve(now)
	if !ok {
		return nil, nil
	}
	if ledger <= ledgertime.ToLedgerTime(now.Unix()) {
		return nil, failure.Precondition(opCreate, "%s %s is not in the future", name, d)
	}
	v, err := ledgertime.ToField(ledger)
	if err != nil {
		return nil, failure.Wrap(failure.KindValidation, opCreate, err)
	}
	return &v, nil
}

// FinishRequest names the escrow to release.
type FinishRequest struct {
	// Seed of the account submitting the finish. Any account may finish.
	Seed          string
	Owner         string
	OfferSequence uint32
	// Fulfillment is required when the escrow carries a condition.
	Fulfillment string
}

// Finish releases an escrow to its destination. The escrow is read first so
// early, past-cancel and missing-fulfillment problems fail before submission.
// A well-formed fulfillment that does not match the condition is left to the
// ledger, which rejects it with tecCRYPTOCONDITION_ERROR, unless the manager
// was configured with VerifyFulfillment.
func (m *Manager) Finish(ctx context.Context, req FinishRequest) (*gateway.TxResult, error) {
	if !crypto.IsValidAddress(req.Owner) {
		return nil, failure.Validation(opFinish, "owner %q is not a valid address", req.Owner)
	}
	if req.Fulfillment != "" {
		if _, err := condition.ParseFulfillment(req.Fulfillment); err != nil {
			return nil, failure.Wrap(failure.KindValidation, opFinish, err)
		}
	}
	w, err := signer(opFinish, req.Seed)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	var res *gateway.TxResult
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		view, found, err := m.lookup(ctx, s, opFinish, req.Owner, req.OfferSequence)
		if err != nil {
			return err
		}
		if !found {
			return failure.Precondition(opFinish, "escrow %s/%d not found", req.Owner, req.OfferSequence)
		}
		if err := checkFinish(view, req.Fulfillment, m.clock.Now()); err != nil {
			return err
		}
		if m.verifyFulfillment && view.Condition != "" {
			if ok, err := condition.IsValidFulfillment(view.Condition, req.Fulfillment); err != nil || !ok {
				return failure.Precondition(opFinish, "fulfillment does not satisfy the escrow condition")
			}
		}

		finish := tx.NewEscrowFinish(w.Address, req.Owner, req.OfferSequence)
		if view.Condition != "" {
			finish.Condition = view.Condition
			finish.Fulfillment = req.Fulfillment
		}
		res, err = s.SubmitAndWait(ctx, opFinish, finish, w)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("escrow finished", "owner", req.Owner, "sequence", req.OfferSequence, "hash", res.Hash)
	return res, nil
}

func checkFinish(v *View, fulfillment string, now time.Time) error {
	if v.FinishAfter != nil && now.Before(*v.FinishAfter) {
		return failure.Precondition(opFinish, "escrow cannot be finished before %s", v.FinishAfter.Format(time.RFC3339))
	}
	if v.CancelAfter != nil && !now.Before(*v.CancelAfter) {
		return failure.Precondition(opFinish, "escrow passed CancelAfter %s and can only be cancelled", v.CancelAfter.Format(time.RFC3339))
	}
	switch {
	case v.Condition == "" && fulfillment != "":
		return failure.Precondition(opFinish, "escrow has no condition, fulfillment must be omitted")
	case v.Condition != "" && fulfillment == "":
		return failure.Precondition(opFinish, "escrow is conditional, a fulfillment is required")
	}
	return nil
}

// CancelRequest names the escrow to return to its owner.
type CancelRequest struct {
	Seed          string
	Owner         string
	OfferSequence uint32
}

// Cancel returns an expired escrow to its owner.
func (m *Manager) Cancel(ctx context.Context, req CancelRequest) (*gateway.TxResult, error) {
	if !crypto.IsValidAddress(req.Owner) {
		return nil, failure.Validation(opCancel, "owner %q is not a valid address", req.Owner)
	}
	w, err := signer(opCancel, req.Seed)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	var res *gateway.TxResult
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		view, found, err := m.lookup(ctx, s, opCancel, req.Owner, req.OfferSequence)
		if err != nil {
			return err
		}
		if !found {
			return failure.Precondition(opCancel, "escrow %s/%d not found", req.Owner, req.OfferSequence)
		}
		if view.CancelAfter == nil {
			return failure.Precondition(opCancel, "escrow has no CancelAfter and cannot be cancelled")
		}
		if m.clock.Now().Before(*view.CancelAfter) {
			return failure.Precondition(opCancel, "escrow cannot be cancelled before %s", view.CancelAfter.Format(time.RFC3339))
		}

		res, err = s.SubmitAndWait(ctx, opCancel, tx.NewEscrowCancel(w.Address, req.Owner, req.OfferSequence), w)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("escrow cancelled", "owner", req.Owner, "sequence", req.OfferSequence, "hash", res.Hash)
	return res, nil
}

func signer(op, seed string) (*wallet.Wallet, error) {
	if seed == "" {
		return nil, failure.Validation(op, "seed is required")
	}
	w, err := wallet.FromSeed(seed)
	if err != nil {
		return nil, failure.Wrap(failure.KindValidation, op, err)
	}
	return w, nil
}
