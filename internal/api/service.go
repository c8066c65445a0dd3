package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/condition"
	"github.com/LeJamon/goxrpl-escrow/internal/codec/ledgertime"
	"github.com/LeJamon/goxrpl-escrow/internal/codec/metadata"
	"github.com/LeJamon/goxrpl-escrow/internal/core/escrow"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/mpt"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/logging"
)

// Service is the caller-facing surface of the managers. Verbs take plain
// seeds, addresses and amounts and never return a Go error: every outcome
// is a Result.
type Service struct {
	escrows   *escrow.Manager
	issuances *mpt.Manager
	adminSeed string
	logger    *slog.Logger
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Escrows   *escrow.Manager
	Issuances *mpt.Manager

	// AdminSeed signs requests that carry no seed. Empty makes the seed
	// mandatory.
	AdminSeed string

	Logger *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		escrows:   cfg.Escrows,
		issuances: cfg.Issuances,
		adminSeed: cfg.AdminSeed,
		logger:    cfg.Logger,
	}
}

func (s *Service) seed(seed string) string {
	if seed == "" {
		return s.adminSeed
	}
	return seed
}

// fail logs err at a level matching its kind and wraps it.
func (s *Service) fail(ctx context.Context, verb string, err error) Result {
	logger := logging.L(ctx, s.logger)
	switch failure.KindOf(err) {
	case failure.KindValidation, failure.KindPrecondition:
		logger.Debug("request refused", "verb", verb, "error", err)
	case failure.KindAmbiguous:
		logger.Warn("submission outcome unknown", "verb", verb, "error", err)
	default:
		logger.Error("request failed", "verb", verb, "error", err)
	}
	return Fail(err)
}

// TimeBound is a caller supplied escrow window bound. Exactly one field
// must be set.
type TimeBound struct {
	Seconds *int64     `json:"seconds,omitempty"`
	Days    *int64     `json:"days,omitempty"`
	At      *time.Time `json:"at,omitempty"`
}

func (b *TimeBound) delay(name string) (*ledgertime.Delay, error) {
	if b == nil {
		return nil, nil
	}
	var d *ledgertime.Delay
	set := 0
	if b.Seconds != nil {
		d, set = ledgertime.Seconds(*b.Seconds), set+1
	}
	if b.Days != nil {
		d, set = ledgertime.Days(*b.Days), set+1
	}
	if b.At != nil {
		d, set = ledgertime.At(*b.At), set+1
	}
	if set != 1 {
		return nil, fmt.Errorf("%s needs exactly one of seconds, days or at", name)
	}
	return d, nil
}

// CreateEscrowInput is the body of an escrow creation.
type CreateEscrowInput struct {
	Seed           string     `json:"seed,omitempty"`
	Destination    string     `json:"destination"`
	Amount         tx.Amount  `json:"amount"`
	FinishAfter    *TimeBound `json:"finish_after,omitempty"`
	CancelAfter    *TimeBound `json:"cancel_after,omitempty"`
	Condition      string     `json:"condition,omitempty"`
	DestinationTag *uint32    `json:"destination_tag,omitempty"`
}

// CreateEscrow locks funds in a new escrow. Data is an escrow.CreateResult.
func (s *Service) CreateEscrow(ctx context.Context, in CreateEscrowInput) Result {
	const verb = "create_escrow"
	finishAfter, err := in.FinishAfter.delay("finish_after")
	if err != nil {
		return s.fail(ctx, verb, failure.Validation("escrow.create", "%v", err))
	}
	cancelAfter, err := in.CancelAfter.delay("cancel_after")
	if err != nil {
		return s.fail(ctx, verb, failure.Validation("escrow.create", "%v", err))
	}
	res, err := s.escrows.Create(ctx, escrow.CreateRequest{
		Seed:           s.seed(in.Seed),
		Destination:    in.Destination,
		Amount:         in.Amount,
		FinishAfter:    finishAfter,
		CancelAfter:    cancelAfter,
		Condition:      in.Condition,
		DestinationTag: in.DestinationTag,
	})
	if err != nil {
		return s.fail(ctx, verb, err)
	}
	return OK(res)
}

// Receipt describes a validated transaction.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	LedgerIndex uint32 `json:"ledger_index"`
	Result      string `json:"result"`
}

func receipt(res *gateway.TxResult) Receipt {
	return Receipt{TxHash: res.Hash, LedgerIndex: res.LedgerIndex, Result: string(res.Result)}
}

// FinishEscrowInput is the body of an escrow finish.
type FinishEscrowInput struct {
	Seed        string `json:"seed,omitempty"`
	Owner       string `json:"-"`
	Sequence    uint32 `json:"-"`
	Fulfillment string `json:"fulfillment,omitempty"`
}

// FinishEscrow releases an escrow. Data is a Receipt.
func (s *Service) FinishEscrow(ctx context.Context, in FinishEscrowInput) Result {
	res, err := s.escrows.Finish(ctx, escrow.FinishRequest{
		Seed:          s.seed(in.Seed),
		Owner:         in.Owner,
		OfferSequence: in.Sequence,
		Fulfillment:   in.Fulfillment,
	})
	if err != nil {
		return s.fail(ctx, "finish_escrow", err)
	}
	return OK(receipt(res))
}

// CancelEscrowInput is the body of an escrow cancel.
type CancelEscrowInput struct {
	Seed     string `json:"seed,omitempty"`
	Owner    string `json:"-"`
	Sequence uint32 `json:"-"`
}

// CancelEscrow returns an expired escrow to its owner. Data is a Receipt.
func (s *Service) CancelEscrow(ctx context.Context, in CancelEscrowInput) Result {
	res, err := s.escrows.Cancel(ctx, escrow.CancelRequest{
		Seed:          s.seed(in.Seed),
		Owner:         in.Owner,
		OfferSequence: in.Sequence,
	})
	if err != nil {
		return s.fail(ctx, "cancel_escrow", err)
	}
	return OK(receipt(res))
}

// EscrowState is an escrow together with its derived status.
type EscrowState struct {
	Escrow *escrow.View  `json:"escrow"`
	Status escrow.Status `json:"status"`
}

// EscrowInfo reads one escrow. A resolved or unknown escrow is not found.
func (s *Service) EscrowInfo(ctx context.Context, owner string, sequence uint32) Result {
	view, status, found, err := s.escrows.Status(ctx, owner, sequence)
	if err != nil {
		return s.fail(ctx, "escrow_info", err)
	}
	if !found {
		return NotFound(fmt.Sprintf("escrow %s/%d not found", owner, sequence))
	}
	return OK(EscrowState{Escrow: view, Status: status})
}

// EscrowOutcome tells whether an escrow is open, finished or cancelled.
// Data is an escrow.Resolution.
func (s *Service) EscrowOutcome(ctx context.Context, owner string, sequence uint32) Result {
	res, err := s.escrows.Outcome(ctx, owner, sequence)
	if err != nil {
		return s.fail(ctx, "escrow_outcome", err)
	}
	return OK(res)
}

// ListEscrows returns the open escrows owned by owner.
func (s *Service) ListEscrows(ctx context.Context, owner string) Result {
	views, err := s.escrows.List(ctx, owner)
	if err != nil {
		return s.fail(ctx, "list_escrows", err)
	}
	if views == nil {
		views = []*escrow.View{}
	}
	return OK(views)
}

// ConditionPair is a generated condition and its fulfillment.
type ConditionPair struct {
	Condition   string `json:"condition"`
	Fulfillment string `json:"fulfillment"`
}

// GenerateCondition creates a fresh PREIMAGE-SHA-256 condition. The
// fulfillment is returned once and never logged.
func (s *Service) GenerateCondition(ctx context.Context) Result {
	pair, err := condition.Generate()
	if err != nil {
		return s.fail(ctx, "generate_condition", failure.Wrap(failure.KindInternal, "condition.generate", err))
	}
	return OK(ConditionPair{Condition: pair.Condition, Fulfillment: pair.Fulfillment})
}

// VerifyConditionInput pairs a condition with a candidate fulfillment.
type VerifyConditionInput struct {
	Condition   string `json:"condition"`
	Fulfillment string `json:"fulfillment"`
}

// VerifyCondition reports whether the fulfillment satisfies the condition.
func (s *Service) VerifyCondition(ctx context.Context, in VerifyConditionInput) Result {
	ok, err := condition.IsValidFulfillment(in.Condition, in.Fulfillment)
	if err != nil {
		return s.fail(ctx, "verify_condition", failure.Wrap(failure.KindValidation, "condition.verify", err))
	}
	return OK(map[string]bool{"valid": ok})
}

// CreateIssuanceInput is the body of an issuance creation.
type CreateIssuanceInput struct {
	Seed          string         `json:"seed,omitempty"`
	AssetScale    uint8          `json:"asset_scale"`
	MaximumAmount string         `json:"maximum_amount,omitempty"`
	TransferFee   uint16         `json:"transfer_fee,omitempty"`
	Flags         tx.MPTFlags    `json:"flags"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CreateIssuance creates an MPT issuance. Data is an mpt.CreateResult.
func (s *Service) CreateIssuance(ctx context.Context, in CreateIssuanceInput) Result {
	res, err := s.issuances.Create(ctx, mpt.CreateRequest{
		Seed:          s.seed(in.Seed),
		AssetScale:    in.AssetScale,
		MaximumAmount: in.MaximumAmount,
		TransferFee:   in.TransferFee,
		Flags:         in.Flags,
		Metadata:      in.Metadata,
	})
	if err != nil {
		return s.fail(ctx, "create_issuance", err)
	}
	return OK(res)
}

// IssuanceInfo reads one issuance with its decoded metadata.
func (s *Service) IssuanceInfo(ctx context.Context, issuer, issuanceID string) Result {
	view, found, err := s.issuances.Info(ctx, issuer, issuanceID)
	if err != nil {
		return s.fail(ctx, "issuance_info", err)
	}
	if !found {
		return NotFound(fmt.Sprintf("issuance %s not found for %s", issuanceID, issuer))
	}
	return OK(view)
}

// DestroyIssuanceInput names the issuance to destroy.
type DestroyIssuanceInput struct {
	Seed       string `json:"seed,omitempty"`
	IssuanceID string `json:"-"`
}

// DestroyIssuance removes an issuance without outstanding balances. Data is
// a Receipt.
func (s *Service) DestroyIssuance(ctx context.Context, in DestroyIssuanceInput) Result {
	res, err := s.issuances.Destroy(ctx, s.seed(in.Seed), in.IssuanceID)
	if err != nil {
		return s.fail(ctx, "destroy_issuance", err)
	}
	return OK(receipt(res))
}

// EncodeMetadata compacts and encodes token metadata without submitting
// anything, so callers can check the size first.
func (s *Service) EncodeMetadata(ctx context.Context, fields map[string]any) Result {
	enc, err := metadata.Encode(fields)
	if err != nil {
		return s.fail(ctx, "encode_metadata", failure.Wrap(failure.KindValidation, "metadata.encode", err))
	}
	return OK(map[string]any{
		"hex":            enc.Hex,
		"bytes":          enc.ByteLen,
		"top_level_keys": enc.TopLevelKeys,
		"fits":           enc.Fits(metadata.MaxBytes),
	})
}

// DecodedMetadata is a metadata field split into stored and merged views.
type DecodedMetadata struct {
	Fields     map[string]any `json:"fields"`
	Additional map[string]any `json:"additional"`
	Merged     map[string]any `json:"merged"`
}

// DecodeMetadata decodes a hex MPTokenMetadata value.
func (s *Service) DecodeMetadata(ctx context.Context, hexStr string) Result {
	md, err := metadata.Decode(hexStr)
	if err != nil {
		return s.fail(ctx, "decode_metadata", failure.Wrap(failure.KindValidation, "metadata.decode", err))
	}
	return OK(DecodedMetadata{Fields: md.Fields, Additional: md.Additional, Merged: md.Merged()})
}
