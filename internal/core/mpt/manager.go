// Package mpt orchestrates multi-purpose token issuances: creating them with
// compacted metadata, reading them back and destroying them.
package mpt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/metadata"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/ledger/keylet"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/wallet"
)

const (
	opCreate  = "mpt.create"
	opInfo    = "mpt.info"
	opDestroy = "mpt.destroy"
)

const defaultMetadataCacheSize = 256

// Config holds the collaborators of a Manager.
type Config struct {
	Dialer  gateway.Dialer
	Gateway gateway.Options
	Logger  *slog.Logger

	// MetadataMaxBytes caps the encoded metadata field. Defaults to the
	// ledger limit.
	MetadataMaxBytes int

	// MetadataCacheSize is the number of decoded metadata values kept.
	MetadataCacheSize int
}

// Manager runs issuance operations against one ledger.
type Manager struct {
	dialer   gateway.Dialer
	opts     gateway.Options
	logger   *slog.Logger
	maxBytes int

	// decoded memoizes metadata.Decode by field hex. It holds no ledger
	// state: the same hex always decodes to the same value.
	decoded *lru.Cache[string, metadata.Metadata]
}

// New creates a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MetadataMaxBytes <= 0 || cfg.MetadataMaxBytes > metadata.MaxBytes {
		cfg.MetadataMaxBytes = metadata.MaxBytes
	}
	if cfg.MetadataCacheSize <= 0 {
		cfg.MetadataCacheSize = defaultMetadataCacheSize
	}
	cache, err := lru.New[string, metadata.Metadata](cfg.MetadataCacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		dialer:   cfg.Dialer,
		opts:     cfg.Gateway,
		logger:   cfg.Logger.With("component", "mpt"),
		maxBytes: cfg.MetadataMaxBytes,
		decoded:  cache,
	}, nil
}

// CreateRequest describes a new issuance.
type CreateRequest struct {
	// Seed of the issuer account.
	Seed       string
	AssetScale uint8
	// MaximumAmount is a base-10 integer. Empty leaves the supply uncapped.
	MaximumAmount string
	TransferFee   uint16
	Flags         tx.MPTFlags
	// Metadata is compacted to the nine-key form automatically.
	Metadata map[string]any
}

// CreateResult identifies a created issuance.
type CreateResult struct {
	IssuanceID    string `json:"issuance_id"`
	TxHash        string `json:"tx_hash"`
	Sequence      uint32 `json:"sequence"`
	MetadataBytes int    `json:"metadata_bytes"`
	MetadataKeys  int    `json:"metadata_keys"`
}

// Create submits an MPTokenIssuanceCreate and returns the ledger-assigned
// issuance ID.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	create := tx.NewMPTokenIssuanceCreate("")
	scale := req.AssetScale
	create.AssetScale = &scale
	if req.MaximumAmount != "" {
		v, err := strconv.ParseUint(req.MaximumAmount, 10, 64)
		if err != nil {
			return nil, failure.Validation(opCreate, "maximum amount %q is not a base-10 integer", req.MaximumAmount)
		}
		create.MaximumAmount = &v
	}
	if req.TransferFee > 0 {
		fee := req.TransferFee
		create.TransferFee = &fee
	}
	create.SetFlags(req.Flags.Bits())

	out := &CreateResult{}
	if len(req.Metadata) > 0 {
		enc, err := metadata.Encode(req.Metadata)
		if err != nil {
			return nil, failure.Wrap(failure.KindValidation, opCreate, err)
		}
		if !enc.Fits(m.maxBytes) {
			return nil, failure.Precondition(opCreate, "metadata is %d bytes, the limit is %d", enc.ByteLen, m.maxBytes)
		}
		create.MPTokenMetadata = &enc.Hex
		out.MetadataBytes = enc.ByteLen
		out.MetadataKeys = enc.TopLevelKeys
	}

	w, err := signer(opCreate, req.Seed)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	create.Account = w.Address

	var res *gateway.TxResult
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		var err error
		res, err = s.SubmitAndWait(ctx, opCreate, create, w)
		return err
	})
	if err != nil {
		return nil, err
	}

	id, err := issuanceID(res.Meta)
	if err != nil {
		return nil, failure.Wrap(failure.KindInternal, opCreate, fmt.Errorf("transaction %s: %w", res.Hash, err))
	}
	out.IssuanceID = id
	out.TxHash = res.Hash
	out.Sequence = *create.Sequence
	m.logger.Info("issuance created", "issuer", w.Address, "issuance_id", id, "hash", res.Hash,
		"metadata_bytes", out.MetadataBytes)
	return out, nil
}

// issuanceID reads the ID from metadata, or derives it from the created
// issuance node when the node omits mpt_issuance_id.
func issuanceID(meta gateway.Meta) (string, error) {
	if meta.MPTIssuanceID != "" {
		return normalizeID(meta.MPTIssuanceID)
	}
	fields, _, ok := meta.CreatedNode("MPTokenIssuance")
	if !ok {
		return "", fmt.Errorf("no MPTokenIssuance created")
	}
	return idFromObject(fields)
}

func idFromObject(obj map[string]any) (string, error) {
	if id := tx.StringField(obj, "mpt_issuance_id"); id != "" {
		return normalizeID(id)
	}
	seq, ok := tx.Uint32Field(obj, "Sequence")
	if !ok {
		return "", fmt.Errorf("issuance has no Sequence")
	}
	issuer, err := crypto.AccountIDFromAddress(tx.StringField(obj, "Issuer"))
	if err != nil {
		return "", err
	}
	return keylet.MakeMPTIDHex(seq, issuer), nil
}

func normalizeID(id string) (string, error) {
	seq, issuer, err := keylet.ParseMPTID(id)
	if err != nil {
		return "", err
	}
	return keylet.MakeMPTIDHex(seq, issuer), nil
}

// Destroy submits an MPTokenIssuanceDestroy. The ledger refuses it while
// any holder has a balance.
func (m *Manager) Destroy(ctx context.Context, seed, issuanceID string) (*gateway.TxResult, error) {
	id, err := normalizeID(issuanceID)
	if err != nil {
		return nil, failure.Validation(opDestroy, "issuance ID %q: %v", issuanceID, err)
	}
	w, err := signer(opDestroy, seed)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	var res *gateway.TxResult
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		var err error
		res, err = s.SubmitAndWait(ctx, opDestroy, tx.NewMPTokenIssuanceDestroy(w.Address, id), w)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("issuance destroyed", "issuance_id", id, "hash", res.Hash)
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
