package mpt

import (
	"context"
	"maps"
	"strconv"
	"strings"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/metadata"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
)

// View is an issuance as read from the validated ledger.
type View struct {
	IssuanceID        string      `json:"issuance_id"`
	Issuer            string      `json:"issuer"`
	Sequence          uint32      `json:"sequence"`
	AssetScale        uint8       `json:"asset_scale"`
	MaximumAmount     string      `json:"maximum_amount,omitempty"`
	OutstandingAmount string      `json:"outstanding_amount"`
	TransferFee       uint16      `json:"transfer_fee"`
	Flags             tx.MPTFlags `json:"flags"`

	// MetadataHex is the raw MPTokenMetadata field.
	MetadataHex string `json:"metadata_hex,omitempty"`
	// Metadata holds the stored top-level fields, Additional the parsed
	// aggregation object.
	Metadata   map[string]any `json:"metadata,omitempty"`
	Additional map[string]any `json:"additional,omitempty"`
	// MetadataError is set when the field does not decode.
	MetadataError string `json:"metadata_error,omitempty"`
}

// Info reads the issuance issuanceID from the issuer's ledger objects.
// found=false means it does not exist, or the issuer account does not.
func (m *Manager) Info(ctx context.Context, issuer, issuanceID string) (view *View, found bool, err error) {
	if !crypto.IsValidAddress(issuer) {
		return nil, false, failure.Validation(opInfo, "issuer %q is not a valid address", issuer)
	}
	id, err := normalizeID(issuanceID)
	if err != nil {
		return nil, false, failure.Validation(opInfo, "issuance ID %q: %v", issuanceID, err)
	}

	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		objects, err := s.AccountObjects(ctx, issuer, "mpt_issuance")
		if err != nil {
			if gateway.IsRPCError(err, gateway.ErrNameActNotFound) {
				return nil
			}
			return gateway.QueryFailure(opInfo, err)
		}
		for _, obj := range objects {
			objID, err := idFromObject(obj)
			if err != nil || objID != id {
				continue
			}
			view, found = m.decodeView(obj, id), true
			return nil
		}
		return nil
	})
	return view, found, err
}

func (m *Manager) decodeView(obj map[string]any, id string) *View {
	v := &View{
		IssuanceID:        id,
		Issuer:            tx.StringField(obj, "Issuer"),
		MaximumAmount:     decimalField(obj, "MaximumAmount"),
		OutstandingAmount: decimalField(obj, "OutstandingAmount"),
		MetadataHex:       strings.ToUpper(tx.StringField(obj, "MPTokenMetadata")),
	}
	v.Sequence, _ = tx.Uint32Field(obj, "Sequence")
	if scale, ok := tx.Uint32Field(obj, "AssetScale"); ok {
		v.AssetScale = uint8(scale)
	}
	if fee, ok := tx.Uint32Field(obj, "TransferFee"); ok {
		v.TransferFee = uint16(fee)
	}
	flags, _ := tx.Uint32Field(obj, "Flags")
	v.Flags = tx.MPTFlagsFromBits(flags)

	if v.MetadataHex == "" {
		return v
	}
	md, err := m.decodeMetadata(v.MetadataHex)
	if err != nil {
		m.logger.Warn("issuance metadata does not decode", "issuance_id", id, "error", err)
		v.MetadataError = err.Error()
		return v
	}
	v.Metadata = md.Fields
	v.Additional = md.Additional
	return v
}

// decodeMetadata returns copies so callers may modify the maps.
func (m *Manager) decodeMetadata(hexStr string) (metadata.Metadata, error) {
	md, ok := m.decoded.Get(hexStr)
	if !ok {
		var err error
		md, err = metadata.Decode(hexStr)
		if err != nil {
			return metadata.Metadata{}, err
		}
		m.decoded.Add(hexStr, md)
	}
	return metadata.Metadata{Fields: maps.Clone(md.Fields), Additional: maps.Clone(md.Additional)}, nil
}

func decimalField(obj map[string]any, key string) string {
	if s := tx.StringField(obj, key); s != "" {
		return s
	}
	if v, ok := tx.Uint64Field(obj, key); ok {
		return strconv.FormatUint(v, 10)
	}
	return ""
}
