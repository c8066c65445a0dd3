package tx

import (
	"encoding/hex"

	"github.com/LeJamon/goxrpl-escrow/internal/core/ledger/keylet"
)

// MPTokenIssuanceCreate flags.
const (
	MPTFlagCanLock     uint32 = 0x00000002
	MPTFlagRequireAuth uint32 = 0x00000004
	MPTFlagCanEscrow   uint32 = 0x00000008
	MPTFlagCanTrade    uint32 = 0x00000010
	MPTFlagCanTransfer uint32 = 0x00000020
	MPTFlagCanClawback uint32 = 0x00000040
)

const mptCreateValidFlags = TfUniversal | MPTFlagCanLock | MPTFlagRequireAuth |
	MPTFlagCanEscrow | MPTFlagCanTrade | MPTFlagCanTransfer | MPTFlagCanClawback

const (
	// MaxTransferFee is 50% in units of 1/1000 of a percent.
	MaxTransferFee uint16 = 50000
	// MaxMPTokenMetadataLength is the ledger limit on MPTokenMetadata.
	MaxMPTokenMetadataLength = 1024
	// MaxAssetScale is the largest accepted AssetScale.
	MaxAssetScale uint8 = 19
)

// MPTFlags is the caller-facing form of the issuance capabilities.
type MPTFlags struct {
	CanLock     bool `json:"can_lock,omitempty"`
	RequireAuth bool `json:"require_auth,omitempty"`
	CanEscrow   bool `json:"can_escrow,omitempty"`
	CanTrade    bool `json:"can_trade,omitempty"`
	CanTransfer bool `json:"can_transfer,omitempty"`
	CanClawback bool `json:"can_clawback,omitempty"`
}

// Bits composes the transaction flag bitset.
func (f MPTFlags) Bits() uint32 {
	var bits uint32
	set := func(on bool, flag uint32) {
		if on {
			bits |= flag
		}
	}
	set(f.CanLock, MPTFlagCanLock)
	set(f.RequireAuth, MPTFlagRequireAuth)
	set(f.CanEscrow, MPTFlagCanEscrow)
	set(f.CanTrade, MPTFlagCanTrade)
	set(f.CanTransfer, MPTFlagCanTransfer)
	set(f.CanClawback, MPTFlagCanClawback)
	return bits
}

// MPTFlagsFromBits decodes the ledger object's flag field. Issuance objects
// store the same bit positions as the create transaction.
func MPTFlagsFromBits(bits uint32) MPTFlags {
	return MPTFlags{
		CanLock:     bits&MPTFlagCanLock != 0,
		RequireAuth: bits&MPTFlagRequireAuth != 0,
		CanEscrow:   bits&MPTFlagCanEscrow != 0,
		CanTrade:    bits&MPTFlagCanTrade != 0,
		CanTransfer: bits&MPTFlagCanTransfer != 0,
		CanClawback: bits&MPTFlagCanClawback != 0,
	}
}

// MPTokenIssuanceCreate defines a new multi-purpose token.
type MPTokenIssuanceCreate struct {
	Common

	AssetScale      *uint8  `xrpl:"AssetScale,omitempty"`
	MaximumAmount   *uint64 `xrpl:"MaximumAmount,omitempty,base10"`
	TransferFee     *uint16 `xrpl:"TransferFee,omitempty"`
	MPTokenMetadata *string `xrpl:"MPTokenMetadata,omitempty"`
}

// NewMPTokenIssuanceCreate returns an issuance create sent by account.
func NewMPTokenIssuanceCreate(account string) *MPTokenIssuanceCreate {
	return &MPTokenIssuanceCreate{Common: NewCommon(TypeMPTokenIssuanceCreate, account)}
}

// TxType returns TypeMPTokenIssuanceCreate.
func (m *MPTokenIssuanceCreate) TxType() Type {
	return TypeMPTokenIssuanceCreate
}

// Validate applies the ledger's MPTokenIssuanceCreate preflight rules.
func (m *MPTokenIssuanceCreate) Validate() error {
	if err := m.Common.Validate(); err != nil {
		return err
	}

	flags := m.GetFlags()
	if flags&^mptCreateValidFlags != 0 {
		return malformed(TemINVALID_FLAG, "invalid flags for MPTokenIssuanceCreate")
	}

	if m.AssetScale != nil && *m.AssetScale > MaxAssetScale {
		return malformed(TemMALFORMED, "AssetScale cannot exceed %d", MaxAssetScale)
	}

	if m.TransferFee != nil {
		if *m.TransferFee > MaxTransferFee {
			return malformed(TemBAD_TRANSFER_FEE, "TransferFee cannot exceed %d", MaxTransferFee)
		}
		if *m.TransferFee > 0 && flags&MPTFlagCanTransfer == 0 {
			return malformed(TemMALFORMED, "TransferFee requires the can-transfer flag")
		}
	}

	if m.MPTokenMetadata != nil {
		raw, err := hex.DecodeString(*m.MPTokenMetadata)
		if err != nil {
			return malformed(TemMALFORMED, "MPTokenMetadata must be valid hex")
		}
		if len(raw) == 0 || len(raw) > MaxMPTokenMetadataLength {
			return malformed(TemMALFORMED, "MPTokenMetadata length must be 1-%d bytes", MaxMPTokenMetadataLength)
		}
	}

	if m.MaximumAmount != nil {
		if *m.MaximumAmount == 0 {
			return malformed(TemMALFORMED, "MaximumAmount cannot be zero")
		}
		if *m.MaximumAmount > MaxMPTAmount {
			return malformed(TemMALFORMED, "MaximumAmount exceeds maximum allowed")
		}
	}
	return nil
}

// Flatten returns the codec map.
func (m *MPTokenIssuanceCreate) Flatten() (map[string]any, error) {
	return ReflectFlatten(m)
}

// MPTokenIssuanceDestroy removes an issuance with no outstanding balance.
type MPTokenIssuanceDestroy struct {
	Common

	MPTokenIssuanceID string `xrpl:"MPTokenIssuanceID"`
}

// NewMPTokenIssuanceDestroy returns a destroy for issuanceID sent by account.
func NewMPTokenIssuanceDestroy(account, issuanceID string) *MPTokenIssuanceDestroy {
	return &MPTokenIssuanceDestroy{
		Common:            NewCommon(TypeMPTokenIssuanceDestroy, account),
		MPTokenIssuanceID: issuanceID,
	}
}

// TxType returns TypeMPTokenIssuanceDestroy.
func (m *MPTokenIssuanceDestroy) TxType() Type {
	return TypeMPTokenIssuanceDestroy
}

// Validate applies the ledger's MPTokenIssuanceDestroy preflight rules.
func (m *MPTokenIssuanceDestroy) Validate() error {
	if err := m.Common.Validate(); err != nil {
		return err
	}
	if m.GetFlags()&^TfUniversal != 0 {
		return malformed(TemINVALID_FLAG, "invalid flags for MPTokenIssuanceDestroy")
	}
	if m.MPTokenIssuanceID == "" {
		return missing("MPTokenIssuanceID")
	}
	if _, _, err := keylet.ParseMPTID(m.MPTokenIssuanceID); err != nil {
		return malformed(TemMALFORMED, "MPTokenIssuanceID %q is not 24 hex bytes", m.MPTokenIssuanceID)
	}
	return nil
}

// Flatten returns the codec map.
func (m *MPTokenIssuanceDestroy) Flatten() (map[string]any, error) {
	return ReflectFlatten(m)
}
