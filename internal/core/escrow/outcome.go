package escrow

import (
	"context"

	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/ledger/keylet"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
)

// ResolutionState says how an escrow ended, if it did.
type ResolutionState string

const (
	// ResolutionOpen: the escrow still exists.
	ResolutionOpen ResolutionState = "open"
	// ResolutionFinished: an EscrowFinish deleted it.
	ResolutionFinished ResolutionState = "finished"
	// ResolutionCancelled: an EscrowCancel deleted it.
	ResolutionCancelled ResolutionState = "cancelled"
	// ResolutionUnknown: the escrow is gone and no deleting transaction was
	// found in the owner's history.
	ResolutionUnknown ResolutionState = "unknown"
)

// Resolution is the outcome of an escrow.
type Resolution struct {
	State ResolutionState `json:"state"`
	// TxHash, LedgerIndex and By describe the deleting transaction.
	TxHash      string `json:"tx_hash,omitempty"`
	LedgerIndex uint32 `json:"ledger_index,omitempty"`
	By          string `json:"by,omitempty"`
}

// Outcome tells a finished escrow from a cancelled one. Absence from the
// ledger alone cannot, so the owner's transaction history is searched for
// the successful EscrowFinish or EscrowCancel that deleted the object.
func (m *Manager) Outcome(ctx context.Context, owner string, sequence uint32) (*Resolution, error) {
	id, err := crypto.AccountIDFromAddress(owner)
	if err != nil {
		return nil, failure.Validation(opOutcome, "owner %q is not a valid address", owner)
	}
	index := keylet.Escrow(id, sequence).Hex()

	res := &Resolution{State: ResolutionUnknown}
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		_, found, err := s.LedgerEntry(ctx, map[string]any{"index": index})
		if err != nil {
			return gateway.QueryFailure(opOutcome, err)
		}
		if found {
			res.State = ResolutionOpen
			return nil
		}

		err = s.WalkAccountTx(ctx, owner, func(e gateway.AccountTxEntry) bool {
			if !e.Validated {
				return true
			}
			txType := tx.Type(tx.StringField(e.Fields, "TransactionType"))
			if txType == tx.TypeEscrowCreate && tx.StringField(e.Fields, "Account") == owner {
				if seq, _ := tx.Uint32Field(e.Fields, "Sequence"); seq == sequence {
					// Reached the creation without seeing a deletion.
					return false
				}
			}
			if e.Meta.TransactionResult != string(tx.TesSUCCESS) || !e.Meta.DeletedNode("Escrow", index) {
				return true
			}
			switch txType {
			case tx.TypeEscrowFinish:
				res.State = ResolutionFinished
			case tx.TypeEscrowCancel:
				res.State = ResolutionCancelled
			default:
				return true
			}
			res.TxHash = e.Hash
			res.LedgerIndex = e.LedgerIndex
			res.By = tx.StringField(e.Fields, "Account")
			return false
		})
		if err != nil && !gateway.IsRPCError(err, gateway.ErrNameActNotFound) {
			return gateway.QueryFailure(opOutcome, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
