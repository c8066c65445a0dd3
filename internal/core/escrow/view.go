package escrow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/ledgertime"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/ledger/keylet"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
)

// View is an escrow as read from the validated ledger. Time bounds are
// converted to wall-clock time.
type View struct {
	Owner          string     `json:"owner"`
	Sequence       uint32     `json:"sequence"`
	Destination    string     `json:"destination"`
	Amount         tx.Amount  `json:"amount"`
	FinishAfter    *time.Time `json:"finish_after,omitempty"`
	CancelAfter    *time.Time `json:"cancel_after,omitempty"`
	Condition      string     `json:"condition,omitempty"`
	DestinationTag *uint32    `json:"destination_tag,omitempty"`
	// Index is the ledger object key.
	Index         string `json:"index"`
	PreviousTxnID string `json:"previous_txn_id,omitempty"`
}

func decodeView(obj map[string]any, seq uint32) (*View, error) {
	amount, err := tx.ParseAmount(obj["Amount"])
	if err != nil {
		return nil, fmt.Errorf("escrow %s: %w", tx.StringField(obj, "index"), err)
	}
	v := &View{
		Owner:         tx.StringField(obj, "Account"),
		Sequence:      seq,
		Destination:   tx.StringField(obj, "Destination"),
		Amount:        amount,
		Condition:     strings.ToUpper(tx.StringField(obj, "Condition")),
		Index:         strings.ToUpper(tx.StringField(obj, "index")),
		PreviousTxnID: tx.StringField(obj, "PreviousTxnID"),
	}
	if fa, ok := tx.Uint32Field(obj, "FinishAfter"); ok {
		v.FinishAfter = boundTime(&fa)
	}
	if ca, ok := tx.Uint32Field(obj, "CancelAfter"); ok {
		v.CancelAfter = boundTime(&ca)
	}
	if tag, ok := tx.Uint32Field(obj, "DestinationTag"); ok {
		v.DestinationTag = &tag
	}
	return v, nil
}

func boundTime(ledger *uint32) *time.Time {
	if ledger == nil {
		return nil
	}
	t := ledgertime.Time(int64(*ledger))
	return &t
}

// Info reads the escrow (owner, sequence) from the validated ledger. A
// missing escrow, or a missing owner account, reports found=false: the
// escrow was finished, cancelled or never existed.
func (m *Manager) Info(ctx context.Context, owner string, sequence uint32) (view *View, found bool, err error) {
	if !crypto.IsValidAddress(owner) {
		return nil, false, failure.Validation(opInfo, "owner %q is not a valid address", owner)
	}
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		view, found, err = m.lookup(ctx, s, opInfo, owner, sequence)
		return err
	})
	return view, found, err
}

// lookup scans the owner's escrows for the object at the escrow keylet.
func (m *Manager) lookup(ctx context.Context, s *gateway.Session, op, owner string, sequence uint32) (*View, bool, error) {
	id, err := crypto.AccountIDFromAddress(owner)
	if err != nil {
		return nil, false, failure.Wrap(failure.KindValidation, op, err)
	}
	index := keylet.Escrow(id, sequence).Hex()

	objects, err := s.AccountObjects(ctx, owner, "escrow")
	if err != nil {
		if gateway.IsRPCError(err, gateway.ErrNameActNotFound) {
			return nil, false, nil
		}
		return nil, false, gateway.QueryFailure(op, err)
	}
	for _, obj := range objects {
		if !strings.EqualFold(tx.StringField(obj, "index"), index) {
			continue
		}
		v, err := decodeView(obj, sequence)
		if err != nil {
			return nil, false, failure.Wrap(failure.KindInternal, op, err)
		}
		return v, true, nil
	}
	return nil, false, nil
}

// List returns the escrows owned by owner, ordered by sequence. Escrows
// where owner is only the destination are skipped. Each sequence is
// recovered from the creating transaction.
func (m *Manager) List(ctx context.Context, owner string) ([]*View, error) {
	id, err := crypto.AccountIDFromAddress(owner)
	if err != nil {
		return nil, failure.Validation(opList, "owner %q is not a valid address", owner)
	}

	var views []*View
	err = gateway.WithConn(ctx, m.dialer, m.opts, m.logger, func(s *gateway.Session) error {
		objects, err := s.AccountObjects(ctx, owner, "escrow")
		if err != nil {
			if gateway.IsRPCError(err, gateway.ErrNameActNotFound) {
				return nil
			}
			return gateway.QueryFailure(opList, err)
		}
		for _, obj := range objects {
			if tx.StringField(obj, "Account") != owner {
				continue
			}
			seq, err := creatingSequence(ctx, s, obj)
			if err != nil {
				return err
			}
			if !strings.EqualFold(keylet.Escrow(id, seq).Hex(), tx.StringField(obj, "index")) {
				m.logger.Warn("escrow index does not match its creating transaction",
					"index", tx.StringField(obj, "index"), "previous_txn_id", tx.StringField(obj, "PreviousTxnID"))
				continue
			}
			v, err := decodeView(obj, seq)
			if err != nil {
				return failure.Wrap(failure.KindInternal, opList, err)
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Sequence < views[j].Sequence })
	return views, nil
}

func creatingSequence(ctx context.Context, s *gateway.Session, obj map[string]any) (uint32, error) {
	hash := tx.StringField(obj, "PreviousTxnID")
	if hash == "" {
		return 0, failure.Wrap(failure.KindInternal, opList, fmt.Errorf("escrow %s has no PreviousTxnID", tx.StringField(obj, "index")))
	}
	info, err := s.Tx(ctx, hash)
	if err != nil {
		return 0, gateway.QueryFailure(opList, err)
	}
	if seq, ok := tx.Uint32Field(info.Fields, "Sequence"); ok && seq != 0 {
		return seq, nil
	}
	// Ticketed transactions carry Sequence 0.
	if seq, ok := tx.Uint32Field(info.Fields, "TicketSequence"); ok {
		return seq, nil
	}
	return 0, failure.Wrap(failure.KindInternal, opList, fmt.Errorf("transaction %s has no sequence", hash))
}
