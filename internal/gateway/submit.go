package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/condition"
	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/metrics"
	"github.com/LeJamon/goxrpl-escrow/internal/storage/journal"
	"github.com/LeJamon/goxrpl-escrow/internal/wallet"
)

// Signer signs an autofilled transaction.
type Signer interface {
	Sign(t tx.Transaction) (*wallet.Signed, error)
}

// TxResult is a transaction validated with tesSUCCESS.
type TxResult struct {
	Hash        string
	LedgerIndex uint32
	Result      tx.Result
	Fields      map[string]any
	Meta        Meta
}

// Autofill sets Sequence, Fee, LastLedgerSequence and NetworkID when they
// are unset. Sequence comes from the account's current ledger state so
// there is no local sequence tracking.
func (s *Session) Autofill(ctx context.Context, t tx.Transaction) error {
	c := t.GetCommon()
	if c.Sequence == nil {
		info, err := s.AccountInfo(ctx, c.Account, LedgerCurrent)
		if err != nil {
			return err
		}
		c.SetSequence(info.Sequence)
	}

	si, err := s.ServerInfo(ctx)
	if err != nil {
		return err
	}
	if c.Fee == "" {
		fee := si.BaseFeeDrops()
		if finish, ok := t.(*tx.EscrowFinish); ok && finish.Fulfillment != "" {
			fee = condition.FinishFee(fee, finish.Fulfillment)
		}
		c.SetFee(fee)
	}
	if c.LastLedgerSequence == nil {
		c.SetLastLedgerSequence(si.ValidatedLedger + s.opts.LedgerOffset)
	}
	if c.NetworkID == nil && si.NetworkID > legacyNetworkIDLimit {
		id := si.NetworkID
		c.NetworkID = &id
	}
	return nil
}

// SubmitAndWait autofills, validates, signs and submits t, then waits for a
// validated result. Errors are *failure.Error:
//
//   - validation or precondition before anything is sent,
//   - network when the node could not be reached before submission,
//   - rejected with the engine result when the outcome is final and not
//     tesSUCCESS,
//   - ambiguous when the blob may have reached the network but no final
//     answer arrived. Callers must reconcile by hash, never resubmit.
func (s *Session) SubmitAndWait(ctx context.Context, op string, t tx.Transaction, signer Signer) (*TxResult, error) {
	if err := s.Autofill(ctx, t); err != nil {
		if IsRPCError(err, ErrNameActNotFound) {
			return nil, failure.Precondition(op, "account %s not found or not funded", t.GetCommon().Account)
		}
		return nil, failure.Network(op, err)
	}
	if err := t.Validate(); err != nil {
		return nil, validationFailure(op, err)
	}
	signed, err := signer.Sign(t)
	if err != nil {
		return nil, failure.Wrap(failure.KindInternal, op, err)
	}
	return s.submitSigned(ctx, op, t, signed)
}

func validationFailure(op string, err error) error {
	fe := &failure.Error{Kind: failure.KindValidation, Op: op, Message: err.Error(), Err: err}
	var ve *tx.ValidationError
	if errors.As(err, &ve) {
		fe.Code = string(ve.Code)
		fe.Message = ve.Message
	}
	return fe
}

func (s *Session) submitSigned(ctx context.Context, op string, t tx.Transaction, signed *wallet.Signed) (*TxResult, error) {
	txType := string(t.TxType())
	hash := signed.Hash
	logger := s.logger.With("op", op, "tx_type", txType, "hash", hash)
	start := time.Now()

	s.journalRecord(t, hash)

	ctx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
	defer cancel()

	logger.Info("submitting transaction")
	sub, err := s.Submit(ctx, signed.Blob)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			// The node answered and refused the request.
			s.finalize(logger, txType, hash, journal.StateFailed, rpcErr.Name, start)
			return nil, failure.Rejected(op, rpcErr.Name, hash, rpcErr.Error())
		}
		return nil, s.ambiguous(logger, op, txType, hash, err)
	}

	logger.Debug("preliminary result", "engine_result", sub.EngineResult)
	if r := sub.EngineResult; r.IsTem() || r.IsTef() || r.IsTel() {
		s.finalize(logger, txType, hash, journal.StateFailed, string(r), start)
		msg := sub.EngineResultMessage
		if msg == "" {
			msg = r.Message()
		}
		return nil, failure.Rejected(op, string(r), hash, msg)
	}

	lastLedger := uint32(0)
	if lls := t.GetCommon().LastLedgerSequence; lls != nil {
		lastLedger = *lls
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		info, done, err := s.poll(ctx, hash, lastLedger)
		if err != nil {
			return nil, s.ambiguous(logger, op, txType, hash, err)
		}
		if done {
			if info == nil {
				s.finalize(logger, txType, hash, journal.StateFailed, string(tx.TefMAX_LEDGER), start)
				return nil, failure.Rejected(op, string(tx.TefMAX_LEDGER), hash,
					"transaction expired without being validated")
			}
			return s.validated(logger, op, txType, hash, info, start)
		}

		select {
		case <-ctx.Done():
			return nil, s.ambiguous(logger, op, txType, hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// poll checks once for a final answer. done with a nil info means the
// validated ledger passed lastLedger without the transaction.
func (s *Session) poll(ctx context.Context, hash string, lastLedger uint32) (*TxInfo, bool, error) {
	info, err := s.lookup(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if info != nil {
		return info, true, nil
	}
	if lastLedger == 0 {
		return nil, false, nil
	}

	hdr, err := s.Ledger(ctx, LedgerValidated)
	if err != nil {
		return nil, false, err
	}
	if hdr.Index <= lastLedger {
		return nil, false, nil
	}
	// The window closed; look once more in case validation raced the
	// ledger query.
	info, err = s.lookup(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

// lookup returns the transaction when it is in a validated ledger.
func (s *Session) lookup(ctx context.Context, hash string) (*TxInfo, error) {
	info, err := s.Tx(ctx, hash)
	if IsRPCError(err, ErrNameTxnNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.Validated {
		return nil, nil
	}
	return info, nil
}

func (s *Session) validated(logger *slog.Logger, op, txType, hash string, info *TxInfo, start time.Time) (*TxResult, error) {
	if info.Hash == "" {
		info.Hash = hash
	}
	result := info.Result()
	if !result.IsSuccess() {
		s.finalize(logger, txType, hash, journal.StateFailed, string(result), start)
		return nil, failure.Rejected(op, string(result), hash, result.Message())
	}
	s.finalize(logger, txType, hash, journal.StateValidated, string(result), start)
	logger.Info("transaction validated", "ledger_index", info.LedgerIndex)
	return &TxResult{
		Hash:        info.Hash,
		LedgerIndex: info.LedgerIndex,
		Result:      result,
		Fields:      info.Fields,
		Meta:        info.Meta,
	}, nil
}

func (s *Session) finalize(logger *slog.Logger, txType, hash string, state journal.State, result string, start time.Time) {
	metrics.SubmissionsTotal.WithLabelValues(txType, result).Inc()
	metrics.SubmitDuration.WithLabelValues(txType).Observe(time.Since(start).Seconds())
	if state == journal.StateFailed {
		logger.Info("transaction failed", "result", result)
	}
	s.journalResolve(logger, hash, state, result)
}

func (s *Session) ambiguous(logger *slog.Logger, op, txType, hash string, err error) error {
	metrics.AmbiguousSubmissionsTotal.WithLabelValues(txType).Inc()
	logger.Warn("submission outcome unknown", "error", err)
	s.journalResolve(logger, hash, journal.StateAmbiguous, "")
	return failure.Ambiguous(op, hash, err)
}

func (s *Session) journalRecord(t tx.Transaction, hash string) {
	if s.opts.Journal == nil {
		return
	}
	c := t.GetCommon()
	e := journal.Entry{
		Hash:    hash,
		TxType:  string(t.TxType()),
		Account: c.Account,
	}
	if c.Sequence != nil {
		e.Sequence = *c.Sequence
	}
	if c.LastLedgerSequence != nil {
		e.LastLedgerSequence = *c.LastLedgerSequence
	}
	switch v := t.(type) {
	case *tx.EscrowFinish:
		e.Owner, e.OfferSequence = v.Owner, v.OfferSequence
	case *tx.EscrowCancel:
		e.Owner, e.OfferSequence = v.Owner, v.OfferSequence
	}
	if err := s.opts.Journal.Record(e); err != nil {
		s.logger.Warn("journal record failed", "hash", hash, "error", err)
	}
}

func (s *Session) journalResolve(logger *slog.Logger, hash string, state journal.State, result string) {
	if s.opts.Journal == nil {
		return
	}
	if _, err := s.opts.Journal.Resolve(hash, state, result); err != nil {
		logger.Warn("journal update failed", "error", err)
	}
}
