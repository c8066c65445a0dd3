package testing

import (
	"encoding/hex"
	"strconv"
	"strings"

	binarycodec "github.com/LeJamon/goxrpl-escrow/internal/codec/binary-codec"
	"github.com/LeJamon/goxrpl-escrow/internal/codec/condition"
	"github.com/LeJamon/goxrpl-escrow/internal/core/ledger/keylet"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

// Result codes the simulated engine returns that the tx package does not
// name.
const (
	terNO_ACCOUNT = "terNO_ACCOUNT"
	terPRE_SEQ    = "terPRE_SEQ"
	tefALREADY    = "tefALREADY"
	tefBAD_AUTH   = "tefBAD_AUTH"
	temUNKNOWN    = "temUNKNOWN"
	tecNO_LINE    = "tecNO_LINE"
)

// mptLedgerFlags are the issuance flag bits stored on the ledger object.
const mptLedgerFlags = tx.MPTFlagCanLock | tx.MPTFlagRequireAuth | tx.MPTFlagCanEscrow |
	tx.MPTFlagCanTrade | tx.MPTFlagCanTransfer | tx.MPTFlagCanClawback

func (e *TestEnv) submit(params map[string]any) (any, error) {
	blob := tx.StringField(params, "tx_blob")
	fields, err := binarycodec.Decode(blob)
	if err != nil {
		return nil, rpcError("submit", "invalidTransaction", "fails local checks: "+err.Error())
	}
	hash, err := crypto.TransactionIDHex(blob)
	if err != nil {
		return nil, rpcError("submit", "invalidTransaction", err.Error())
	}

	result := e.preflight(fields, hash)
	if result == "" {
		e.pending = append(e.pending, pendingTx{hash: hash, fields: fields})
		e.txs[hash] = &txRecord{Hash: hash, Fields: fields}
		result = string(tx.TerQUEUED)
		if e.autoClose {
			e.closeLocked()
			result, _ = e.txs[hash].Meta["TransactionResult"].(string)
		}
	}

	resp := map[string]any{
		"engine_result":         result,
		"engine_result_message": tx.Result(result).Message(),
		"accepted":              !isLocalFailure(result),
		"applied":               tx.Result(result).IsApplied(),
		"queued":                result == string(tx.TerQUEUED),
		"tx_blob":               blob,
		"tx_json":               withHash(fields, hash),
	}

	if e.dropSubmits > 0 {
		e.dropSubmits--
		return nil, ErrDropped
	}
	return resp, nil
}

func isLocalFailure(result string) bool {
	r := tx.Result(result)
	return r.IsTem() || r.IsTef() || r.IsTel() || result == terNO_ACCOUNT || result == terPRE_SEQ
}

func withHash(fields map[string]any, hash string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["hash"] = hash
	return out
}

// preflight returns a failure code, or "" when the transaction may be
// queued for the next ledger.
func (e *TestEnv) preflight(fields map[string]any, hash string) string {
	if _, dup := e.txs[hash]; dup {
		return tefALREADY
	}

	account := tx.StringField(fields, "Account")
	root, ok := e.accountByAddress(account)
	if !ok {
		return terNO_ACCOUNT
	}
	pub, err := hex.DecodeString(tx.StringField(fields, "SigningPubKey"))
	if err != nil {
		return tefBAD_AUTH
	}
	if signer, err := crypto.AddressFromPublicKey(pub); err != nil || signer != account {
		return tefBAD_AUTH
	}

	seq, _ := tx.Uint32Field(fields, "Sequence")
	expected := root.Sequence + e.pendingFrom(account)
	switch {
	case seq < expected:
		return string(tx.TefPAST_SEQ)
	case seq > expected:
		return terPRE_SEQ
	}

	if lls, ok := tx.Uint32Field(fields, "LastLedgerSequence"); ok && lls <= e.validatedLocked().Index {
		return string(tx.TefMAX_LEDGER)
	}

	fee, ok := tx.Uint64Field(fields, "Fee")
	if !ok {
		return string(tx.TemBAD_FEE)
	}
	required := e.baseFee
	if tx.StringField(fields, "TransactionType") == string(tx.TypeEscrowFinish) {
		required = condition.FinishFee(e.baseFee, tx.StringField(fields, "Fulfillment"))
	}
	if fee < required {
		return string(tx.TelINSUF_FEE_P)
	}

	return e.preflightType(fields)
}

func (e *TestEnv) pendingFrom(account string) uint32 {
	var n uint32
	for _, p := range e.pending {
		if tx.StringField(p.fields, "Account") == account {
			n++
		}
	}
	return n
}

func (e *TestEnv) preflightType(fields map[string]any) string {
	switch tx.Type(tx.StringField(fields, "TransactionType")) {
	case tx.TypeEscrowCreate:
		fa, hasFA := tx.Uint32Field(fields, "FinishAfter")
		ca, hasCA := tx.Uint32Field(fields, "CancelAfter")
		if hasFA && hasCA && ca <= fa {
			return string(tx.TemBAD_EXPIRATION)
		}
		if !hasFA && tx.StringField(fields, "Condition") == "" {
			return string(tx.TemMALFORMED)
		}
	case tx.TypeEscrowFinish:
		if (tx.StringField(fields, "Condition") == "") != (tx.StringField(fields, "Fulfillment") == "") {
			return string(tx.TemMALFORMED)
		}
	case tx.TypeEscrowCancel:
	case tx.TypeMPTokenIssuanceCreate:
		flags, _ := tx.Uint32Field(fields, "Flags")
		if fee, ok := tx.Uint32Field(fields, "TransferFee"); ok && fee > 0 {
			if fee > uint32(tx.MaxTransferFee) {
				return string(tx.TemBAD_TRANSFER_FEE)
			}
			if flags&tx.MPTFlagCanTransfer == 0 {
				return string(tx.TemMALFORMED)
			}
		}
		if md, ok := fields["MPTokenMetadata"]; ok {
			s, _ := md.(string)
			if len(s) == 0 || len(s)/2 > tx.MaxMPTokenMetadataLength {
				return string(tx.TemMALFORMED)
			}
		}
	case tx.TypeMPTokenIssuanceDestroy:
	default:
		return temUNKNOWN
	}
	return ""
}

// applyOutcome is what a transactor changed.
type applyOutcome struct {
	result  tx.Result
	nodes   []map[string]any
	extra   map[string]any
	touched []string
}

func (e *TestEnv) applyLocked(hash string, fields map[string]any, hdr ledgerHeader, txIndex int) {
	account := tx.StringField(fields, "Account")
	root, _ := e.accountByAddress(account)

	fee, _ := tx.Uint64Field(fields, "Fee")
	if fee > root.Balance {
		fee = root.Balance
	}
	root.Balance -= fee
	root.Sequence++

	var out applyOutcome
	switch tx.Type(tx.StringField(fields, "TransactionType")) {
	case tx.TypeEscrowCreate:
		out = e.applyEscrowCreate(hash, fields, root, hdr)
	case tx.TypeEscrowFinish:
		out = e.applyEscrowFinish(fields, hdr)
	case tx.TypeEscrowCancel:
		out = e.applyEscrowCancel(fields, hdr)
	case tx.TypeMPTokenIssuanceCreate:
		out = e.applyMPTCreate(hash, fields, root, hdr)
	case tx.TypeMPTokenIssuanceDestroy:
		out = e.applyMPTDestroy(fields, root)
	}

	nodes := append([]map[string]any{{
		"ModifiedNode": map[string]any{
			"LedgerEntryType": "AccountRoot",
			"LedgerIndex":     keylet.Account(root.ID).Hex(),
			"FinalFields": map[string]any{
				"Account":    root.Address,
				"Balance":    strconv.FormatUint(root.Balance, 10),
				"Sequence":   root.Sequence,
				"OwnerCount": root.OwnerCount,
			},
		},
	}}, out.nodes...)
	meta := map[string]any{
		"TransactionIndex":  txIndex,
		"TransactionResult": string(out.result),
		"AffectedNodes":     nodes,
	}
	for k, v := range out.extra {
		meta[k] = v
	}

	rec := e.txs[hash]
	if rec == nil {
		rec = &txRecord{Hash: hash, Fields: fields}
		e.txs[hash] = rec
	}
	rec.Meta = meta
	rec.LedgerIndex = hdr.Index
	rec.Validated = true

	seen := map[[20]byte]bool{}
	for _, addr := range append([]string{account}, out.touched...) {
		id, err := crypto.AccountIDFromAddress(addr)
		if err != nil || seen[id] {
			continue
		}
		if _, ok := e.accounts[id]; !ok {
			continue
		}
		seen[id] = true
		e.history[id] = append(e.history[id], hash)
	}
}

func fail(r tx.Result) applyOutcome {
	return applyOutcome{result: r}
}

func (e *TestEnv) applyEscrowCreate(hash string, fields map[string]any, root *accountRoot, hdr ledgerHeader) applyOutcome {
	dest := tx.StringField(fields, "Destination")
	if _, ok := e.accountByAddress(dest); !ok {
		return fail(tx.TecNO_DST)
	}

	fa, hasFA := tx.Uint32Field(fields, "FinishAfter")
	ca, hasCA := tx.Uint32Field(fields, "CancelAfter")
	if hasCA && hdr.CloseTime > ca {
		return fail(tx.TecNO_PERMISSION)
	}
	if hasFA && hdr.CloseTime > fa {
		return fail(tx.TecNO_PERMISSION)
	}

	amount, err := tx.ParseAmount(fields["Amount"])
	if err != nil {
		return fail(tx.TemBAD_AMOUNT)
	}
	reserve := e.reserve(root.OwnerCount + 1)
	var drops uint64
	switch {
	case amount.IsNative():
		drops, err = strconv.ParseUint(amount.Drops, 10, 64)
		if err != nil || drops == 0 {
			return fail(tx.TemBAD_AMOUNT)
		}
		if root.Balance < reserve+drops {
			return fail(tx.TecUNFUNDED)
		}
	case amount.IsMPT():
		// Holder balances are not modelled; the issuance must allow escrow.
		iss, ok := e.issuanceByHex(amount.MPTIssuanceID)
		if !ok {
			return fail(tx.TecOBJECT_NOT_FOUND)
		}
		if iss.Flags&tx.MPTFlagCanEscrow == 0 || iss.Issuer == root.Address {
			return fail(tx.TecNO_PERMISSION)
		}
		if root.Balance < reserve {
			return fail(tx.TecINSUFFICIENT_RESERVE)
		}
	default:
		return fail(tecNO_LINE)
	}

	seq, _ := tx.Uint32Field(fields, "Sequence")
	k := keylet.Escrow(root.ID, seq)
	esc := &escrowEntry{
		Index:         k.Key,
		Owner:         root.ID,
		Account:       root.Address,
		Destination:   dest,
		Amount:        fields["Amount"],
		Drops:         drops,
		Condition:     strings.ToUpper(tx.StringField(fields, "Condition")),
		Sequence:      seq,
		PrevTxnID:     hash,
		PrevTxnLgrSeq: hdr.Index,
	}
	if hasFA {
		esc.FinishAfter = fa
	}
	if hasCA {
		esc.CancelAfter = ca
	}
	if tag, ok := tx.Uint32Field(fields, "DestinationTag"); ok {
		esc.DestinationTag = &tag
	}
	e.escrows[k.Key] = esc
	root.Balance -= drops
	root.OwnerCount++

	newFields := escrowJSON(esc)
	delete(newFields, "index")
	delete(newFields, "LedgerEntryType")
	return applyOutcome{
		result: tx.TesSUCCESS,
		nodes: []map[string]any{{"CreatedNode": map[string]any{
			"LedgerEntryType": "Escrow",
			"LedgerIndex":     k.Hex(),
			"NewFields":       newFields,
		}}},
		touched: []string{dest},
	}
}

func (e *TestEnv) lookupEscrow(fields map[string]any) (*escrowEntry, bool) {
	ownerID, err := crypto.AccountIDFromAddress(tx.StringField(fields, "Owner"))
	if err != nil {
		return nil, false
	}
	seq, _ := tx.Uint32Field(fields, "OfferSequence")
	esc, ok := e.escrows[keylet.Escrow(ownerID, seq).Key]
	return esc, ok
}

func (e *TestEnv) applyEscrowFinish(fields map[string]any, hdr ledgerHeader) applyOutcome {
	esc, ok := e.lookupEscrow(fields)
	if !ok {
		return fail(tx.TecNO_TARGET)
	}

	// Close time must be strictly after FinishAfter and not after CancelAfter.
	if esc.FinishAfter != 0 && hdr.CloseTime <= esc.FinishAfter {
		return fail(tx.TecNO_PERMISSION)
	}
	if esc.CancelAfter != 0 && hdr.CloseTime > esc.CancelAfter {
		return fail(tx.TecNO_PERMISSION)
	}

	txCond := strings.ToUpper(tx.StringField(fields, "Condition"))
	txFul := tx.StringField(fields, "Fulfillment")
	if esc.Condition == "" {
		if txCond != "" || txFul != "" {
			return fail(tx.TecCRYPTOCONDITION_ERROR)
		}
	} else {
		if txFul == "" || txCond != esc.Condition {
			return fail(tx.TecCRYPTOCONDITION_ERROR)
		}
		if valid, err := condition.IsValidFulfillment(esc.Condition, txFul); err != nil || !valid {
			return fail(tx.TecCRYPTOCONDITION_ERROR)
		}
	}

	destRoot, ok := e.accountByAddress(esc.Destination)
	if !ok {
		return fail(tx.TecNO_DST)
	}
	destRoot.Balance += esc.Drops

	out := e.removeEscrow(esc)
	out.extra = map[string]any{"delivered_amount": esc.Amount}
	return out
}

func (e *TestEnv) applyEscrowCancel(fields map[string]any, hdr ledgerHeader) applyOutcome {
	esc, ok := e.lookupEscrow(fields)
	if !ok {
		return fail(tx.TecNO_TARGET)
	}
	if esc.CancelAfter == 0 || hdr.CloseTime <= esc.CancelAfter {
		return fail(tx.TecNO_PERMISSION)
	}

	ownerRoot := e.accounts[esc.Owner]
	ownerRoot.Balance += esc.Drops
	return e.removeEscrow(esc)
}

func (e *TestEnv) removeEscrow(esc *escrowEntry) applyOutcome {
	delete(e.escrows, esc.Index)
	if ownerRoot, ok := e.accounts[esc.Owner]; ok && ownerRoot.OwnerCount > 0 {
		ownerRoot.OwnerCount--
	}
	final := escrowJSON(esc)
	delete(final, "index")
	delete(final, "LedgerEntryType")
	return applyOutcome{
		result: tx.TesSUCCESS,
		nodes: []map[string]any{{"DeletedNode": map[string]any{
			"LedgerEntryType": "Escrow",
			"LedgerIndex":     hexKey(esc.Index),
			"FinalFields":     final,
		}}},
		touched: []string{esc.Account, esc.Destination},
	}
}

func (e *TestEnv) issuanceByHex(idHex string) (*issuanceEntry, bool) {
	raw, err := hex.DecodeString(idHex)
	if err != nil || len(raw) != keylet.MPTIDSize {
		return nil, false
	}
	var id [keylet.MPTIDSize]byte
	copy(id[:], raw)
	iss, ok := e.issuances[id]
	return iss, ok
}

func (e *TestEnv) applyMPTCreate(hash string, fields map[string]any, root *accountRoot, hdr ledgerHeader) applyOutcome {
	if root.Balance < e.reserve(root.OwnerCount+1) {
		return fail(tx.TecINSUFFICIENT_RESERVE)
	}

	seq, _ := tx.Uint32Field(fields, "Sequence")
	flags, _ := tx.Uint32Field(fields, "Flags")
	id := keylet.MakeMPTID(seq, root.ID)
	k := keylet.MPTIssuance(id)
	iss := &issuanceEntry{
		ID:            id,
		Index:         k.Key,
		Issuer:        root.Address,
		Sequence:      seq,
		Flags:         flags & mptLedgerFlags,
		Metadata:      strings.ToUpper(tx.StringField(fields, "MPTokenMetadata")),
		PrevTxnID:     hash,
		PrevTxnLgrSeq: hdr.Index,
	}
	if scale, ok := tx.Uint32Field(fields, "AssetScale"); ok {
		iss.AssetScale = uint8(scale)
	}
	if fee, ok := tx.Uint32Field(fields, "TransferFee"); ok {
		iss.TransferFee = uint16(fee)
	}
	if maxAmount, ok := tx.Uint64Field(fields, "MaximumAmount"); ok {
		iss.MaximumAmount = &maxAmount
	}
	e.issuances[id] = iss
	root.OwnerCount++

	newFields := issuanceJSON(iss)
	delete(newFields, "index")
	delete(newFields, "LedgerEntryType")
	delete(newFields, "mpt_issuance_id")
	out := applyOutcome{
		result: tx.TesSUCCESS,
		nodes: []map[string]any{{"CreatedNode": map[string]any{
			"LedgerEntryType": "MPTokenIssuance",
			"LedgerIndex":     k.Hex(),
			"NewFields":       newFields,
		}}},
	}
	if !e.omitIssuanceMeta {
		out.extra = map[string]any{"mpt_issuance_id": strings.ToUpper(hex.EncodeToString(id[:]))}
	}
	return out
}

func (e *TestEnv) applyMPTDestroy(fields map[string]any, root *accountRoot) applyOutcome {
	iss, ok := e.issuanceByHex(tx.StringField(fields, "MPTokenIssuanceID"))
	if !ok {
		return fail(tx.TecOBJECT_NOT_FOUND)
	}
	if iss.Issuer != root.Address {
		return fail(tx.TecNO_PERMISSION)
	}
	delete(e.issuances, iss.ID)
	if root.OwnerCount > 0 {
		root.OwnerCount--
	}
	final := issuanceJSON(iss)
	delete(final, "index")
	delete(final, "LedgerEntryType")
	delete(final, "mpt_issuance_id")
	return applyOutcome{
		result: tx.TesSUCCESS,
		nodes: []map[string]any{{"DeletedNode": map[string]any{
			"LedgerEntryType": "MPTokenIssuance",
			"LedgerIndex":     hexKey(iss.Index),
			"FinalFields":     final,
		}}},
	}
}
