package testing

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/LeJamon/goxrpl-escrow/internal/core/ledger/keylet"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

const defaultPageLimit = 200

// handle answers one command.
func (e *TestEnv) handle(command string, params map[string]any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.requests[command]++
	if err, ok := e.failNext[command]; ok {
		delete(e.failNext, command)
		return nil, err
	}

	switch command {
	case "account_info":
		return e.accountInfo(params)
	case "account_objects":
		return e.accountObjects(params)
	case "account_tx":
		return e.accountTx(params)
	case "server_info":
		return e.serverInfo(), nil
	case "ledger":
		return e.ledger(params)
	case "ledger_entry":
		return e.ledgerEntry(params)
	case "submit":
		return e.submit(params)
	case "tx":
		return e.tx(params)
	default:
		return nil, rpcError(command, "unknownCmd", "Unknown method.")
	}
}

func (e *TestEnv) accountInfo(params map[string]any) (any, error) {
	address := tx.StringField(params, "account")
	if !crypto.IsValidAddress(address) {
		return nil, rpcError("account_info", "actMalformed", "Account malformed.")
	}
	root, ok := e.accountByAddress(address)
	if !ok {
		return nil, rpcError("account_info", "actNotFound", "Account not found.")
	}
	res := map[string]any{
		"account_data": accountRootJSON(root),
		"validated":    tx.StringField(params, "ledger_index") != "current",
	}
	if tx.StringField(params, "ledger_index") == "current" {
		res["ledger_current_index"] = e.validatedLocked().Index + 1
	} else {
		res["ledger_index"] = e.validatedLocked().Index
	}
	return res, nil
}

func accountRootJSON(root *accountRoot) map[string]any {
	return map[string]any{
		"LedgerEntryType": "AccountRoot",
		"Account":         root.Address,
		"Balance":         strconv.FormatUint(root.Balance, 10),
		"Sequence":        root.Sequence,
		"OwnerCount":      root.OwnerCount,
		"Flags":           0,
		"index":           keylet.Account(root.ID).Hex(),
	}
}

func (e *TestEnv) accountObjects(params map[string]any) (any, error) {
	address := tx.StringField(params, "account")
	if _, ok := e.accountByAddress(address); !ok {
		return nil, rpcError("account_objects", "actNotFound", "Account not found.")
	}

	var objects []map[string]any
	objType := tx.StringField(params, "type")
	if objType == "" || objType == "escrow" {
		for _, esc := range e.sortedEscrows(address) {
			objects = append(objects, escrowJSON(esc))
		}
	}
	if objType == "" || objType == "mpt_issuance" {
		for _, iss := range e.sortedIssuances(address) {
			objects = append(objects, issuanceJSON(iss))
		}
	}

	page, marker, err := paginate(len(objects), params)
	if err != nil {
		return nil, rpcError("account_objects", "invalidParams", err.Error())
	}
	res := map[string]any{
		"account":         address,
		"account_objects": nonNil(objects[page.start:page.end]),
		"ledger_index":    e.validatedLocked().Index,
		"validated":       true,
	}
	if marker != "" {
		res["marker"] = marker
	}
	return res, nil
}

func escrowJSON(esc *escrowEntry) map[string]any {
	m := map[string]any{
		"LedgerEntryType":   "Escrow",
		"Account":           esc.Account,
		"Destination":       esc.Destination,
		"Amount":            esc.Amount,
		"Flags":             0,
		"OwnerNode":         "0",
		"PreviousTxnID":     esc.PrevTxnID,
		"PreviousTxnLgrSeq": esc.PrevTxnLgrSeq,
		"index":             hexKey(esc.Index),
	}
	if esc.FinishAfter != 0 {
		m["FinishAfter"] = esc.FinishAfter
	}
	if esc.CancelAfter != 0 {
		m["CancelAfter"] = esc.CancelAfter
	}
	if esc.Condition != "" {
		m["Condition"] = esc.Condition
	}
	if esc.DestinationTag != nil {
		m["DestinationTag"] = *esc.DestinationTag
	}
	return m
}

func issuanceJSON(iss *issuanceEntry) map[string]any {
	m := map[string]any{
		"LedgerEntryType":   "MPTokenIssuance",
		"Issuer":            iss.Issuer,
		"Sequence":          iss.Sequence,
		"Flags":             iss.Flags,
		"OutstandingAmount": "0",
		"OwnerNode":         "0",
		"PreviousTxnID":     iss.PrevTxnID,
		"PreviousTxnLgrSeq": iss.PrevTxnLgrSeq,
		"mpt_issuance_id":   strings.ToUpper(hex.EncodeToString(iss.ID[:])),
		"index":             hexKey(iss.Index),
	}
	if iss.AssetScale != 0 {
		m["AssetScale"] = iss.AssetScale
	}
	if iss.MaximumAmount != nil {
		m["MaximumAmount"] = strconv.FormatUint(*iss.MaximumAmount, 10)
	}
	if iss.TransferFee != 0 {
		m["TransferFee"] = iss.TransferFee
	}
	if iss.Metadata != "" {
		m["MPTokenMetadata"] = iss.Metadata
	}
	return m
}

func (e *TestEnv) accountTx(params map[string]any) (any, error) {
	address := tx.StringField(params, "account")
	id, err := crypto.AccountIDFromAddress(address)
	if err != nil {
		return nil, rpcError("account_tx", "actMalformed", "Account malformed.")
	}
	if _, ok := e.accounts[id]; !ok {
		return nil, rpcError("account_tx", "actNotFound", "Account not found.")
	}

	hashes := e.history[id]
	ordered := make([]string, len(hashes))
	forward, _ := params["forward"].(bool)
	for i := range hashes {
		if forward {
			ordered[i] = hashes[i]
		} else {
			ordered[i] = hashes[len(hashes)-1-i]
		}
	}

	page, marker, err := paginate(len(ordered), params)
	if err != nil {
		return nil, rpcError("account_tx", "invalidParams", err.Error())
	}
	txs := make([]map[string]any, 0, page.end-page.start)
	for _, h := range ordered[page.start:page.end] {
		rec := e.txs[h]
		txs = append(txs, map[string]any{
			"hash":         rec.Hash,
			"ledger_index": rec.LedgerIndex,
			"validated":    rec.Validated,
			"tx_json":      rec.Fields,
			"meta":         rec.Meta,
		})
	}
	res := map[string]any{
		"account":      address,
		"transactions": txs,
	}
	if marker != "" {
		res["marker"] = marker
	}
	return res, nil
}

func (e *TestEnv) serverInfo() any {
	validated := e.validatedLocked()
	info := map[string]any{
		"build_version": "simulated",
		"load_factor":   1,
		"server_state":  "full",
		"validated_ledger": map[string]any{
			"seq":              validated.Index,
			"hash":             ledgerHash(validated.Index),
			"base_fee_xrp":     float64(e.baseFee) / float64(DropsPerXRP),
			"reserve_base_xrp": float64(e.reserveBase) / float64(DropsPerXRP),
			"reserve_inc_xrp":  float64(e.reserveIncrement) / float64(DropsPerXRP),
			"close_time":       validated.CloseTime,
		},
	}
	if e.networkID != 0 {
		info["network_id"] = e.networkID
	}
	return map[string]any{"info": info}
}

func (e *TestEnv) ledger(params map[string]any) (any, error) {
	hdr, ok := e.selectLedger(params["ledger_index"])
	if !ok {
		return nil, rpcError("ledger", "lgrNotFound", "ledgerNotFound")
	}
	return map[string]any{
		"ledger_hash":  ledgerHash(hdr.Index),
		"ledger_index": hdr.Index,
		"validated":    true,
		"ledger": map[string]any{
			"ledger_index": strconv.FormatUint(uint64(hdr.Index), 10),
			"close_time":   hdr.CloseTime,
			"closed":       true,
		},
	}, nil
}

func (e *TestEnv) selectLedger(sel any) (ledgerHeader, bool) {
	switch v := sel.(type) {
	case nil, string:
		if s, _ := v.(string); s != "" && s != "validated" && s != "closed" && s != "current" {
			n, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return ledgerHeader{}, false
			}
			return e.ledgerAt(uint32(n))
		}
		return e.validatedLocked(), true
	case float64:
		return e.ledgerAt(uint32(v))
	}
	return ledgerHeader{}, false
}

func (e *TestEnv) ledgerAt(index uint32) (ledgerHeader, bool) {
	for _, l := range e.ledgers {
		if l.Index == index {
			return l, true
		}
	}
	return ledgerHeader{}, false
}

func (e *TestEnv) ledgerEntry(params map[string]any) (any, error) {
	var index [32]byte
	switch {
	case tx.StringField(params, "index") != "":
		raw, err := hex.DecodeString(tx.StringField(params, "index"))
		if err != nil || len(raw) != 32 {
			return nil, rpcError("ledger_entry", "malformedRequest", "Malformed index.")
		}
		copy(index[:], raw)
	case tx.MapField(params, "escrow") != nil:
		ref := tx.MapField(params, "escrow")
		owner, err := crypto.AccountIDFromAddress(tx.StringField(ref, "owner"))
		seq, ok := tx.Uint32Field(ref, "seq")
		if err != nil || !ok {
			return nil, rpcError("ledger_entry", "malformedRequest", "Malformed escrow.")
		}
		index = keylet.Escrow(owner, seq).Key
	case tx.StringField(params, "mpt_issuance") != "":
		raw, err := hex.DecodeString(tx.StringField(params, "mpt_issuance"))
		if err != nil || len(raw) != keylet.MPTIDSize {
			return nil, rpcError("ledger_entry", "malformedRequest", "Malformed mpt_issuance.")
		}
		var id [keylet.MPTIDSize]byte
		copy(id[:], raw)
		index = keylet.MPTIssuance(id).Key
	default:
		return nil, rpcError("ledger_entry", "invalidParams", "No ledger entry selected.")
	}

	node, ok := e.nodeAt(index)
	if !ok {
		return nil, rpcError("ledger_entry", "entryNotFound", "Entry not found.")
	}
	return map[string]any{
		"index":        hexKey(index),
		"ledger_index": e.validatedLocked().Index,
		"node":         node,
		"validated":    true,
	}, nil
}

func (e *TestEnv) nodeAt(index [32]byte) (map[string]any, bool) {
	if esc, ok := e.escrows[index]; ok {
		return escrowJSON(esc), true
	}
	for _, iss := range e.issuances {
		if iss.Index == index {
			return issuanceJSON(iss), true
		}
	}
	for _, root := range e.accounts {
		if keylet.Account(root.ID).Key == index {
			return accountRootJSON(root), true
		}
	}
	return nil, false
}

func (e *TestEnv) tx(params map[string]any) (any, error) {
	hash := strings.ToUpper(tx.StringField(params, "transaction"))
	rec, ok := e.txs[hash]
	if !ok {
		return nil, rpcError("tx", "txnNotFound", "Transaction not found.")
	}
	res := map[string]any{
		"hash":      rec.Hash,
		"validated": rec.Validated,
		"tx_json":   rec.Fields,
	}
	if rec.Validated {
		res["ledger_index"] = rec.LedgerIndex
		res["meta"] = rec.Meta
	}
	return res, nil
}

type pageRange struct{ start, end int }

// paginate applies limit and marker params to n items. Markers are the
// decimal offset of the next page.
func paginate(n int, params map[string]any) (pageRange, string, error) {
	limit := defaultPageLimit
	if l, ok := tx.Uint32Field(params, "limit"); ok && l > 0 {
		limit = int(l)
	}
	start := 0
	if m, ok := params["marker"]; ok && m != nil {
		s, _ := m.(string)
		off, err := strconv.Atoi(s)
		if err != nil || off < 0 || off > n {
			return pageRange{}, "", fmt.Errorf("invalid marker %v", m)
		}
		start = off
	}
	end := start + limit
	if end >= n {
		return pageRange{start: start, end: n}, "", nil
	}
	return pageRange{start: start, end: end}, strconv.Itoa(end), nil
}

func nonNil(objs []map[string]any) []map[string]any {
	if objs == nil {
		return []map[string]any{}
	}
	return objs
}
