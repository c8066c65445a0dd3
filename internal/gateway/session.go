package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/storage/journal"
)

// Ledger selectors.
const (
	LedgerValidated = "validated"
	LedgerCurrent   = "current"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultSubmitTimeout  = 90 * time.Second
	defaultPollInterval   = time.Second
	defaultLedgerOffset   = 20
	objectsPageLimit      = 200
	txPageLimit           = 100
	defaultBaseFee        = 10
	// Networks above this ID require NetworkID on every transaction.
	legacyNetworkIDLimit = 1024
)

// Options tune a Session.
type Options struct {
	// RequestTimeout bounds each read request.
	RequestTimeout time.Duration
	// SubmitTimeout bounds submit-and-wait as a whole.
	SubmitTimeout time.Duration
	// PollInterval is the delay between tx lookups while waiting.
	PollInterval time.Duration
	// LedgerOffset is added to the validated ledger index to form
	// LastLedgerSequence.
	LedgerOffset uint32
	// Journal, when set, records every submission.
	Journal *journal.Journal
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.SubmitTimeout <= 0 {
		o.SubmitTimeout = defaultSubmitTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.LedgerOffset == 0 {
		o.LedgerOffset = defaultLedgerOffset
	}
	return o
}

// Session issues typed commands over one connection.
type Session struct {
	conn   Requester
	opts   Options
	logger *slog.Logger
}

// NewSession wraps conn.
func NewSession(conn Requester, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{conn: conn, opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (s *Session) Options() Options {
	return s.opts
}

// call runs one read command under RequestTimeout.
func (s *Session) call(ctx context.Context, command string, params map[string]any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	return s.conn.Request(ctx, command, params, out)
}

// AccountInfo is the subset of account_info the orchestrator reads.
type AccountInfo struct {
	Account     string
	Balance     string
	Sequence    uint32
	OwnerCount  uint32
	LedgerIndex uint32
}

// AccountInfo returns the account root of account in ledger (validated or
// current).
func (s *Session) AccountInfo(ctx context.Context, account, ledger string) (*AccountInfo, error) {
	var res struct {
		AccountData struct {
			Account    string `json:"Account"`
			Balance    string `json:"Balance"`
			Sequence   uint32 `json:"Sequence"`
			OwnerCount uint32 `json:"OwnerCount"`
		} `json:"account_data"`
		LedgerIndex        uint32 `json:"ledger_index"`
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	err := s.call(ctx, "account_info", map[string]any{
		"account":      account,
		"ledger_index": ledger,
	}, &res)
	if err != nil {
		return nil, err
	}
	idx := res.LedgerIndex
	if idx == 0 {
		idx = res.LedgerCurrentIndex
	}
	return &AccountInfo{
		Account:     res.AccountData.Account,
		Balance:     res.AccountData.Balance,
		Sequence:    res.AccountData.Sequence,
		OwnerCount:  res.AccountData.OwnerCount,
		LedgerIndex: idx,
	}, nil
}

// ServerInfo is the subset of server_info used for autofill.
type ServerInfo struct {
	ValidatedLedger uint32
	BaseFeeXRP      float64
	ReserveBaseXRP  float64
	LoadFactor      float64
	NetworkID       uint32
}

// BaseFeeDrops returns the open ledger fee in drops, scaled by load.
func (si *ServerInfo) BaseFeeDrops() uint64 {
	load := si.LoadFactor
	if load < 1 {
		load = 1
	}
	drops := math.Ceil(si.BaseFeeXRP * 1e6 * load)
	if drops < 1 {
		return defaultBaseFee
	}
	return uint64(drops)
}

// ServerInfo returns fee and validated ledger information.
func (s *Session) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var res struct {
		Info struct {
			ValidatedLedger *struct {
				Seq            uint32  `json:"seq"`
				BaseFeeXRP     float64 `json:"base_fee_xrp"`
				ReserveBaseXRP float64 `json:"reserve_base_xrp"`
			} `json:"validated_ledger"`
			LoadFactor float64 `json:"load_factor"`
			NetworkID  uint32  `json:"network_id"`
		} `json:"info"`
	}
	if err := s.call(ctx, "server_info", nil, &res); err != nil {
		return nil, err
	}
	if res.Info.ValidatedLedger == nil {
		return nil, fmt.Errorf("server_info: node has no validated ledger")
	}
	return &ServerInfo{
		ValidatedLedger: res.Info.ValidatedLedger.Seq,
		BaseFeeXRP:      res.Info.ValidatedLedger.BaseFeeXRP,
		ReserveBaseXRP:  res.Info.ValidatedLedger.ReserveBaseXRP,
		LoadFactor:      res.Info.LoadFactor,
		NetworkID:       res.Info.NetworkID,
	}, nil
}

// LedgerHeader identifies one ledger and its close time.
type LedgerHeader struct {
	Index uint32
	Hash  string
	// CloseTime is in ledger seconds.
	CloseTime uint32
	Validated bool
}

// Ledger returns the header of the ledger selected by ledger.
func (s *Session) Ledger(ctx context.Context, ledger string) (*LedgerHeader, error) {
	var res struct {
		LedgerHash  string `json:"ledger_hash"`
		LedgerIndex uint32 `json:"ledger_index"`
		Validated   bool   `json:"validated"`
		Ledger      struct {
			CloseTime uint32 `json:"close_time"`
		} `json:"ledger"`
	}
	if err := s.call(ctx, "ledger", map[string]any{"ledger_index": ledger}, &res); err != nil {
		return nil, err
	}
	return &LedgerHeader{
		Index:     res.LedgerIndex,
		Hash:      res.LedgerHash,
		CloseTime: res.Ledger.CloseTime,
		Validated: res.Validated,
	}, nil
}

// AccountObjects returns every validated ledger object of objType owned by
// account, following markers across pages.
func (s *Session) AccountObjects(ctx context.Context, account, objType string) ([]map[string]any, error) {
	var (
		out    []map[string]any
		marker any
	)
	for {
		params := map[string]any{
			"account":      account,
			"ledger_index": LedgerValidated,
			"limit":        objectsPageLimit,
		}
		if objType != "" {
			params["type"] = objType
		}
		if marker != nil {
			params["marker"] = marker
		}

		var res struct {
			AccountObjects []map[string]any `json:"account_objects"`
			Marker         any              `json:"marker"`
		}
		if err := s.call(ctx, "account_objects", params, &res); err != nil {
			return nil, err
		}
		out = append(out, res.AccountObjects...)
		if res.Marker == nil {
			return out, nil
		}
		marker = res.Marker
	}
}

// AccountTxEntry is one transaction from account_tx.
type AccountTxEntry struct {
	Hash        string
	LedgerIndex uint32
	Validated   bool
	// Fields are the transaction's fields.
	Fields map[string]any
	Meta   Meta
}

// WalkAccountTx visits validated transactions affecting account, newest
// first, until fn returns false or history runs out.
func (s *Session) WalkAccountTx(ctx context.Context, account string, fn func(AccountTxEntry) bool) error {
	var marker any
	for {
		params := map[string]any{
			"account":          account,
			"ledger_index_min": -1,
			"ledger_index_max": -1,
			"limit":            txPageLimit,
			"forward":          false,
		}
		if marker != nil {
			params["marker"] = marker
		}

		var res struct {
			Transactions []struct {
				Tx          map[string]any  `json:"tx"`
				TxJSON      map[string]any  `json:"tx_json"`
				Meta        json.RawMessage `json:"meta"`
				Hash        string          `json:"hash"`
				LedgerIndex uint32          `json:"ledger_index"`
				Validated   bool            `json:"validated"`
			} `json:"transactions"`
			Marker any `json:"marker"`
		}
		if err := s.call(ctx, "account_tx", params, &res); err != nil {
			return err
		}

		for _, t := range res.Transactions {
			fields := t.Tx
			if fields == nil {
				fields = t.TxJSON
			}
			entry := AccountTxEntry{
				Hash:        t.Hash,
				LedgerIndex: t.LedgerIndex,
				Validated:   t.Validated,
				Fields:      fields,
			}
			if entry.Hash == "" {
				entry.Hash = tx.StringField(fields, "hash")
			}
			if entry.LedgerIndex == 0 {
				entry.LedgerIndex, _ = tx.Uint32Field(fields, "ledger_index")
			}
			if err := decodeMeta(t.Meta, &entry.Meta); err != nil {
				return fmt.Errorf("account_tx: %w", err)
			}
			if !fn(entry) {
				return nil
			}
		}
		if res.Marker == nil {
			return nil
		}
		marker = res.Marker
	}
}

// Meta is the transaction metadata the orchestrator reads.
type Meta struct {
	TransactionResult string           `json:"TransactionResult"`
	AffectedNodes     []map[string]any `json:"AffectedNodes"`
	MPTIssuanceID     string           `json:"mpt_issuance_id"`
	DeliveredAmount   any              `json:"delivered_amount"`
}

// CreatedNode returns the NewFields of the first created node of
// ledgerEntryType and its ledger index.
func (m Meta) CreatedNode(ledgerEntryType string) (fields map[string]any, index string, ok bool) {
	for _, n := range m.AffectedNodes {
		created := tx.MapField(n, "CreatedNode")
		if created == nil || tx.StringField(created, "LedgerEntryType") != ledgerEntryType {
			continue
		}
		return tx.MapField(created, "NewFields"), tx.StringField(created, "LedgerIndex"), true
	}
	return nil, "", false
}

// DeletedNode reports whether a node of ledgerEntryType at index was
// deleted.
func (m Meta) DeletedNode(ledgerEntryType, index string) bool {
	for _, n := range m.AffectedNodes {
		deleted := tx.MapField(n, "DeletedNode")
		if deleted == nil || tx.StringField(deleted, "LedgerEntryType") != ledgerEntryType {
			continue
		}
		if index == "" || strings.EqualFold(tx.StringField(deleted, "LedgerIndex"), index) {
			return true
		}
	}
	return false
}

func decodeMeta(raw json.RawMessage, m *Meta) error {
	if len(raw) == 0 || raw[0] != '{' {
		// Absent, or binary metadata which is never requested.
		return nil
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return fmt.Errorf("decoding meta: %w", err)
	}
	return nil
}

// TxInfo is a tx lookup result.
type TxInfo struct {
	Hash        string
	LedgerIndex uint32
	Validated   bool
	Fields      map[string]any
	Meta        Meta
}

// Result returns the engine result from metadata.
func (t *TxInfo) Result() tx.Result {
	return tx.Result(t.Meta.TransactionResult)
}

// Tx looks a transaction up by hash.
func (s *Session) Tx(ctx context.Context, hash string) (*TxInfo, error) {
	var raw json.RawMessage
	if err := s.call(ctx, "tx", map[string]any{"transaction": hash}, &raw); err != nil {
		return nil, err
	}
	return decodeTx(raw)
}

func decodeTx(raw json.RawMessage) (*TxInfo, error) {
	var head struct {
		Hash        string          `json:"hash"`
		LedgerIndex uint32          `json:"ledger_index"`
		Validated   bool            `json:"validated"`
		Meta        json.RawMessage `json:"meta"`
		TxJSON      map[string]any  `json:"tx_json"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("tx: decoding result: %w", err)
	}

	info := &TxInfo{
		Hash:        head.Hash,
		LedgerIndex: head.LedgerIndex,
		Validated:   head.Validated,
		Fields:      head.TxJSON,
	}
	if info.Fields == nil {
		// Older API versions put the transaction fields at the top level.
		if err := json.Unmarshal(raw, &info.Fields); err != nil {
			return nil, fmt.Errorf("tx: decoding fields: %w", err)
		}
		delete(info.Fields, "meta")
	}
	if err := decodeMeta(head.Meta, &info.Meta); err != nil {
		return nil, fmt.Errorf("tx: %w", err)
	}
	return info, nil
}

// LedgerEntry fetches one validated ledger object. A missing object returns
// found=false and no error.
func (s *Session) LedgerEntry(ctx context.Context, params map[string]any) (map[string]any, bool, error) {
	p := make(map[string]any, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	if _, ok := p["ledger_index"]; !ok {
		p["ledger_index"] = LedgerValidated
	}

	var res struct {
		Index string         `json:"index"`
		Node  map[string]any `json:"node"`
	}
	err := s.call(ctx, "ledger_entry", p, &res)
	if IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if res.Node != nil && tx.StringField(res.Node, "index") == "" {
		res.Node["index"] = res.Index
	}
	return res.Node, res.Node != nil, nil
}

// SubmitResult is the node's preliminary answer to submit.
type SubmitResult struct {
	EngineResult        tx.Result `json:"engine_result"`
	EngineResultCode    int       `json:"engine_result_code"`
	EngineResultMessage string    `json:"engine_result_message"`
	Accepted            bool      `json:"accepted"`
	Applied             bool      `json:"applied"`
	Broadcast           bool      `json:"broadcast"`
	Kept                bool      `json:"kept"`
	Queued              bool      `json:"queued"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

// Submit sends a signed blob. The preliminary result is not final.
func (s *Session) Submit(ctx context.Context, blob string) (*SubmitResult, error) {
	var res SubmitResult
	if err := s.conn.Request(ctx, "submit", map[string]any{"tx_blob": blob}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
