package testing

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/core/ledger/keylet"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
)

// ErrDropped is the transport error returned for a dropped submit response.
var ErrDropped = errors.New("connection reset after submit")

// accountRoot is the simulated AccountRoot entry.
type accountRoot struct {
	ID         [20]byte
	Address    string
	Balance    uint64
	Sequence   uint32
	OwnerCount uint32
}

// escrowEntry is the simulated Escrow entry.
type escrowEntry struct {
	Index          [32]byte
	Owner          [20]byte
	Account        string
	Destination    string
	Amount         any
	Drops          uint64
	FinishAfter    uint32
	CancelAfter    uint32
	Condition      string
	DestinationTag *uint32
	Sequence       uint32
	PrevTxnID      string
	PrevTxnLgrSeq  uint32
}

// issuanceEntry is the simulated MPTokenIssuance entry.
type issuanceEntry struct {
	ID            [keylet.MPTIDSize]byte
	Index         [32]byte
	Issuer        string
	Sequence      uint32
	Flags         uint32
	AssetScale    uint8
	MaximumAmount *uint64
	TransferFee   uint16
	Metadata      string
	PrevTxnID     string
	PrevTxnLgrSeq uint32
}

// txRecord is a transaction held by the simulated ledger.
type txRecord struct {
	Hash        string
	Fields      map[string]any
	Meta        map[string]any
	LedgerIndex uint32
	Validated   bool
}

// pendingTx is an accepted submission awaiting the next Close.
type pendingTx struct {
	hash   string
	fields map[string]any
}

// ledgerHeader is a closed ledger.
type ledgerHeader struct {
	Index     uint32
	CloseTime uint32
}

// TestEnv is an in-memory ledger that implements gateway.Dialer.
type TestEnv struct {
	t     testing.TB
	mu    sync.Mutex
	clock *ManualClock

	accounts  map[[20]byte]*accountRoot
	escrows   map[[32]byte]*escrowEntry
	issuances map[[keylet.MPTIDSize]byte]*issuanceEntry
	txs       map[string]*txRecord
	history   map[[20]byte][]string
	pending   []pendingTx
	ledgers   []ledgerHeader

	baseFee          uint64
	reserveBase      uint64
	reserveIncrement uint64
	networkID        uint32

	autoClose        bool
	omitIssuanceMeta bool
	dropSubmits      int
	failNext         map[string]error
	dialErr          error
	openConns        int
	requests         map[string]int
}

// NewTestEnv returns a ledger with a funded master account, validated ledger
// 2, a base fee of 10 drops and reserves of 10 XRP base and 2 XRP per object.
func NewTestEnv(t testing.TB) *TestEnv {
	t.Helper()
	env := &TestEnv{
		t:                t,
		clock:            NewManualClock(),
		accounts:         make(map[[20]byte]*accountRoot),
		escrows:          make(map[[32]byte]*escrowEntry),
		issuances:        make(map[[keylet.MPTIDSize]byte]*issuanceEntry),
		txs:              make(map[string]*txRecord),
		history:          make(map[[20]byte][]string),
		baseFee:          10,
		reserveBase:      XRP(10),
		reserveIncrement: XRP(2),
		autoClose:        true,
		failNext:         make(map[string]error),
		requests:         make(map[string]int),
	}
	env.ledgers = []ledgerHeader{
		{Index: 1, CloseTime: env.clock.LedgerTime()},
		{Index: 2, CloseTime: env.clock.LedgerTime()},
	}

	master := MasterAccount()
	env.accounts[master.ID] = &accountRoot{
		ID:       master.ID,
		Address:  master.Address,
		Balance:  XRP(100_000_000_000),
		Sequence: 1,
	}
	return env
}

// Clock returns the ledger clock.
func (e *TestEnv) Clock() *ManualClock {
	return e.clock
}

// Now returns the current clock time.
func (e *TestEnv) Now() time.Time {
	return e.clock.Now()
}

// AdvanceTime moves the clock forward and closes a ledger so the new time is
// visible as the validated close time.
func (e *TestEnv) AdvanceTime(d time.Duration) {
	e.clock.Advance(d)
	e.Close()
}

// SetAutoClose controls whether accepted submissions close a ledger
// immediately.
func (e *TestEnv) SetAutoClose(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoClose = on
}

// SetNetworkID sets the network ID reported by server_info.
func (e *TestEnv) SetNetworkID(id uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.networkID = id
}

// SetBaseFee sets the base fee in drops.
func (e *TestEnv) SetBaseFee(drops uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseFee = drops
}

// OmitIssuanceIDMeta stops MPT issuance creation from reporting
// mpt_issuance_id in metadata, as older servers do.
func (e *TestEnv) OmitIssuanceIDMeta() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.omitIssuanceMeta = true
}

// DropNextSubmit makes the next submit apply normally but fail on the way
// back, leaving the caller without an answer.
func (e *TestEnv) DropNextSubmit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropSubmits++
}

// FailNext makes the next request for command return err.
func (e *TestEnv) FailNext(command string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext[command] = err
}

// FailDial makes Dial return err; nil restores normal dialing.
func (e *TestEnv) FailDial(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dialErr = err
}

// OpenConns returns the number of connections not yet closed.
func (e *TestEnv) OpenConns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openConns
}

// Requests returns how many times command was requested.
func (e *TestEnv) Requests(command string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[command]
}

// Fund creates each account with 1000 XRP.
func (e *TestEnv) Fund(accounts ...*Account) {
	for _, a := range accounts {
		e.FundAmount(a, XRP(1000))
	}
}

// FundAmount creates acc with drops, or tops it up if it exists.
func (e *TestEnv) FundAmount(acc *Account, drops uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if root, ok := e.accounts[acc.ID]; ok {
		root.Balance += drops
		return
	}
	e.accounts[acc.ID] = &accountRoot{
		ID:       acc.ID,
		Address:  acc.Address,
		Balance:  drops,
		Sequence: e.validatedLocked().Index,
	}
}

// Balance returns the XRP balance of acc in drops.
func (e *TestEnv) Balance(acc *Account) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if root, ok := e.accounts[acc.ID]; ok {
		return root.Balance
	}
	return 0
}

// Exists reports whether acc has an account root.
func (e *TestEnv) Exists(acc *Account) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.accounts[acc.ID]
	return ok
}

// OwnerCount returns the number of objects acc owns.
func (e *TestEnv) OwnerCount(acc *Account) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if root, ok := e.accounts[acc.ID]; ok {
		return root.OwnerCount
	}
	return 0
}

// EscrowExists reports whether the escrow (owner, seq) is on ledger.
func (e *TestEnv) EscrowExists(owner *Account, seq uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.escrows[keylet.Escrow(owner.ID, seq).Key]
	return ok
}

// TxResult returns the engine result of a validated transaction.
func (e *TestEnv) TxResult(hash string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.txs[strings.ToUpper(hash)]
	if !ok || !rec.Validated {
		return "", false
	}
	r, _ := rec.Meta["TransactionResult"].(string)
	return r, true
}

// ValidatedIndex returns the latest validated ledger index.
func (e *TestEnv) ValidatedIndex() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validatedLocked().Index
}

// Close applies held submissions in a new validated ledger stamped with the
// current clock time.
func (e *TestEnv) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *TestEnv) closeLocked() {
	hdr := ledgerHeader{Index: e.validatedLocked().Index + 1, CloseTime: e.clock.LedgerTime()}
	e.ledgers = append(e.ledgers, hdr)

	pending := e.pending
	e.pending = nil
	for i, p := range pending {
		e.applyLocked(p.hash, p.fields, hdr, i)
	}
}

func (e *TestEnv) validatedLocked() ledgerHeader {
	return e.ledgers[len(e.ledgers)-1]
}

func (e *TestEnv) reserve(ownerCount uint32) uint64 {
	return e.reserveBase + uint64(ownerCount)*e.reserveIncrement
}

// Dial implements gateway.Dialer.
func (e *TestEnv) Dial(ctx context.Context) (gateway.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dialErr != nil {
		return nil, e.dialErr
	}
	e.openConns++
	return &conn{env: e}, nil
}

// conn is one simulated connection.
type conn struct {
	env    *TestEnv
	mu     sync.Mutex
	closed bool
}

func (c *conn) Request(ctx context.Context, command string, params map[string]any, out any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("%s: %w", command, gateway.ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	// Round-trip params and result through JSON like the wire does.
	wireParams, err := roundTrip(params)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", command, err)
	}
	p, _ := wireParams.(map[string]any)
	if p == nil {
		p = map[string]any{}
	}

	result, err := c.env.handle(command, p)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: encoding result: %w", command, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decoding result: %w", command, err)
	}
	return nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.env.mu.Lock()
	c.env.openConns--
	c.env.mu.Unlock()
	return nil
}

func roundTrip(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func rpcError(command, name, message string) error {
	return &gateway.RPCError{Command: command, Name: name, Message: message}
}

func hexKey(k [32]byte) string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

func ledgerHash(index uint32) string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, index)
	h := crypto.Sha512Half([]byte("LGR"), b)
	return hexKey(h)
}

func (e *TestEnv) accountByAddress(address string) (*accountRoot, bool) {
	id, err := crypto.AccountIDFromAddress(address)
	if err != nil {
		return nil, false
	}
	root, ok := e.accounts[id]
	return root, ok
}

// sortedEscrows returns escrows visible in account's owner directory: those
// it owns and those it is the destination of.
func (e *TestEnv) sortedEscrows(address string) []*escrowEntry {
	var out []*escrowEntry
	for _, esc := range e.escrows {
		if esc.Account == address || esc.Destination == address {
			out = append(out, esc)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return hexKey(out[a].Index) < hexKey(out[b].Index)
	})
	return out
}

func (e *TestEnv) sortedIssuances(address string) []*issuanceEntry {
	var out []*issuanceEntry
	for _, iss := range e.issuances {
		if iss.Issuer == address {
			out = append(out, iss)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return hexKey(out[a].Index) < hexKey(out[b].Index)
	})
	return out
}
