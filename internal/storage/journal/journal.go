// Package journal persists every transaction the orchestrator submits so
// that submissions with an unknown outcome can be reconciled later by hash.
// Entries are msgpack records in a LevelDB database keyed by transaction
// hash.
package journal

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/ugorji/go/codec"

	"github.com/LeJamon/goxrpl-escrow/internal/metrics"
)

const entryKeyPrefix = "tx:"

var (
	// ErrNotFound is returned when no entry exists for a hash.
	ErrNotFound = errors.New("journal: entry not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("journal: closed")
)

// State is the lifecycle state of a journaled submission.
type State string

const (
	// StatePending means the blob was handed to the network and no final
	// answer has been observed yet.
	StatePending State = "pending"
	// StateValidated means a validated ledger holds the transaction with
	// tesSUCCESS.
	StateValidated State = "validated"
	// StateFailed means the transaction was rejected or validated with a
	// non-success result.
	StateFailed State = "failed"
	// StateAmbiguous means waiting stopped before a final answer.
	StateAmbiguous State = "ambiguous"
)

// Final reports whether s is a terminal state.
func (s State) Final() bool {
	return s == StateValidated || s == StateFailed
}

// Entry is one journaled submission.
type Entry struct {
	Hash               string `codec:"hash"`
	TxType             string `codec:"tx_type"`
	Account            string `codec:"account"`
	Sequence           uint32 `codec:"sequence"`
	LastLedgerSequence uint32 `codec:"last_ledger_sequence"`
	// Owner and OfferSequence identify the escrow a finish or cancel targets.
	Owner         string `codec:"owner,omitempty"`
	OfferSequence uint32 `codec:"offer_sequence,omitempty"`

	State  State  `codec:"state"`
	Result string `codec:"result,omitempty"`

	SubmittedUnix int64 `codec:"submitted_at"`
	UpdatedUnix   int64 `codec:"updated_at"`
}

// SubmittedAt returns the submission time.
func (e Entry) SubmittedAt() time.Time {
	return time.Unix(e.SubmittedUnix, 0).UTC()
}

// UpdatedAt returns the time of the last state change.
func (e Entry) UpdatedAt() time.Time {
	return time.Unix(e.UpdatedUnix, 0).UTC()
}

// Journal is a LevelDB-backed submission log. It is safe for concurrent use.
type Journal struct {
	mu  sync.Mutex
	db  *leveldb.DB
	mh  codec.MsgpackHandle
	now func() time.Time
}

// Open opens or creates a journal at path.
func Open(path string) (*Journal, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("journal path required")
	}
	db, err := leveldb.OpenFile(filepath.Clean(trimmed), nil)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return newJournal(db)
}

// OpenMemory returns a journal held in memory.
func OpenMemory() (*Journal, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory journal: %w", err)
	}
	return newJournal(db)
}

func newJournal(db *leveldb.DB) (*Journal, error) {
	j := &Journal{db: db, now: time.Now}
	unresolved, err := j.Unresolved()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.JournalPending.Set(float64(len(unresolved)))
	return j, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Record stores a new submission. An existing entry for the same hash is
// replaced.
func (j *Journal) Record(e Entry) error {
	if e.Hash == "" {
		return fmt.Errorf("journal: entry hash required")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return ErrClosed
	}

	now := j.now().Unix()
	if e.SubmittedUnix == 0 {
		e.SubmittedUnix = now
	}
	e.UpdatedUnix = now
	if e.State == "" {
		e.State = StatePending
	}

	prev, found, err := j.get(e.Hash)
	if err != nil {
		return err
	}
	if err := j.put(e); err != nil {
		return err
	}
	adjustPending(prev, found, e)
	return nil
}

// Resolve moves the entry for hash to state with the given result code.
func (j *Journal) Resolve(hash string, state State, result string) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return Entry{}, ErrClosed
	}

	prev, found, err := j.get(hash)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	next := prev
	next.State = state
	next.Result = result
	next.UpdatedUnix = j.now().Unix()
	if err := j.put(next); err != nil {
		return Entry{}, err
	}
	adjustPending(prev, true, next)
	return next, nil
}

// Get returns the entry for hash.
func (j *Journal) Get(hash string) (Entry, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return Entry{}, false, ErrClosed
	}
	return j.get(hash)
}

// List returns every entry, oldest submission first.
func (j *Journal) List() ([]Entry, error) {
	return j.filter(func(Entry) bool { return true })
}

// Unresolved returns the pending and ambiguous entries, oldest first.
func (j *Journal) Unresolved() ([]Entry, error) {
	return j.filter(func(e Entry) bool { return !e.State.Final() })
}

func (j *Journal) filter(keep func(Entry) bool) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, ErrClosed
	}

	iter := j.db.NewIterator(util.BytesPrefix([]byte(entryKeyPrefix)), nil)
	defer iter.Release()

	var out []Entry
	for iter.Next() {
		var e Entry
		if err := j.decode(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry %s: %w", iter.Key(), err)
		}
		if keep(e) {
			out = append(out, e)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SubmittedUnix < out[b].SubmittedUnix
	})
	return out, nil
}

func (j *Journal) get(hash string) (Entry, bool, error) {
	raw, err := j.db.Get(entryKey(hash), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return Entry{}, false, nil
	case err != nil:
		return Entry{}, false, fmt.Errorf("load journal entry: %w", err)
	}
	var e Entry
	if err := j.decode(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode journal entry %s: %w", hash, err)
	}
	return e, true, nil
}

func (j *Journal) put(e Entry) error {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, &j.mh).Encode(e); err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if err := j.db.Put(entryKey(e.Hash), buf, nil); err != nil {
		return fmt.Errorf("store journal entry: %w", err)
	}
	return nil
}

func (j *Journal) decode(raw []byte, e *Entry) error {
	return codec.NewDecoderBytes(raw, &j.mh).Decode(e)
}

func entryKey(hash string) []byte {
	return []byte(entryKeyPrefix + strings.ToUpper(hash))
}

func adjustPending(prev Entry, existed bool, next Entry) {
	wasOpen := existed && !prev.State.Final()
	isOpen := !next.State.Final()
	switch {
	case isOpen && !wasOpen:
		metrics.JournalPending.Inc()
	case wasOpen && !isOpen:
		metrics.JournalPending.Dec()
	}
}
